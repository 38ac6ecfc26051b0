package engine

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrCancelled is returned by Render when the render was aborted through its
// cancel signal.
var ErrCancelled = errors.New("render cancelled")

// Composition is a renderable template resolved from the composition bundle.
type Composition struct {
	ID string `json:"id"`
}

// RenderSpec describes one render invocation.
type RenderSpec struct {
	CompositionID string
	InputProps    json.RawMessage
	OutputPath    string
	Cancel        *CancelSignal
	OnProgress    func(fraction float64)
}

// Engine executes compositions into media files. Implementations are opaque
// external renderers; they are trusted to report non-decreasing progress and
// to honor the cancel signal, but neither is enforced here.
type Engine interface {
	// SelectComposition resolves a composition id against the bundle,
	// evaluated with the given input props.
	SelectComposition(ctx context.Context, compositionID string, inputProps json.RawMessage) (*Composition, error)

	// Render produces the media file at spec.OutputPath, invoking
	// spec.OnProgress with fractions in [0,1] as frames complete.
	Render(ctx context.Context, spec RenderSpec) error
}
