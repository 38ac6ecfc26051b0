package model

// RenderRequest is the immutable input of a render job: which composition to
// render and the props fed into it.
type RenderRequest struct {
	CompositionID string      `json:"compositionId" validate:"required"`
	InputProps    *InputProps `json:"inputProps" validate:"required"`
}

// InputProps carries the data the composition engine turns into frames.
type InputProps struct {
	VideoURL        string            `json:"videoUrl" validate:"required"`
	Subtitles       []SubtitleSegment `json:"subtitles" validate:"dive"`
	Template        string            `json:"template,omitempty"`
	Language        string            `json:"language,omitempty"`
	BackgroundColor string            `json:"backgroundColor,omitempty"`
	VideoStartTime  float64           `json:"videoStartTime,omitempty"`
	BrandKit        *BrandKit         `json:"brandKit,omitempty"`
}

// SubtitleSegment is one timed caption line. Start and End are seconds into
// the source video.
type SubtitleSegment struct {
	ID    int          `json:"id"`
	Start float64      `json:"start"`
	End   float64      `json:"end"`
	Text  string       `json:"text"`
	Words []WordTiming `json:"words,omitempty"`
}

// WordTiming gives word-level timing for templates that highlight the
// currently spoken word.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Caption templates known to the composition bundle. The facade does not
// reject unknown names; the engine decides what it can render.
const (
	TemplateDefault      = "default"
	TemplateViral        = "viral"
	TemplateMinimal      = "minimal"
	TemplateModern       = "modern"
	TemplateHighlight    = "highlight"
	TemplateColorShift   = "colorshift"
	TemplateHormozi      = "hormozi"
	TemplateMrBeast      = "mrbeast"
	TemplateMrBeastEmoji = "mrbeastemoji"
)

// BrandKit customizes caption templates with a logo, colors, and a font.
type BrandKit struct {
	LogoURL         string  `json:"logoUrl,omitempty"`
	LogoPosition    string  `json:"logoPosition,omitempty" validate:"omitempty,oneof=top-left top-right bottom-left bottom-right"`
	LogoScale       float64 `json:"logoScale,omitempty" validate:"omitempty,min=0.1,max=2"`
	PrimaryColor    string  `json:"primaryColor,omitempty" validate:"omitempty,hexcolor"`
	SecondaryColor  string  `json:"secondaryColor,omitempty" validate:"omitempty,hexcolor"`
	TextColor       string  `json:"textColor,omitempty" validate:"omitempty,hexcolor"`
	BackgroundColor string  `json:"backgroundColor,omitempty" validate:"omitempty,hexcolor"`
	FontFamily      string  `json:"fontFamily,omitempty"`
}

// CreateRenderResponse is returned by POST /renders.
type CreateRenderResponse struct {
	JobID string `json:"jobId"`
}

// CancelRenderResponse is returned by DELETE /renders/:jobId.
type CancelRenderResponse struct {
	Message string `json:"message"`
	JobID   string `json:"jobId"`
}
