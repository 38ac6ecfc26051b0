package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CLIConfig configures the Remotion CLI client.
type CLIConfig struct {
	// ServeURL is the bundle location renders are served from, either a
	// pre-built bundle directory or a URL produced by Bundle.
	ServeURL string

	// Binary is the command used to invoke the CLI. Defaults to "npx".
	Binary string
}

// CLI drives the Remotion CLI as an external rendering process. It satisfies
// Engine; cancellation is delivered by killing the render process.
type CLI struct {
	serveURL string
	binary   string
	log      *logrus.Logger
}

func NewCLI(cfg CLIConfig, log *logrus.Logger) *CLI {
	binary := cfg.Binary
	if binary == "" {
		binary = "npx"
	}
	return &CLI{
		serveURL: cfg.ServeURL,
		binary:   binary,
		log:      log,
	}
}

// Bundle builds the composition bundle from an entry point and returns its
// location, for deployments without a pre-built bundle.
func Bundle(ctx context.Context, binary, entryPoint, outDir string) (string, error) {
	if binary == "" {
		binary = "npx"
	}
	cmd := exec.CommandContext(ctx, binary, "remotion", "bundle", entryPoint, "--out-dir", outDir)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", errors.Wrapf(err, "bundle %s: %s", entryPoint, strings.TrimSpace(string(out)))
	}
	return outDir, nil
}

func (c *CLI) SelectComposition(ctx context.Context, compositionID string, inputProps json.RawMessage) (*Composition, error) {
	propsFile, cleanup, err := writeProps(inputProps)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, c.binary, "remotion", "compositions", c.serveURL,
		"--props", propsFile, "--quiet")
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, "list compositions")
	}

	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == compositionID {
			return &Composition{ID: compositionID}, nil
		}
	}
	return nil, errors.Errorf("composition %q not found in bundle", compositionID)
}

// renderedRe matches the CLI's frame progress lines, e.g. "Rendered 42/120".
var renderedRe = regexp.MustCompile(`Rendered (\d+)/(\d+)`)

func (c *CLI) Render(ctx context.Context, spec RenderSpec) error {
	propsFile, cleanup, err := writeProps(spec.InputProps)
	if err != nil {
		return err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, c.binary, "remotion", "render", c.serveURL, spec.CompositionID, spec.OutputPath,
		"--props", propsFile,
		"--codec", "h264",
		"--log", "verbose")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "render: stdout pipe")
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start render process")
	}

	// Deliver cancellation by killing the render process. The watcher is
	// released through done once the process has settled.
	done := make(chan struct{})
	defer close(done)
	if spec.Cancel != nil {
		go func() {
			select {
			case <-spec.Cancel.Done():
				if err := cmd.Process.Kill(); err != nil {
					c.log.WithError(err).Warn("failed to kill render process")
				}
			case <-done:
			}
		}()
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if frac, ok := parseProgress(scanner.Text()); ok && spec.OnProgress != nil {
			spec.OnProgress(frac)
		}
	}

	err = cmd.Wait()
	if spec.Cancel != nil && spec.Cancel.Cancelled() {
		return ErrCancelled
	}
	if err != nil {
		return errors.Wrapf(err, "render composition %s", spec.CompositionID)
	}
	return nil
}

func parseProgress(line string) (float64, bool) {
	m := renderedRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	rendered, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	total, err := strconv.Atoi(m[2])
	if err != nil || total == 0 {
		return 0, false
	}
	return float64(rendered) / float64(total), true
}

func writeProps(props []byte) (string, func(), error) {
	if len(props) == 0 {
		props = []byte("{}")
	}
	f, err := os.CreateTemp("", "render-props-*.json")
	if err != nil {
		return "", nil, errors.Wrap(err, "create props file")
	}
	if _, err := f.Write(props); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, errors.Wrap(err, "write props file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, errors.Wrap(err, "close props file")
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

var _ Engine = (*CLI)(nil)

// String identifies the engine in logs.
func (c *CLI) String() string {
	return fmt.Sprintf("remotion-cli(%s)", c.serveURL)
}
