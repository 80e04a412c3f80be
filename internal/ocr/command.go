// File: internal/ocr/command.go
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/config"
)

// Allows mocking the subprocess in tests.
var execCommandContext = exec.CommandContext

const defaultCommandTimeout = 10 * time.Second

// commandOutput is the JSON document a recognizer command prints on stdout. Boxes are
// [x0, y0, x1, y1] relative to the PNG it received on stdin.
type commandOutput struct {
	Lines []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
		Box        [4]int  `json:"box"`
	} `json:"lines"`
}

// CommandRecognizer runs a local OCR program per request. The program reads a PNG
// on stdin and writes a commandOutput document on stdout.
type CommandRecognizer struct {
	command string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCommandRecognizer validates the configured command.
func NewCommandRecognizer(cfg config.OCRConfig, logger *zap.Logger) (*CommandRecognizer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("ocr command cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &CommandRecognizer{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		timeout: timeout,
		logger:  logger.Named("ocr.command"),
	}, nil
}

// Recognize pipes region of img through the command.
func (r *CommandRecognizer) Recognize(ctx context.Context, img image.Image, region image.Rectangle) ([]schemas.OCRLine, error) {
	content, err := encodeRegion(img, region)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := execCommandContext(ctx, r.command, r.args...)
	cmd.Stdin = bytes.NewReader(content)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("ocr command %q timed out: %w", r.command, ctxErr)
		}
		return nil, fmt.Errorf("ocr command %q failed: %w: %s", r.command, err, strings.TrimSpace(stderr.String()))
	}

	lines, err := parseCommandOutput(stdout.Bytes(), origin(img, region))
	if err != nil {
		return nil, fmt.Errorf("ocr command %q: %w", r.command, err)
	}
	r.logger.Debug("OCR command complete.", zap.Int("lines", len(lines)))
	return lines, nil
}

// Close is a no-op; every request starts its own process.
func (r *CommandRecognizer) Close() error { return nil }

func parseCommandOutput(data []byte, offset image.Point) ([]schemas.OCRLine, error) {
	var doc commandOutput
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid output: %w", err)
	}
	lines := make([]schemas.OCRLine, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		lines = append(lines, schemas.OCRLine{
			Text:       l.Text,
			Confidence: l.Confidence,
			Box:        image.Rect(l.Box[0], l.Box[1], l.Box[2], l.Box[3]).Add(offset),
		})
	}
	return lines, nil
}
