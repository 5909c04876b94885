package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

const (
	// DefaultBinary is the tesseract executable looked up on PATH.
	DefaultBinary = "tesseract"

	// DefaultLanguages recognises Japanese and English text.
	DefaultLanguages = "jpn+eng"

	// LSTM engine, fully automatic page segmentation.
	DefaultOEM = 1
	DefaultPSM = 3
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args. Stderr is folded into the error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// TesseractEngine implements ports.OCREngine by shelling out to tesseract.
type TesseractEngine struct {
	binary    string
	languages string
	oem       int
	psm       int
	runner    CommandRunner
}

var _ ports.OCREngine = (*TesseractEngine)(nil)

// TesseractOption configures a TesseractEngine.
type TesseractOption func(*TesseractEngine)

// WithBinary overrides the tesseract executable path.
func WithBinary(path string) TesseractOption {
	return func(e *TesseractEngine) {
		if path != "" {
			e.binary = path
		}
	}
}

// WithLanguages sets the tesseract language list, e.g. "eng" or "jpn+eng".
func WithLanguages(langs string) TesseractOption {
	return func(e *TesseractEngine) {
		if langs != "" {
			e.languages = langs
		}
	}
}

// WithRunner replaces how the command is executed.
func WithRunner(r CommandRunner) TesseractOption {
	return func(e *TesseractEngine) {
		e.runner = r
	}
}

// NewTesseractEngine creates an OCR engine.
func NewTesseractEngine(opts ...TesseractOption) *TesseractEngine {
	e := &TesseractEngine{
		binary:    DefaultBinary,
		languages: DefaultLanguages,
		oem:       DefaultOEM,
		psm:       DefaultPSM,
		runner:    ExecRunner{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recognize writes img to a temporary PNG and reads the text tesseract prints.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "coderag-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encoding temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing temp image: %w", err)
	}

	out, err := e.runner.Run(ctx, e.binary, e.args(tmp.Name())...)
	if err != nil {
		return "", fmt.Errorf("running %s: %w", e.binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *TesseractEngine) args(path string) []string {
	return []string{
		path, "stdout",
		"-l", e.languages,
		"--oem", strconv.Itoa(e.oem),
		"--psm", strconv.Itoa(e.psm),
	}
}
