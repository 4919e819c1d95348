package label

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	DefaultTextCmd    = "tesseract stdin stdout"
	DefaultBarcodeCmd = "zbarimg --quiet --raw -"
)

// ExecRecognizer runs external OCR and barcode tools. Both get the image on
// stdin and print result to stdout. Empty command disables the step.
type ExecRecognizer struct {
	TextCmd    []string
	BarcodeCmd []string

	// NoBarcodeCode - exit code meaning "nothing found", zbarimg uses 4
	NoBarcodeCode int
}

func NewExecRecognizer(textCmd, barcodeCmd string) (*ExecRecognizer, error) {
	text, err := shellquote.Split(textCmd)
	if err != nil {
		return nil, fmt.Errorf("label: text cmd: %w", err)
	}

	barcode, err := shellquote.Split(barcodeCmd)
	if err != nil {
		return nil, fmt.Errorf("label: barcode cmd: %w", err)
	}

	return &ExecRecognizer{TextCmd: text, BarcodeCmd: barcode, NoBarcodeCode: 4}, nil
}

func (e *ExecRecognizer) Recognize(ctx context.Context, image []byte) (*Result, error) {
	res := &Result{Barcodes: []string{}}

	if len(e.TextCmd) > 0 {
		out, err := run(ctx, e.TextCmd, image)
		if err != nil {
			return nil, err
		}
		res.Text = strings.TrimSpace(string(out))
	}

	if len(e.BarcodeCmd) > 0 {
		out, err := run(ctx, e.BarcodeCmd, image)
		if err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) || exitErr.ExitCode() != e.NoBarcodeCode {
				return nil, err
			}
		}

		for _, line := range strings.Split(string(out), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				res.Barcodes = append(res.Barcodes, line)
			}
		}
	}

	return res, nil
}

func run(ctx context.Context, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = bytes.NewReader(stdin)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("label: %s: %w: %s", args[0], err, bytes.TrimSpace(exitErr.Stderr))
		}
		return out, fmt.Errorf("label: %s: %w", args[0], err)
	}

	return out, nil
}
