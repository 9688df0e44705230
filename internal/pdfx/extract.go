// Package pdfx extracts text from PDF files and splits it into read-aloud
// sized chunks.
package pdfx

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Extractor turns a PDF on disk into plain text.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string) (string, error)
}

// CommandExtractor shells out to an external converter such as pdftotext.
// The placeholder {input} in the argument list is replaced with the PDF path;
// if absent, the path is appended. Output is read from stdout.
type CommandExtractor struct {
	cmd []string
}

// DefaultExtractCommand is pdftotext writing to stdout with layout preserved.
var DefaultExtractCommand = []string{"pdftotext", "-layout", "{input}", "-"}

// NewCommandExtractor builds an extractor around cmd. An empty cmd falls back
// to DefaultExtractCommand.
func NewCommandExtractor(cmd []string) *CommandExtractor {
	if len(cmd) == 0 {
		cmd = DefaultExtractCommand
	}
	return &CommandExtractor{cmd: cmd}
}

func (e *CommandExtractor) Extract(ctx context.Context, pdfPath string) (string, error) {
	base := e.cmd[0]
	args := make([]string, 0, len(e.cmd))
	replaced := false
	for _, a := range e.cmd[1:] {
		if strings.Contains(a, "{input}") {
			a = strings.ReplaceAll(a, "{input}", pdfPath)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, pdfPath)
	}

	command := exec.CommandContext(ctx, base, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("extract command failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("extract command failed: %w", err)
	}

	text := CleanText(stdout.String())
	if text == "" {
		return "", fmt.Errorf("no text extracted from %s", pdfPath)
	}
	return text, nil
}
