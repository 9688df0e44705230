package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/voxleaf/voxleaf/internal/config"
	"github.com/voxleaf/voxleaf/internal/pdfx"
)

// handleProcess runs extraction and chunking locally, printing the chunks.
// Useful for checking how a document will read before uploading it.
func handleProcess(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: voxleaf process <file.pdf>")
	}
	path := c.Args().First()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyLogLevel(c, cfg)

	maxWords := int(c.Int("max-words"))
	if maxWords <= 0 {
		maxWords = cfg.PDF.MaxWords
	}

	extractor := pdfx.NewCommandExtractor(cfg.PDF.ExtractCommand)
	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return err
	}

	chunks := pdfx.ChunkText(text, maxWords)
	fmt.Printf("%s: %d chunks (max %d words each)\n\n", path, len(chunks), maxWords)
	for i, chunk := range chunks {
		words := len(strings.Fields(chunk))
		fmt.Printf("[%3d] (%2d words) %s\n", i, words, chunk)
	}
	return nil
}
