package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/voxleaf/voxleaf/internal/config"
)

// handleSpeak synthesizes a piece of text through the configured chain and
// writes the audio to a file. Text comes from the arguments or stdin.
func handleSpeak(ctx context.Context, c *cli.Command) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return fmt.Errorf("no text to synthesize")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyLogLevel(c, cfg)

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	opts := synthesizeOptions(cfg)
	if v := c.String("voice"); v != "" {
		opts.Voice = v
	}
	if s := c.Float("speed"); s > 0 {
		opts.Speed = s
	}

	audio, providerName, err := chain.Synthesize(ctx, text, opts)
	if err != nil {
		return err
	}

	output := c.String("output")
	if err := os.WriteFile(output, audio, 0o644); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}

	log.Info().
		Str("provider", providerName).
		Str("output", output).
		Int("bytes", len(audio)).
		Msg("Audio written")
	return nil
}
