package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var (
	version  = "dev"
	revision = "none"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Provider API keys are commonly kept in a local .env file.
	_ = godotenv.Load()

	app := &cli.Command{
		Name:    "voxleaf",
		Usage:   "PDF read-aloud service - chunk documents and generate TTS audio",
		Version: fmt.Sprintf("%s (rev: %s)", version, revision),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Enable verbose logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: handleServe,
			},
			{
				Name:      "process",
				Usage:     "Extract and chunk a local PDF without the server",
				Action:    handleProcess,
				ArgsUsage: "<file.pdf>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-words",
						Usage: "Maximum words per chunk",
						Value: 0,
					},
				},
			},
			{
				Name:   "providers",
				Usage:  "Show configured TTS providers and their availability",
				Action: handleProviders,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "voices",
						Usage: "Also list voices for each available provider",
					},
				},
			},
			{
				Name:      "speak",
				Usage:     "Synthesize text through the provider chain into a file",
				Action:    handleSpeak,
				ArgsUsage: "<text>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "out.mp3",
					},
					&cli.StringFlag{
						Name:  "voice",
						Usage: "Voice ID or name (provider-specific)",
					},
					&cli.FloatFlag{
						Name:  "speed",
						Usage: "Speech speed (0.25-4.0, provider dependent)",
						Value: 1.0,
					},
				},
			},
		},
		Before: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}
