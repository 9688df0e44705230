package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/voxleaf/voxleaf/internal/config"
)

// handleProviders prints the configured chain in fallback order with a live
// availability check per provider.
func handleProviders(ctx context.Context, c *cli.Command) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	applyLogLevel(c, cfg)

	chain, err := buildChain(ctx, cfg)
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Println("Provider chain (fallback order):")
	for i, p := range chain.Providers() {
		status := bad("unavailable")
		if p.IsAvailable(ctx) {
			status = ok("available")
		}
		fmt.Printf("  %d. %-12s %s\n", i+1, p.Name(), status)

		if !c.Bool("voices") || !p.IsAvailable(ctx) {
			continue
		}
		voices, err := p.ListVoices(ctx)
		if err != nil {
			fmt.Printf("     %s\n", dim("voices: "+err.Error()))
			continue
		}
		for _, v := range voices {
			label := v.Name
			if v.Language != "" {
				label += " (" + v.Language + ")"
			}
			fmt.Printf("     - %s %s\n", v.ID, dim(label))
		}
	}
	return nil
}
