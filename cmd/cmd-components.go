package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/stupside/thumbmark/internal/app"
	"github.com/stupside/thumbmark/internal/browser"
	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/resolve"
)

// componentsCommand returns the "components" CLI subcommand.
func componentsCommand() *cli.Command {
	return &cli.Command{
		Name:  "components",
		Usage: "List the components a thumbmark would be computed from",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			// Entries are only listed, never run, so no session is needed.
			registry := component.NewRegistry(browser.Builtins(nil)...)
			defaults := cfg.Thumbmark.Defaults()

			for _, e := range resolve.Candidates(registry.All(), &defaults) {
				fmt.Println(e.Name)
			}
			sets := cfg.Thumbmark.RuleSets()
			for _, set := range defaults.Stabilize {
				if _, ok := sets[set]; !ok {
					fmt.Printf("# unknown stabilization set %q\n", set)
				}
			}
			return nil
		},
	}
}
