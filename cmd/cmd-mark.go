package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/stupside/thumbmark/internal/api"
	"github.com/stupside/thumbmark/internal/app"
	"github.com/stupside/thumbmark/internal/browser"
	"github.com/stupside/thumbmark/internal/component"
	"github.com/stupside/thumbmark/internal/options"
	"github.com/stupside/thumbmark/internal/storage"
	"github.com/stupside/thumbmark/internal/thumbmark"
)

// markCommand returns the "mark" CLI subcommand.
func markCommand() *cli.Command {
	return &cli.Command{
		Name:  "mark",
		Usage: "Compute the thumbmark of the configured browser",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Component paths to leave out",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Component paths to keep exclusively",
			},
			&cli.StringSliceFlag{
				Name:  "stabilize",
				Usage: "Stabilization rule sets to apply",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Bound on component resolution and the API call",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Key for the scoring API",
				Sources: cli.EnvVars("THUMBMARK_API_KEY"),
			},
			&cli.BoolFlag{
				Name:  "performance",
				Usage: "Report per-component timings",
			},
			&cli.StringFlag{
				Name:  "path",
				Usage: "Page path reported to the log endpoint",
				Value: "/",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := app.ConfigFrom(cmd)
			if err != nil {
				return err
			}

			store, err := storage.Open(ctx, cfg.Storage)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			session, err := browser.NewSession(ctx, cfg.Browser)
			if err != nil {
				return fmt.Errorf("starting browser: %w", err)
			}
			defer session.Close()

			defaults := cfg.Thumbmark.Defaults()
			sink := api.NewLogSink(cmd.String("path"))

			tm := thumbmark.New(component.NewRegistry(browser.Builtins(session)...), thumbmark.Config{
				Defaults: &defaults,
				Identity: session,
				Client:   api.NewClient(store),
				LogSink:  sink,
				RuleSets: cfg.Thumbmark.RuleSets(),
			})

			res, err := tm.Get(ctx, markOptions(cmd)...)
			if err != nil {
				return fmt.Errorf("computing thumbmark: %w", err)
			}
			sink.Wait()

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

// markOptions turns the flags that were set into per-call overrides.
func markOptions(cmd *cli.Command) []options.Option {
	var opts []options.Option
	if cmd.IsSet("exclude") {
		opts = append(opts, options.WithExclude(cmd.StringSlice("exclude")...))
	}
	if cmd.IsSet("include") {
		opts = append(opts, options.WithInclude(cmd.StringSlice("include")...))
	}
	if cmd.IsSet("stabilize") {
		opts = append(opts, options.WithStabilize(cmd.StringSlice("stabilize")...))
	}
	if cmd.IsSet("timeout") {
		opts = append(opts, options.WithTimeout(cmd.Duration("timeout")))
	}
	if cmd.IsSet("api-key") {
		opts = append(opts, options.WithAPIKey(cmd.String("api-key")))
	}
	if cmd.IsSet("performance") {
		opts = append(opts, options.WithPerformance(cmd.Bool("performance")))
	}
	return opts
}
