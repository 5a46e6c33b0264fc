package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Emyrk/gprof-viewer/gprof/profiling"

	"github.com/coder/serpent"
)

func (r *Root) push() *serpent.Command {
	var (
		address  string
		app      string
		maxDepth int64
	)
	return &serpent.Command{
		Use:        "push <report>",
		Short:      "Convert a gprof report and upload it to a Pyroscope server.",
		Middleware: serpent.RequireNArgs(1),
		Options: serpent.OptionSet{
			serpent.Option{
				Name:        "address",
				Description: "Pyroscope server address.",
				Required:    true,
				Flag:        "address",
				Env:         "GPROF_PYROSCOPE_ADDRESS",
				Value:       serpent.StringOf(&address),
			},
			serpent.Option{
				Name:        "app",
				Description: "Application name the profile is stored under.",
				Flag:        "app",
				Default:     "gprof",
				Value:       serpent.StringOf(&app),
			},
			serpent.Option{
				Name:        "max-depth",
				Description: "Levels expanded below the root, 0 for no limit.",
				Flag:        "max-depth",
				Default:     "0",
				Value:       serpent.Int64Of(&maxDepth),
			},
		},
		Handler: func(i *serpent.Invocation) error {
			logger := r.Logger(i)
			path := i.Args[0]

			report, err := parseReport(path, logger)
			if err != nil {
				return err
			}
			tree, err := reportTree(report, 0, maxDepth)
			if err != nil {
				return fmt.Errorf("build tree: %w", err)
			}

			pusher, err := profiling.NewPusher(address, logger.With().Str("service", "pyroscope").Logger())
			if err != nil {
				logger.Error().Err(err).Msg("new pusher")
				return fmt.Errorf("new pusher: %w", err)
			}

			converter := profiling.New()
			pb := converter.Convert(tree)
			err = pusher.Push(app+"{report="+filepath.Base(path)+"}", pb)
			// Stop waits for the queued upload.
			pusher.Stop()
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}

			logger.Info().
				Str("report", path).
				Str("address", address).
				Str("app", app).
				Msg("pushed report")
			return nil
		},
	}
}
