package cmd

import (
	"fmt"
	"os"

	"github.com/Emyrk/gprof-viewer/viewer"
	"gopkg.in/yaml.v3"

	"github.com/coder/serpent"
)

type ServeConfig struct {
	Viewer viewer.Options `yaml:"viewer"`
}

func (r *Root) serve() *serpent.Command {
	var (
		configPath string
		listen     string
		maxDepth   int64
	)
	return &serpent.Command{
		Use:   "serve [report...]",
		Short: "Serve the flame graph viewer and its metrics.",
		Options: serpent.OptionSet{
			serpent.Option{
				Name:          "config",
				Description:   "YAML config file to use.",
				Required:      false,
				Flag:          "config",
				FlagShorthand: "c",
				Value:         serpent.StringOf(&configPath),
			},
			serpent.Option{
				Name:        "listen",
				Description: "Address to listen on, overrides the config file.",
				Flag:        "listen",
				Env:         "GPROF_LISTEN",
				Value:       serpent.StringOf(&listen),
			},
			serpent.Option{
				Name:        "max-depth",
				Description: "Levels expanded below the root, 0 keeps the config file value.",
				Flag:        "max-depth",
				Default:     "0",
				Value:       serpent.Int64Of(&maxDepth),
			},
		},
		Handler: func(i *serpent.Invocation) error {
			logger := r.Logger(i)
			ctx := i.Context()

			var config ServeConfig
			if configPath != "" {
				yamlData, err := os.ReadFile(configPath)
				if err != nil {
					logger.Error().Err(err).Str("config", configPath).Msg("read config")
					return fmt.Errorf("read config: %w", err)
				}

				err = yaml.Unmarshal(yamlData, &config)
				if err != nil {
					logger.Error().Err(err).Str("config", configPath).Msg("unmarshal config")
					return fmt.Errorf("unmarshal config: %w", err)
				}
			}

			opts := config.Viewer
			if listen != "" {
				opts.Listen = listen
			}
			if maxDepth > 0 {
				opts.MaxDepth = int(maxDepth)
			}
			opts.Reports = append(opts.Reports, i.Args...)

			srv, err := viewer.New(opts, logger.With().Str("service", "viewer").Logger())
			if err != nil {
				logger.Error().Err(err).Msg("new viewer")
				return fmt.Errorf("new viewer: %w", err)
			}
			defer srv.Close()

			// Only the last report stays loaded, earlier ones are still
			// parsed so a broken file fails at startup.
			for _, path := range opts.Reports {
				_, err := srv.LoadFile(ctx, path)
				if err != nil {
					logger.Error().Err(err).Str("report", path).Msg("preload report")
					return fmt.Errorf("preload report: %w", err)
				}
			}

			logger.Debug().
				Int("preloaded", len(opts.Reports)).
				Msg("preloaded reports")

			return srv.Run(ctx)
		},
	}
}
