package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Emyrk/gprof-viewer/gprof/profiling"

	"github.com/coder/serpent"
)

func (r *Root) convert() *serpent.Command {
	var (
		format   string
		output   string
		maxDepth int64
		index    int64
		pretty   bool
	)
	return &serpent.Command{
		Use:        "convert <report>",
		Short:      "Convert a gprof report into a flame graph tree or a pprof profile.",
		Middleware: serpent.RequireNArgs(1),
		Options: serpent.OptionSet{
			serpent.Option{
				Name:        "format",
				Description: "Output format.",
				Flag:        "format",
				Default:     "json",
				Value:       serpent.EnumOf(&format, "json", "pprof"),
			},
			serpent.Option{
				Name:          "output",
				Description:   "File to write to, stdout when empty.",
				Flag:          "output",
				FlagShorthand: "o",
				Value:         serpent.StringOf(&output),
			},
			serpent.Option{
				Name:        "max-depth",
				Description: "Levels expanded below the root, 0 for no limit.",
				Flag:        "max-depth",
				Default:     "0",
				Value:       serpent.Int64Of(&maxDepth),
			},
			serpent.Option{
				Name:        "index",
				Description: "Function index to use as root instead of the first function.",
				Flag:        "index",
				Default:     "0",
				Value:       serpent.Int64Of(&index),
			},
			serpent.Option{
				Name:        "pretty",
				Description: "Pretty print JSON.",
				Flag:        "pretty",
				Value:       serpent.BoolOf(&pretty),
			},
		},
		Handler: func(i *serpent.Invocation) error {
			logger := r.Logger(i)
			path := i.Args[0]

			report, err := parseReport(path, logger)
			if err != nil {
				return err
			}
			tree, err := reportTree(report, index, maxDepth)
			if err != nil {
				return fmt.Errorf("build tree: %w", err)
			}

			var out io.Writer = i.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "pprof":
				converter := profiling.New()
				converter.Convert(tree)
				data, err := converter.Encode()
				if err != nil {
					return fmt.Errorf("encode profile: %w", err)
				}
				_, err = out.Write(data)
				if err != nil {
					return fmt.Errorf("write profile: %w", err)
				}
			default:
				enc := json.NewEncoder(out)
				if pretty {
					enc.SetIndent("", "\t")
				}
				err = enc.Encode(tree)
				if err != nil {
					return fmt.Errorf("write tree: %w", err)
				}
			}

			logger.Info().
				Str("report", path).
				Str("format", format).
				Str("root", tree.Name).
				Float64("value", tree.Value).
				Msg("converted report")
			return nil
		},
	}
}
