package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/Emyrk/gprof-viewer/gprof/summary"
	"golang.org/x/sync/errgroup"

	"github.com/coder/serpent"
)

func (r *Root) summary() *serpent.Command {
	var order string
	return &serpent.Command{
		Use:        "summary <report...>",
		Short:      "Print every function of the call graph as a table.",
		Middleware: serpent.RequireRangeArgs(1, -1),
		Options: serpent.OptionSet{
			serpent.Option{
				Name:        "order",
				Description: "Row order.",
				Flag:        "order",
				Default:     string(summary.OrderReport),
				Value:       serpent.EnumOf(&order, string(summary.OrderReport), string(summary.OrderValue), string(summary.OrderSelf)),
			},
		},
		Handler: func(i *serpent.Invocation) error {
			logger := r.Logger(i)

			// Reports are parsed concurrently and printed in argument order.
			reports := make([]*gprof.Report, len(i.Args))
			var eg errgroup.Group
			for n, path := range i.Args {
				n, path := n, path
				eg.Go(func() error {
					report, err := parseReport(path, logger)
					if err != nil {
						return err
					}
					reports[n] = report
					return nil
				})
			}
			err := eg.Wait()
			if err != nil {
				return err
			}

			for n, report := range reports {
				if n > 0 {
					_, _ = fmt.Fprintln(i.Stdout)
				}
				err := summary.Render(i.Stdout, filepath.Base(i.Args[n]), report, summary.Order(order))
				if err != nil {
					return fmt.Errorf("render summary: %w", err)
				}
			}
			return nil
		},
	}
}
