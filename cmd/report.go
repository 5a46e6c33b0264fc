package cmd

import (
	"fmt"
	"os"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/rs/zerolog"
)

// parseReport reads and assembles one report file.
func parseReport(path string, logger zerolog.Logger) (*gprof.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		logger.Error().Err(err).Str("report", path).Msg("open report")
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	report, err := gprof.Parse(f)
	if err != nil {
		logger.Error().Err(err).Str("report", path).Msg("parse report")
		return nil, fmt.Errorf("parse report: %w", err)
	}

	if cycles := report.Cycles(); len(cycles) > 0 {
		logger.Warn().
			Str("report", path).
			Int("cycles", len(cycles)).
			Msg("report has call cycles, recursive calls are not expanded")
	}
	logger.Debug().
		Str("report", path).
		Int("sections", len(report.Sections)).
		Int("functions", len(report.Functions())).
		Msg("parsed report")
	return report, nil
}

// reportTree materializes the tree below index, or below the root when index
// is zero.
func reportTree(report *gprof.Report, index, maxDepth int64) (*gprof.Node, error) {
	if index > 0 {
		return report.NodeFor(int(index), int(maxDepth))
	}
	return report.Node(int(maxDepth))
}
