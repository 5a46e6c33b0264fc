package cmd

import (
	"fmt"
	"time"

	"github.com/Emyrk/gprof-viewer/internal/version"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coder/serpent"
)

var GroupLogs = &serpent.Group{
	Name:        "Logs",
	YAML:        "log",
	Description: "Where and how much the commands log. Logs go to stderr, output to stdout.",
}

type Root struct {
	LogHuman bool
	LogLevel string

	// bootID tags every log line of one process.
	bootID string
}

func New() *Root {
	return &Root{bootID: uuid.NewString()[:4]}
}

func (r *Root) RootCmd() *serpent.Command {
	cmd := &serpent.Command{
		Use:   "gprof-viewer",
		Short: "Parse gprof call graph reports into flame graph call trees.",
		Long: "Reads the call graph table of a gprof text report and turns it into a " +
			"call tree that can be converted, summarized, served as a flame graph or " +
			"pushed to Pyroscope.",
		Options: r.logOptions(),
	}

	cmd.AddSubcommands(
		r.version(),
		r.convert(),
		r.summary(),
		r.serve(),
		r.push(),
	)
	return cmd
}

func (r *Root) logOptions() serpent.OptionSet {
	return serpent.OptionSet{
		{
			Name:        "log-human",
			Description: "Log with colors and aligned fields instead of json.",
			Flag:        "log-human",
			Env:         "GPROF_LOG_HUMAN",
			YAML:        "human",
			Default:     "false",
			Value:       serpent.BoolOf(&r.LogHuman),
			Group:       GroupLogs,
		},
		{
			Name:        "log-level",
			Description: "Minimum level written to the log.",
			Flag:        "log-level",
			Env:         "GPROF_LOG_LEVEL",
			YAML:        "level",
			Default:     "info",
			Value:       serpent.EnumOf(&r.LogLevel, "trace", "debug", "info", "warn", "error"),
			Group:       GroupLogs,
		},
	}
}

// Logger writes to the invocation's stderr so stdout stays free for command
// output.
func (r *Root) Logger(inv *serpent.Invocation) zerolog.Logger {
	out := inv.Stderr
	if r.LogHuman {
		out = zerolog.ConsoleWriter{Out: inv.Stderr, TimeFormat: time.TimeOnly}
	}

	lvl, lvlErr := zerolog.ParseLevel(r.LogLevel)
	if lvlErr != nil || r.LogLevel == "" {
		lvl = zerolog.InfoLevel
	}

	logger := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("boot_id", r.bootID).
		Str("cmd", inv.Command.Name()).
		Logger()
	if lvlErr != nil && r.LogLevel != "" {
		logger.Warn().Err(lvlErr).Str("level", r.LogLevel).Msg("unknown log level, using info")
	}
	return logger
}

func (r *Root) version() *serpent.Command {
	return &serpent.Command{
		Use:   "version",
		Short: "Print build information.",
		Handler: func(inv *serpent.Invocation) error {
			_, err := fmt.Fprintf(inv.Stdout, "Git Tag: %s\nGit Commit: %s\nBuild Time: %s\n",
				version.GitTag, version.GitCommit, version.BuildTime)
			return err
		},
	}
}
