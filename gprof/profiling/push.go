package profiling

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/pprof/profile"
	"github.com/grafana/pyroscope-go/upstream"
	"github.com/grafana/pyroscope-go/upstream/remote"
	"github.com/rs/zerolog"
)

var _ remote.Logger = (*zerologWrapper)(nil)

type zerologWrapper struct {
	logger zerolog.Logger
}

func (z zerologWrapper) Infof(f string, args ...interface{})  { z.logger.Info().Msgf(f, args...) }
func (z zerologWrapper) Debugf(f string, args ...interface{}) { z.logger.Debug().Msgf(f, args...) }
func (z zerologWrapper) Errorf(f string, args ...interface{}) { z.logger.Error().Msgf(f, args...) }

// PyroscopePusher uploads converted reports to a Pyroscope server.
type PyroscopePusher struct {
	Address string
	Remote  *remote.Remote
	Logger  zerolog.Logger
}

func NewPusher(address string, logger zerolog.Logger) (*PyroscopePusher, error) {
	if address == "" {
		return nil, fmt.Errorf("missing pyroscope address")
	}

	rmt, err := remote.NewRemote(remote.Config{
		Threads: 1,
		Address: address,
		Timeout: time.Second * 20,
		Logger:  &zerologWrapper{logger: logger},
	})
	if err != nil {
		return nil, fmt.Errorf("new remote: %w", err)
	}

	go rmt.Start()
	return &PyroscopePusher{
		Address: address,
		Remote:  rmt,
		Logger:  logger,
	}, nil
}

// Stop flushes queued uploads.
func (p *PyroscopePusher) Stop() {
	p.Remote.Stop()
}

// Push queues the profile for upload under the application name.
func (p *PyroscopePusher) Push(name string, pb *profile.Profile) error {
	var buf bytes.Buffer
	err := pb.Write(&buf)
	if err != nil {
		return fmt.Errorf("write proto: %w", err)
	}

	start := time.Unix(0, pb.TimeNanos)
	end := start.Add(time.Duration(pb.DurationNanos))

	p.Remote.Upload(&upstream.UploadJob{
		Name:            name,
		StartTime:       start,
		EndTime:         end,
		SpyName:         "gprof",
		Units:           "cpu",
		AggregationType: "sum",
		Format:          upstream.FormatPprof,
		Profile:         buf.Bytes(),
		SampleTypeConfig: map[string]*upstream.SampleType{
			"cpu": {
				Units:       "nanoseconds",
				Aggregation: "sum",
				DisplayName: "cpu",
				// gprof attributes time per call site, nothing is sampled twice.
				Sampled:    false,
				Cumulative: false,
			},
			"calls": {
				Units:       "count",
				Aggregation: "sum",
				DisplayName: "calls",
				Sampled:     false,
				Cumulative:  false,
			},
		},
	})
	p.Logger.Debug().
		Str("name", name).
		Int("bytes", buf.Len()).
		Msg("queued profile upload")

	return nil
}
