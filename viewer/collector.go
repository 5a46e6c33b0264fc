package viewer

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ prometheus.Collector = (*Collector)(nil)

// reportStats is what the collector exports about the current report.
type reportStats struct {
	name      string
	sections  int
	functions int
	callees   int
	cycles    int
	rootValue float64
}

func statsOf(l *Loaded) reportStats {
	st := reportStats{
		name:      l.Name,
		sections:  len(l.Report.Sections),
		functions: len(l.Report.Functions()),
		cycles:    len(l.Report.Cycles()),
		rootValue: l.Tree.Value,
	}
	for _, s := range l.Report.Sections {
		st.callees += len(s.Callees)
	}
	return st
}

// Collector exports parse statistics of the report the viewer shows.
type Collector struct {
	logger      zerolog.Logger
	namespace   string
	constLabels prometheus.Labels

	lastUpdated prometheus.Gauge
	loads       prometheus.Counter
	failures    prometheus.Counter
	stats       atomic.Pointer[reportStats]

	sectionsDesc  *prometheus.Desc
	functionsDesc *prometheus.Desc
	calleesDesc   *prometheus.Desc
	cyclesDesc    *prometheus.Desc
	rootDesc      *prometheus.Desc
}

// NewCollector
// labels are the label constants on all metrics.
func NewCollector(logger zerolog.Logger, namespace string, labels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "report", name),
			help,
			[]string{"report"},
			labels,
		)
	}
	return &Collector{
		logger:      logger,
		namespace:   namespace,
		constLabels: labels,
		lastUpdated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "viewer",
			Name:        "last_loaded_unix_s",
			Help:        "Timestamp in unix seconds of the last successful report load.",
			ConstLabels: labels,
		}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "viewer",
			Name:        "loads_total",
			Help:        "Reports loaded successfully.",
			ConstLabels: labels,
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "viewer",
			Name:        "load_failures_total",
			Help:        "Reports that failed to parse or assemble.",
			ConstLabels: labels,
		}),
		sectionsDesc:  desc("sections", "Sections in the call graph table, placeholders included."),
		functionsDesc: desc("functions", "Sections that describe a function."),
		calleesDesc:   desc("callees", "Callee lines across all sections."),
		cyclesDesc:    desc("cycles", "Call cycles found in the report."),
		rootDesc:      desc("root_value_seconds", "Self plus children time of the root function."),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.lastUpdated.Desc()
	descs <- c.loads.Desc()
	descs <- c.failures.Desc()
	descs <- c.sectionsDesc
	descs <- c.functionsDesc
	descs <- c.calleesDesc
	descs <- c.cyclesDesc
	descs <- c.rootDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- c.lastUpdated
	ch <- c.loads
	ch <- c.failures

	st := c.stats.Load()
	if st == nil {
		return
	}
	for desc, value := range map[*prometheus.Desc]float64{
		c.sectionsDesc:  float64(st.sections),
		c.functionsDesc: float64(st.functions),
		c.calleesDesc:   float64(st.callees),
		c.cyclesDesc:    float64(st.cycles),
		c.rootDesc:      st.rootValue,
	} {
		pm, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, st.name)
		if err != nil {
			c.logger.Warn().
				Str("metric", desc.String()).
				Err(err).
				Msg("failed to create metric")
			continue
		}
		ch <- pm
	}
}

// Loaded records a successful load.
func (c *Collector) Loaded(l *Loaded) {
	st := statsOf(l)
	c.stats.Store(&st)
	c.loads.Inc()
	c.lastUpdated.Set(float64(time.Now().Unix()))
}

// Failed records a failed load. The previous report is gone at that point.
func (c *Collector) Failed() {
	c.stats.Store(nil)
	c.failures.Inc()
}
