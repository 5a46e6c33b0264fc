package profiling

import (
	"bytes"
	"math"
	"time"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/google/pprof/profile"
)

// Converter turns a materialized gprof call tree into a pprof profile.
// Functions and locations are shared by every call site of the same index.
type Converter struct {
	functions map[int]*profile.Function
	locations map[int]*profile.Location

	protobuf *profile.Profile
}

func New() *Converter {
	return &Converter{
		functions: make(map[int]*profile.Function),
		locations: make(map[int]*profile.Location),
		protobuf: &profile.Profile{
			SampleType: []*profile.ValueType{
				{Type: "cpu", Unit: "nanoseconds"},
				{Type: "calls", Unit: "count"},
			},
			DefaultSampleType: "cpu",
			Sample:            []*profile.Sample{},
			Mapping:           []*profile.Mapping{},
			Location:          []*profile.Location{},
			Function:          []*profile.Function{},
			Comments:          []string{},
			// gprof reports carry no wall clock, the conversion time is used.
			TimeNanos: time.Now().UnixNano(),
		},
	}
}

// Convert adds one sample per node of the tree. The sample value is the self
// time of that call site, so the samples of a stack sum up to its value.
func (c *Converter) Convert(root *gprof.Node) *profile.Profile {
	c.protobuf.DurationNanos = nanos(root.Value)
	root.Walk(func(n *gprof.Node, stack []*gprof.Node) {
		self := nanos(n.SelfTime)
		if self == 0 && n.Calls == 0 {
			return
		}

		// location[0] is the leaf.
		locs := make([]*profile.Location, 0, len(stack)+1)
		locs = append(locs, c.location(n))
		for i := len(stack) - 1; i >= 0; i-- {
			locs = append(locs, c.location(stack[i]))
		}
		c.protobuf.Sample = append(c.protobuf.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{self, int64(n.Calls)},
		})
	})
	return c.protobuf
}

func (c *Converter) Encode() ([]byte, error) {
	var buf bytes.Buffer
	err := c.protobuf.Write(&buf)
	return buf.Bytes(), err
}

func (c *Converter) location(n *gprof.Node) *profile.Location {
	if loc, found := c.locations[n.Index]; found {
		return loc
	}

	// gprof indexes start at 1, they double as pprof ids.
	id := uint64(n.Index)
	fn := &profile.Function{
		ID:         id,
		Name:       n.Name,
		SystemName: n.Name,
	}
	c.functions[n.Index] = fn
	c.protobuf.Function = append(c.protobuf.Function, fn)

	loc := &profile.Location{
		ID: id,
		Line: []profile.Line{
			{Function: fn},
		},
	}
	c.locations[n.Index] = loc
	c.protobuf.Location = append(c.protobuf.Location, loc)
	return loc
}

func nanos(seconds float64) int64 {
	return int64(math.Round(seconds * float64(time.Second)))
}
