package profiling_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/Emyrk/gprof-viewer/gprof/profiling"
	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/require"
)

func simpleTree(t *testing.T) *gprof.Node {
	t.Helper()
	data, err := os.ReadFile("testdata/simple.txt")
	require.NoError(t, err)

	report, err := gprof.ParseString(string(data))
	require.NoError(t, err)
	root, err := report.Node(0)
	require.NoError(t, err)
	return root
}

func TestConvert(t *testing.T) {
	converter := profiling.New()
	pb := converter.Convert(simpleTree(t))
	require.NoError(t, pb.CheckValid())

	require.Len(t, pb.Function, 4)
	require.Len(t, pb.Location, 4)
	require.Equal(t, int64(110_000_000), pb.DurationNanos)

	// main has neither self time nor calls, the three callees are sampled.
	stacks := make(map[string][]int64)
	for _, sample := range pb.Sample {
		names := make([]string, 0, len(sample.Location))
		for i := len(sample.Location) - 1; i >= 0; i-- {
			names = append(names, sample.Location[i].Line[0].Function.Name)
		}
		stacks[strings.Join(names, ";")] = sample.Value
	}
	require.Equal(t, map[string][]int64{
		"main;compute(int)":        {60_000_000, 2},
		"main;compute(int);helper": {10_000_000, 2},
		"main;load_data":           {30_000_000, 1},
	}, stacks)
}

func TestConvertEncode(t *testing.T) {
	converter := profiling.New()
	converter.Convert(simpleTree(t))
	data, err := converter.Encode()
	require.NoError(t, err)

	parsed, err := profile.Parse(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, parsed.Sample, 3)
	require.Equal(t, "cpu", parsed.SampleType[0].Type)
	require.Equal(t, "calls", parsed.SampleType[1].Type)
}
