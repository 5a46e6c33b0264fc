package gprof_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Emyrk/gprof-viewer/gprof"
	"github.com/stretchr/testify/require"
)

const (
	header    = "index % time    self  children    called     name"
	separator = "-----------------------------------------------"
)

// twoFunctions is a report where A calls B once and B is a leaf.
var twoFunctions = strings.Join([]string{
	"granularity: each sample hit covers 2 byte(s) for 0.33% of 3.00 seconds",
	"",
	header,
	separator,
	"[1]    100.0    1.0000    2.0000       5         A [1]",
	"                0.5000    0.0000       3/3           B [2]",
	separator,
	"                0.5000    0.0000       3/3           A [1]",
	"[2]     16.7    0.5000    0.0000       3         B [2]",
	separator,
	" This table describes the call tree of the program, and was sorted by",
	" the total amount of time spent in each function and its children.",
}, "\n")

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestParseTwoFunctions(t *testing.T) {
	report, err := gprof.ParseString(twoFunctions)
	require.NoError(t, err)

	// The separator right after the header produces an empty placeholder.
	require.Len(t, report.Sections, 3)
	require.False(t, report.Sections[0].Found)
	require.Equal(t, gprof.Record{}, report.Sections[0].Primary)

	root, err := report.Node(0)
	require.NoError(t, err)
	require.Equal(t, "A", root.Name)
	require.Equal(t, 3.0, root.Value)
	require.Len(t, root.Children, 1)
	require.Equal(t, "B", root.Children[0].Name)
	require.Equal(t, 0.5, root.Children[0].Value)
	require.Empty(t, root.Children[0].Children)
}

func TestParseWithoutPlaceholder(t *testing.T) {
	text := strings.Replace(twoFunctions, header+"\n"+separator, header, 1)
	report, err := gprof.ParseString(text)
	require.NoError(t, err)
	require.Len(t, report.Sections, 2)

	root, ok := report.Root()
	require.True(t, ok)
	require.Equal(t, "A", root.Name)
}

func TestParseReport(t *testing.T) {
	report, err := gprof.ParseString(readTestdata(t, "simple.txt"))
	require.NoError(t, err)

	functions := report.Functions()
	names := make([]string, 0, len(functions))
	for _, f := range functions {
		require.Equal(t, f.SelfTime+f.ChildrenTime, f.Value, f.Name)
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"main", "compute(int)", "load_data", "helper"}, names)

	compute, ok := report.Lookup(2)
	require.True(t, ok)
	require.Len(t, compute.Callers, 1)
	require.Equal(t, "main", compute.Callers[0].Name)
	require.Len(t, compute.Callees, 1)
	require.Equal(t, "helper", compute.Callees[0].Name)

	root, err := report.Node(0)
	require.NoError(t, err)
	require.Equal(t, "main", root.Name)
	require.InDelta(t, 0.11, root.Value, 1e-9)
	require.Equal(t, "main: 0.1100", root.Label)

	// Children keep the order of the callee lines.
	require.Len(t, root.Children, 2)
	require.Equal(t, "compute(int)", root.Children[0].Name)
	require.InDelta(t, 0.08, root.Children[0].Value, 1e-9)
	require.Equal(t, "load_data", root.Children[1].Name)
	require.InDelta(t, 0.03, root.Children[1].Value, 1e-9)

	require.Len(t, root.Children[0].Children, 1)
	helper := root.Children[0].Children[0]
	require.Equal(t, "helper", helper.Name)
	require.Equal(t, 4, helper.Index)
	require.Equal(t, 2, helper.Calls)
	require.Empty(t, report.Cycles())
}

func TestParseCRLF(t *testing.T) {
	text := strings.ReplaceAll(readTestdata(t, "simple.txt"), "\n", "\r\n")
	report, err := gprof.ParseString(text)
	require.NoError(t, err)
	require.Len(t, report.Functions(), 4)
}

func TestParseMaxDepth(t *testing.T) {
	report, err := gprof.ParseString(readTestdata(t, "simple.txt"))
	require.NoError(t, err)

	root, err := report.Node(1)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	require.Empty(t, root.Children[0].Children)
}

func TestParseNodeFor(t *testing.T) {
	report, err := gprof.ParseString(readTestdata(t, "simple.txt"))
	require.NoError(t, err)

	node, err := report.NodeFor(2, 0)
	require.NoError(t, err)
	require.Equal(t, "compute(int)", node.Name)
	require.Len(t, node.Children, 1)

	_, err = report.NodeFor(42, 0)
	require.ErrorIs(t, err, gprof.ErrUnknownIndex)
}

func TestParseNoHeader(t *testing.T) {
	text := strings.Replace(twoFunctions, header, "", 1)
	report, err := gprof.ParseString(text)
	require.NoError(t, err)
	require.Empty(t, report.Sections)

	_, ok := report.Root()
	require.False(t, ok)
	_, err = report.Node(0)
	require.ErrorIs(t, err, gprof.ErrNoRoot)
}

func TestParseEndMarkerMidStream(t *testing.T) {
	text := strings.Join([]string{
		header,
		"[1]    100.0    1.0000    2.0000       5         A [1]",
		separator,
		" This table describes the call tree of the program, and was sorted by",
		"[2]     16.7    0.5000    0.0000       3         B [2]",
		separator,
	}, "\n")
	report, err := gprof.ParseString(text)
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)

	_, ok := report.Lookup(2)
	require.False(t, ok)
}

func TestParseTrailingSection(t *testing.T) {
	text := strings.Join([]string{
		header,
		"[1]    100.0    1.0000    0.0000       1         A [1]",
		separator,
		"[2]     10.0    0.5000    0.0000       3         B [2]",
		"",
	}, "\n")
	report, err := gprof.ParseString(text)
	require.NoError(t, err)
	require.Len(t, report.Sections, 2)

	// Blank lines after the last separator do not add a placeholder.
	report, err = gprof.ParseString(header + "\n[1]    100.0    1.0000    0.0000       1         A [1]\n---\n\n\n")
	require.NoError(t, err)
	require.Len(t, report.Sections, 1)
}

func TestParseIgnoredLinesInSection(t *testing.T) {
	text := strings.Join([]string{
		header,
		"                                                 <spontaneous>",
		"[1]    100.0    1.0000    2.0000       5         A [1]",
		"                                                 <spontaneous>",
		"                0.5000    0.0000       3/3           B [2]",
		"[7] unrelated (7)",
		"                0.2500    0.0000       1/1           C [3]",
		separator,
		"[2]     16.7    0.5000    0.0000       3         B [2]",
		separator,
		"[3]      8.3    0.2500    0.0000       1         C [3]",
		separator,
	}, "\n")
	report, err := gprof.ParseString(text)
	require.NoError(t, err)

	a, ok := report.Lookup(1)
	require.True(t, ok)
	require.Empty(t, a.Callers)
	require.Len(t, a.Callees, 2)
	require.Equal(t, "B", a.Callees[0].Name)
	require.Equal(t, "C", a.Callees[1].Name)

	root, err := report.Node(0)
	require.NoError(t, err)
	require.Len(t, root.Children, 2)
	require.Equal(t, "B", root.Children[0].Name)
	require.Equal(t, "C", root.Children[1].Name)
}

func TestParseUnresolved(t *testing.T) {
	text := strings.Join([]string{
		header,
		"[1]    100.0    1.0000    2.0000       5         A [1]",
		"                0.5000    0.0000       3/3           Missing [9]",
		separator,
	}, "\n")
	_, err := gprof.ParseString(text)
	require.ErrorIs(t, err, gprof.ErrUnresolved)

	var unresolved *gprof.UnresolvedError
	require.True(t, errors.As(err, &unresolved))
	require.Equal(t, 9, unresolved.Callee.Index)
	require.Equal(t, "A", unresolved.Caller.Name)
	require.Equal(t, 0, unresolved.Position)
}

func TestParseDuplicateIndex(t *testing.T) {
	text := strings.Join([]string{
		header,
		"[1]    100.0    1.0000    2.0000       5         A [1]",
		separator,
		"[1]     50.0    1.0000    0.0000       5         A [1]",
		separator,
	}, "\n")
	_, err := gprof.ParseString(text)
	require.ErrorIs(t, err, gprof.ErrDuplicateIndex)
}

func TestParseOrderIndependent(t *testing.T) {
	// B is described before A, resolution must not depend on it.
	text := strings.Join([]string{
		header,
		"[2]     16.7    0.5000    0.0000       3         B [2]",
		separator,
		"[1]    100.0    1.0000    2.0000       5         A [1]",
		"                0.5000    0.0000       3/3           B [2]",
		separator,
	}, "\n")
	report, err := gprof.ParseString(text)
	require.NoError(t, err)

	node, err := report.NodeFor(1, 0)
	require.NoError(t, err)
	require.Len(t, node.Children, 1)
	require.Equal(t, "B", node.Children[0].Name)
}

func TestParseCycles(t *testing.T) {
	report, err := gprof.ParseString(readTestdata(t, "recursive.txt"))
	require.NoError(t, err)
	require.Equal(t, [][]int{{2, 3}}, report.Cycles())

	visit, ok := report.Lookup(2)
	require.True(t, ok)
	require.Equal(t, 1, visit.Primary.Cycle)
	require.Equal(t, 3, visit.Primary.Calls)
	require.Equal(t, 2, visit.Primary.TotalCalls)

	root, err := report.Node(0)
	require.NoError(t, err)
	require.Equal(t, "walk", root.Name)

	var recursive []string
	root.Walk(func(n *gprof.Node, stack []*gprof.Node) {
		if n.Recursive {
			recursive = append(recursive, n.Name)
			require.Empty(t, n.Children)
			require.Len(t, stack, 3)
		}
	})
	require.Equal(t, []string{"visit <cycle 1>"}, recursive)

	visitNode := root.Children[0]
	require.Equal(t, "visit <cycle 1>", visitNode.Name)
	require.Equal(t, "visit <cycle 1>: 2.0000", visitNode.Label)
}

func TestParseIdempotent(t *testing.T) {
	text := readTestdata(t, "simple.txt")
	first, err := gprof.ParseString(text)
	require.NoError(t, err)
	second, err := gprof.ParseString(text)
	require.NoError(t, err)

	a, err := first.Node(0)
	require.NoError(t, err)
	b, err := second.Node(0)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}

func TestParseFreshState(t *testing.T) {
	first, err := gprof.ParseString(readTestdata(t, "simple.txt"))
	require.NoError(t, err)
	second, err := gprof.ParseString(twoFunctions)
	require.NoError(t, err)

	_, ok := first.Lookup(4)
	require.True(t, ok)
	_, ok = second.Lookup(4)
	require.False(t, ok, "index only present in the first report")
}

func TestParseReader(t *testing.T) {
	report, err := gprof.Parse(strings.NewReader(twoFunctions))
	require.NoError(t, err)
	root, ok := report.Root()
	require.True(t, ok)
	require.Equal(t, "A", root.Name)
}

func TestTooltip(t *testing.T) {
	require.Equal(t, "compute: 0.0800", gprof.Tooltip("compute(int)", 0.08))
	require.Equal(t, "helper: 1.2346", gprof.Tooltip("helper", 1.23456))
	require.Equal(t, "operator new: 0.0000", gprof.Tooltip("operator new(unsigned long)", 0))
}
