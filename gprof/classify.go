package gprof

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind is the category a single report line falls into.
type Kind int

const (
	KindNoise Kind = iota
	KindHeader
	KindPrimary
	// KindRelated is a caller or callee line. Both share one shape, the
	// position relative to the primary line decides which one it is.
	KindRelated
	KindSeparator
	KindIgnore
	KindEnd
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindPrimary:
		return "primary"
	case KindRelated:
		return "related"
	case KindSeparator:
		return "separator"
	case KindIgnore:
		return "ignore"
	case KindEnd:
		return "end"
	default:
		return "noise"
	}
}

// EndMarker is the first sentence of the narrative gprof prints after the
// call graph table.
const EndMarker = "This table describes the call tree of the program, and was sorted by"

var (
	headerRegex = regexp.MustCompile(`^\s+called(?:/total)?\s+parents\s*$` +
		`|^index\s+%time\s+self\s+descendents\s+called\+self\s+name\s+index\s*$` +
		`|^\s+called(?:/total)?\s+children\s*$` +
		`|^index\s+%\s+time\s+self\s+children\s+called\s+name\s*$`)
	primaryRegex = regexp.MustCompile(`^\[(?P<index>\d+)\]\s+(?P<percent>\d+\.\d+)\s+(?P<self>\d+\.\d+)\s+(?P<children>\d+\.\d+)\s+` +
		`(?:(?P<calls>\d+)(?:\+(?P<total>\d+))?\s+)?` +
		`(?P<name>\S.*?(?:\s+<cycle (?P<cycle>\d+)>)?)\s\[(?P<ref>\d+)\]\s*$`)
	relatedRegex = regexp.MustCompile(`^\s+(?:(?P<self>\d+\.\d+)\s+)?(?:(?P<children>\d+\.\d+)\s+)?` +
		`(?P<calls>\d+)(?:/(?P<total>\d+))?\s+` +
		`(?P<name>\S.*?(?:\s+<cycle (?P<cycle>\d+)>)?)\s\[(?P<index>\d+)\]\s*$`)
	ignoreRegex    = regexp.MustCompile(`^\s*<spontaneous>\s*$|^.*\(\d+\)\s*$`)
	separatorRegex = regexp.MustCompile(`^--+\s*$`)
)

// Line is the result of classifying one line of report text. Entry is only
// populated for KindPrimary and KindRelated.
type Line struct {
	Kind  Kind
	Entry Record
}

// Classify categorizes a single line. It holds no state between calls.
func Classify(line string) Line {
	switch {
	case strings.Contains(line, EndMarker):
		return Line{Kind: KindEnd}
	case separatorRegex.MatchString(line):
		return Line{Kind: KindSeparator}
	case headerRegex.MatchString(line):
		return Line{Kind: KindHeader}
	}

	if m := primaryRegex.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindPrimary, Entry: newRecord(primaryRegex, m)}
	}
	if m := relatedRegex.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindRelated, Entry: newRecord(relatedRegex, m)}
	}
	if ignoreRegex.MatchString(line) {
		return Line{Kind: KindIgnore}
	}
	return Line{Kind: KindNoise}
}

func newRecord(re *regexp.Regexp, m []string) Record {
	group := func(name string) string {
		i := re.SubexpIndex(name)
		if i < 0 {
			return ""
		}
		return m[i]
	}

	r := Record{
		Index:        atoi(group("index")),
		Name:         group("name"),
		Cycle:        atoi(group("cycle")),
		PercentTime:  atof(group("percent")),
		SelfTime:     atof(group("self")),
		ChildrenTime: atof(group("children")),
		Calls:        atoi(group("calls")),
		TotalCalls:   atoi(group("total")),
	}
	r.Value = r.SelfTime + r.ChildrenTime
	return r
}

// The regexes only hand digits to these, an empty group means zero.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
