// Package gprof parses the call graph section of a gprof text report and
// assembles it into a rooted, value weighted call tree.
package gprof

import (
	"fmt"
	"io"
	"strings"
)

// Parse reads a whole report and assembles it. Every call returns a new
// Report, nothing is shared between parses.
func Parse(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return ParseString(string(data))
}

// ParseString splits text on line feeds and assembles the report.
func ParseString(text string) (*Report, error) {
	return ParseLines(SplitLines(text))
}

// ParseLines assembles a report from lines that are already split.
func ParseLines(lines []string) (*Report, error) {
	return Assemble(SplitSections(lines))
}

// SplitLines splits on line feeds. A carriage return left at the end of a
// line is dropped.
func SplitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// SplitSections groups the lines after the first header into sections and
// parses each of them. Lines before the first header are skipped, and without
// a header there are no sections at all. The end marker stops the split
// wherever it appears.
func SplitSections(lines []string) []Section {
	start := -1
	for i, line := range lines {
		if Classify(line).Kind == KindHeader {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var (
		sections []Section
		current  []string
	)
	for _, line := range lines[start+1:] {
		switch Classify(line).Kind {
		case KindEnd:
			return sections
		case KindSeparator:
			sections = append(sections, ParseSection(current))
			current = nil
			continue
		}
		current = append(current, line)
	}

	// Input ended without the closing narrative. Keep the trailing section
	// only when it describes a function.
	if s := ParseSection(current); s.Found {
		sections = append(sections, s)
	}
	return sections
}
