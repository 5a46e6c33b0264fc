package gprof

// Record is one function entry of the call graph. The same shape is used for
// the primary line of a section and for its caller and callee lines.
type Record struct {
	// Index identifies the function within one report.
	Index int `json:"index"`
	// Name is the text gprof prints, annotations such as "<cycle N>"
	// included.
	Name string `json:"name"`
	// Cycle is the N of a "<cycle N>" annotation, zero when absent.
	Cycle       int     `json:"cycle,omitempty"`
	PercentTime float64 `json:"percent_time,omitempty"`
	// SelfTime and ChildrenTime are in seconds.
	SelfTime     float64 `json:"self_time"`
	ChildrenTime float64 `json:"children_time"`
	Calls        int     `json:"calls"`
	// TotalCalls is the "+N" recursive calls of a primary line, or the "/N"
	// total of a caller or callee line.
	TotalCalls int `json:"total_calls,omitempty"`
	// Value is SelfTime + ChildrenTime.
	Value float64 `json:"value"`
}

// Section is the block of lines between two separators. It describes one
// function (Primary) together with its direct callers and callees.
type Section struct {
	Primary Record `json:"primary"`
	// Found is false when the section had no primary line, in which case
	// Primary holds zero values.
	Found   bool     `json:"found"`
	Callers []Record `json:"callers"`
	Callees []Record `json:"callees"`
}

// ParseSection builds a Section from the raw lines of one section. Related
// lines seen before the primary line are callers, the ones after are callees.
// Only the first primary line counts.
func ParseSection(lines []string) Section {
	var s Section
	for _, raw := range lines {
		line := Classify(raw)
		switch line.Kind {
		case KindPrimary:
			if s.Found {
				continue
			}
			s.Primary = line.Entry
			s.Found = true
		case KindRelated:
			if !s.Found {
				s.Callers = append(s.Callers, line.Entry)
				continue
			}
			s.Callees = append(s.Callees, line.Entry)
		}
	}
	return s
}
