package transformer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"taxiprep/internal/schema"
)

// MaxSamples is how many rejected rows a report keeps for the summary.
const MaxSamples = 5

// Sample identifies one rejected row.
type Sample struct {
	Reason string
	Source string
	Line   int
}

func (s Sample) String() string {
	if s.Source == "" {
		return s.Reason
	}
	return fmt.Sprintf("%s (%s:%d)", s.Reason, s.Source, s.Line)
}

// Report is what one stage did to the batch.
type Report struct {
	Stage string
	In    int
	Out   int
	// Dropped counts removed rows by reason.
	Dropped map[string]int
	// Samples holds the first MaxSamples rejected rows.
	Samples []Sample
	// Notes carries stage-specific figures such as computed caps.
	Notes    map[string]float64
	Duration time.Duration
}

// Reject records that rec was removed for reason.
func (r *Report) Reject(reason string, rec *schema.Record) {
	if r.Dropped == nil {
		r.Dropped = make(map[string]int)
	}
	r.Dropped[reason]++
	if len(r.Samples) < MaxSamples {
		r.Samples = append(r.Samples, Sample{Reason: reason, Source: rec.Source, Line: rec.Line})
	}
}

// Note records a named figure.
func (r *Report) Note(key string, v float64) {
	if r.Notes == nil {
		r.Notes = make(map[string]float64)
	}
	r.Notes[key] = v
}

// DroppedTotal is the number of rows removed for any reason.
func (r Report) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Reasons returns the drop reasons in name order.
func (r Report) Reasons() []string {
	out := make([]string, 0, len(r.Dropped))
	for k := range r.Dropped {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Summary renders the report on one line, e.g.
//
//	integrity: in=1000 out=990 duration-sign=6 distance-nonpositive=4
func (r Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: in=%d out=%d", r.Stage, r.In, r.Out)
	for _, k := range r.Reasons() {
		fmt.Fprintf(&b, " %s=%d", k, r.Dropped[k])
	}
	notes := make([]string, 0, len(r.Notes))
	for k := range r.Notes {
		notes = append(notes, k)
	}
	slices.Sort(notes)
	for _, k := range notes {
		fmt.Fprintf(&b, " %s=%g", k, r.Notes[k])
	}
	return b.String()
}

// Rule is a named row predicate. Rows for which Keep returns false are
// rejected with Reason.
type Rule struct {
	Reason string
	Keep   func(*schema.Record) bool
}

// ApplyRules filters b in place. Each row is checked against rules in order
// and rejected by the first rule it fails.
func ApplyRules(b *schema.Batch, rep *Report, rules []Rule) {
	b.Filter(func(rec *schema.Record) bool {
		for _, rule := range rules {
			if !rule.Keep(rec) {
				rep.Reject(rule.Reason, rec)
				return false
			}
		}
		return true
	})
}
