package report

import (
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gavinmiller/pitwall/internal/util"
)

// RunSummary is the structured outcome of one component run. Components
// return it instead of mutating process-wide counters so they compose
// and test in isolation.
type RunSummary struct {
	Processed int
	Inserted  int
	Updated   int
	Skipped   int
	Failed    int

	// skip reasons -> count; identity collisions are NOT in here
	SkipReasons map[string]int

	// ambiguous-identity warnings, surfaced loudly and separately
	IdentityWarnings []string
}

// NewRunSummary returns an empty summary
func NewRunSummary() *RunSummary {
	return &RunSummary{
		SkipReasons: make(map[string]int),
	}
}

// Skip counts one skipped record under a reason
func (r *RunSummary) Skip(reason string) {
	r.Skipped++
	r.SkipReasons[reason]++
}

// Merge folds another summary into this one
func (r *RunSummary) Merge(other *RunSummary) {
	if other == nil {
		return
	}
	r.Processed += other.Processed
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	for reason, count := range other.SkipReasons {
		r.SkipReasons[reason] += count
	}
	r.IdentityWarnings = append(r.IdentityWarnings, other.IdentityWarnings...)
}

// Print writes the summary to the console log
func (r *RunSummary) Print(title string) {
	util.SuccessLog("=== %s ===", title)
	util.InfoLog("  Processed: %s", humanize.Comma(int64(r.Processed)))
	util.InfoLog("  Inserted:  %s", humanize.Comma(int64(r.Inserted)))
	util.InfoLog("  Updated:   %s", humanize.Comma(int64(r.Updated)))
	if r.Skipped > 0 {
		util.WarnLog("  Skipped:   %s", humanize.Comma(int64(r.Skipped)))
		for _, reason := range sortedReasons(r.SkipReasons) {
			util.WarnLog("    %s: %d", reason, r.SkipReasons[reason])
		}
	}
	if r.Failed > 0 {
		util.ErrorLog("  Failed:    %s", humanize.Comma(int64(r.Failed)))
	}
	for _, warning := range r.IdentityWarnings {
		util.ErrorLog("  IDENTITY COLLISION: %s", warning)
	}
}

func sortedReasons(reasons map[string]int) []string {
	keys := make([]string, 0, len(reasons))
	for reason := range reasons {
		keys = append(keys, reason)
	}
	sort.Strings(keys)
	return keys
}
