package diagnostics

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// TextReporter writes one line per diagnostic item, grouped by kind. It
// carries no color or syntax-highlighting dependency: the diagnostics
// surface here is a flat list of graph facts, not a source-annotated
// violation report, so a plain fmt.Fprintf rendering is the right tool.
type TextReporter struct {
	w io.Writer
}

// Report implements Reporter.
func (r *TextReporter) Report(rep Report) error {
	fmt.Fprintf(r.w, "scanned %d file(s), %d stage(s)\n", rep.FilesScanned, rep.StagesFound)

	if rep.Cycle != nil {
		nodes := append([]string(nil), rep.Cycle.Nodes...)
		sort.Strings(nodes)
		fmt.Fprintf(r.w, "\ncycle detected: %s\n", strings.Join(nodes, " -> "))
		return nil
	}

	if len(rep.Collisions) > 0 {
		fmt.Fprintln(r.w, "\nalias collisions:")
		for _, c := range rep.Collisions {
			fmt.Fprintf(r.w, "  %s: declared in %s, duplicated in %s\n", c.Alias, c.First, c.Later)
		}
	}

	if len(rep.TagWarnings) > 0 {
		fmt.Fprintln(r.w, "\ntag mismatches:")
		for _, w := range rep.TagWarnings {
			fmt.Fprintf(r.w, "  %s:%d: %s referenced as %q but stage declared as %q (in %s)\n",
				w.ReferencedBy, w.Line, w.Alias, w.ReferenceTag, w.StageTag, w.ReferencedBy)
		}
	}

	if len(rep.External) > 0 {
		fmt.Fprintln(r.w, "\nexternal references:")
		for _, e := range rep.External {
			deps := append([]string(nil), e.DependentStages...)
			sort.Strings(deps)
			fmt.Fprintf(r.w, "  %s [%s] <- %s\n", e.Name, e.Kind, strings.Join(deps, ", "))
		}
	}

	if len(rep.Unreachable) > 0 {
		fmt.Fprintln(r.w, "\nunreachable stages:")
		for _, alias := range rep.Unreachable {
			fmt.Fprintf(r.w, "  %s\n", alias)
		}
	}

	return nil
}
