package diagnostics

import (
	"encoding/json"
	"io"
)

// JSONReporter renders a Report as a single machine-readable JSON document.
type JSONReporter struct {
	w io.Writer
}

// jsonExternalRef mirrors stagegraph.ExternalRef with a stringified Kind,
// since json.Marshal on a NodeKind int would otherwise emit an opaque number.
type jsonExternalRef struct {
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	DependentStages []string `json:"dependent_stages"`
}

type jsonAliasCollision struct {
	Alias string `json:"alias"`
	First string `json:"first"`
	Later string `json:"later"`
}

type jsonTagWarning struct {
	Alias        string `json:"alias"`
	StageTag     string `json:"stage_tag"`
	ReferenceTag string `json:"reference_tag"`
	ReferencedBy string `json:"referenced_by"`
	Line         int    `json:"line"`
}

type jsonReport struct {
	FilesScanned int                  `json:"files_scanned"`
	StagesFound  int                  `json:"stages_found"`
	External     []jsonExternalRef    `json:"external_references"`
	Collisions   []jsonAliasCollision `json:"alias_collisions"`
	TagWarnings  []jsonTagWarning     `json:"tag_warnings"`
	Unreachable  []string             `json:"unreachable_stages,omitempty"`
	Cycle        []string             `json:"cycle,omitempty"`
}

// Report implements Reporter.
func (r *JSONReporter) Report(rep Report) error {
	out := jsonReport{
		FilesScanned: rep.FilesScanned,
		StagesFound:  rep.StagesFound,
		External:     make([]jsonExternalRef, 0, len(rep.External)),
		Collisions:   make([]jsonAliasCollision, 0, len(rep.Collisions)),
		TagWarnings:  make([]jsonTagWarning, 0, len(rep.TagWarnings)),
	}

	for _, e := range rep.External {
		out.External = append(out.External, jsonExternalRef{
			Name:            e.Name,
			Kind:            e.Kind.String(),
			DependentStages: e.DependentStages,
		})
	}
	for _, c := range rep.Collisions {
		out.Collisions = append(out.Collisions, jsonAliasCollision{
			Alias: c.Alias,
			First: c.First,
			Later: c.Later,
		})
	}
	for _, w := range rep.TagWarnings {
		out.TagWarnings = append(out.TagWarnings, jsonTagWarning{
			Alias:        w.Alias,
			StageTag:     w.StageTag,
			ReferenceTag: w.ReferenceTag,
			ReferencedBy: w.ReferencedBy,
			Line:         w.Line,
		})
	}
	if rep.Unreachable != nil {
		out.Unreachable = rep.Unreachable
	}
	if rep.Cycle != nil {
		out.Cycle = rep.Cycle.Nodes
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
