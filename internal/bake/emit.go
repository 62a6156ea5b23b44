// Package bake renders a computed Schedule over a stagegraph.Graph into a
// bake configuration: one target per internal non-anonymous stage, one
// group per batch. Formatting must be deterministic so two runs on the
// same inputs produce byte-identical files; this is delegated to
// hashicorp/hcl/v2's hclwrite, the same HCL writer docker/buildx itself
// uses to produce bake files, instead of hand-rolled string concatenation.
package bake

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/wharflab/stagebake/internal/schedule"
	"github.com/wharflab/stagebake/internal/stagegraph"
)

// Options configures header provenance metadata.
type Options struct {
	// SourceDir is the directory the tree walk started from, noted in the
	// header comment for provenance.
	SourceDir string
	// Timestamp is an optional RFC3339 string included in the header.
	// Left empty by default so output stays deterministic across runs;
	// callers that want a timestamped header must supply one explicitly.
	Timestamp string
}

// Emit renders the schedule and graph as HCL bake-file bytes.
func Emit(g *stagegraph.Graph, sched schedule.Schedule, opts Options) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	targets := sortedInternalAliases(g)
	for _, alias := range targets {
		node := g.Nodes[alias]
		block := body.AppendNewBlock("target", []string{alias})
		tb := block.Body()
		tb.SetAttributeValue("context", cty.StringVal(contextDir(node.Stage.OriginFile)))
		tb.SetAttributeValue("dockerfile", cty.StringVal(node.Stage.OriginFile))
		tb.SetAttributeValue("target", cty.StringVal(alias))
		body.AppendNewline()
	}

	for i, batch := range sched {
		members := make([]string, len(batch))
		copy(members, batch)
		sort.Strings(members)

		groupName := fmt.Sprintf("group%d", i+1)
		block := body.AppendNewBlock("group", []string{groupName})
		gb := block.Body()

		values := make([]cty.Value, len(members))
		for j, m := range members {
			values[j] = cty.StringVal(m)
		}
		if len(values) == 0 {
			gb.SetAttributeValue("targets", cty.ListValEmpty(cty.String))
		} else {
			gb.SetAttributeValue("targets", cty.ListVal(values))
		}
		if i < len(sched)-1 {
			body.AppendNewline()
		}
	}

	out := header(opts)
	out = append(out, f.Bytes()...)
	return out, nil
}

// sortedInternalAliases returns every internal, non-anonymous alias in
// lexicographic order: emission must be deterministic, and the graph's
// own map iteration is not.
func sortedInternalAliases(g *stagegraph.Graph) []string {
	aliases := g.InternalAliases()
	sort.Strings(aliases)
	return aliases
}

// contextDir derives the build context directory for a target from its
// origin file's directory.
func contextDir(originFile string) string {
	dir := filepath.Dir(originFile)
	if dir == "" {
		return "."
	}
	return dir
}

// header renders the provenance comment block preceding the HCL body.
func header(opts Options) []byte {
	var buf bytes.Buffer
	buf.WriteString("// Generated by stagebake.\n")
	if opts.SourceDir != "" {
		fmt.Fprintf(&buf, "// Source: %s\n", opts.SourceDir)
	}
	if opts.Timestamp != "" {
		fmt.Fprintf(&buf, "// Generated at: %s\n", opts.Timestamp)
	}
	buf.WriteString("\n")
	return buf.Bytes()
}
