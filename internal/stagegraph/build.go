package stagegraph

import (
	"sort"

	"github.com/wharflab/stagebake/internal/imageref"
)

// Build merges every file's parsed stages into one global Graph. stages
// must already be ordered deterministically by origin file path (the
// caller — internal/discovery plus the tree walker — owns that ordering);
// Build preserves whatever order it is given when breaking collision ties.
//
// Generalized from a single file's stagesByName table (built and consumed
// within one Build call) to a single authoritative alias table spanning
// every file, built in one pass before any edge is resolved.
func Build(allStages [][]Stage) *Graph {
	g := &Graph{Nodes: make(map[string]*Node)}

	alias := make(map[string]*Stage)    // name -> winning stage
	byFile := make(map[string][]*Stage) // origin file -> stages, indexed by Position
	externalIdx := make(map[string]int)

	// Pass 1: register every non-anonymous alias, recording collisions, and
	// index every stage (including anonymous ones) by origin file + position
	// so a numeric "COPY --from=<N>" can resolve against the same file's
	// stage list the way it would inside a single build.
	for _, fileStages := range allStages {
		for i := range fileStages {
			s := &fileStages[i]
			byFile[s.OriginFile] = append(byFile[s.OriginFile], s)

			if s.Anonymous {
				continue
			}
			name := imageref.Parse(s.Alias).Name
			if existing, ok := alias[name]; ok {
				g.Collisions = append(g.Collisions, AliasCollision{
					Alias: s.Alias,
					First: existing.OriginFile,
					Later: s.OriginFile,
				})
				continue
			}
			alias[name] = s
		}
	}

	// Pass 2: create a Node for every stage (internal by construction —
	// anonymous stages are internal bookkeeping nodes keyed by their
	// synthetic alias; nothing can reference them by name, only by a
	// numeric --from=<N> index within their own file).
	for _, fileStages := range allStages {
		for i := range fileStages {
			s := &fileStages[i]
			key := s.Alias
			if !s.Anonymous {
				key = imageref.Parse(s.Alias).Name
				if winner := alias[key]; winner != s {
					// Shadowed duplicate: same-alias declarations collapse to
					// one node, so the shadowed stage contributes no node of
					// its own and is never inserted into g.Nodes. Pass 3 skips
					// its references too: it yields no edges, external refs
					// or tag warnings.
					continue
				}
			}
			g.Nodes[key] = &Node{Alias: key, Kind: NodeInternal, Stage: s}
		}
	}

	// Pass 3: resolve every edge (base + body edges) against the alias
	// table. Unresolved references become external nodes, deduplicated by
	// canonical name; duplicate internal edges collapse; self-loops drop.
	seenEdge := make(map[ResolvedEdge]bool)
	for _, fileStages := range allStages {
		for i := range fileStages {
			s := &fileStages[i]
			toKey := s.Alias
			if !s.Anonymous {
				toKey = imageref.Parse(s.Alias).Name
				if winner := alias[toKey]; winner != s {
					continue // shadowed stage's edges don't feed the graph
				}
			}

			resolveReference(g, alias, byFile, &externalIdx, s, toKey, s.BaseRef, EdgeBase, s.BaseLine, seenEdge)
			for _, e := range s.Edges {
				resolveReference(g, alias, byFile, &externalIdx, s, toKey, e.Ref, e.Kind, e.Line, seenEdge)
			}
		}
	}

	sort.Slice(g.External, func(i, j int) bool { return g.External[i].Name < g.External[j].Name })
	return g
}

// resolveReference classifies one reference (ref) consumed by stage toKey
// and records the resulting edge/external-ref/tag-warning.
func resolveReference(
	g *Graph,
	alias map[string]*Stage,
	byFile map[string][]*Stage,
	externalIdx *map[string]int,
	stage *Stage,
	toKey string,
	ref string,
	kind EdgeKind,
	line int,
	seenEdge map[ResolvedEdge]bool,
) {
	if ref == "" {
		return
	}

	// A numeric ref ("COPY --from=0") addresses a stage by position within
	// the same file, never by name — check this first, mirroring how a
	// single build resolves "--from=<N>" against its own stage list.
	if idx, ok := imageref.IsNumericIndex(ref); ok {
		fileStages := byFile[stage.OriginFile]
		if idx >= 0 && idx < stage.Position && idx < len(fileStages) {
			target := fileStages[idx]
			fromKey := target.Alias
			if !target.Anonymous {
				fromKey = imageref.Parse(target.Alias).Name
				if winner := alias[fromKey]; winner != target {
					fromKey = imageref.Parse(winner.Alias).Name
				}
			}
			recordEdge(g, fromKey, toKey, kind, seenEdge)
		}
		// An out-of-range or forward numeric index is invalid Dockerfile
		// syntax; it resolves to nothing rather than being misclassified
		// as an external image reference.
		return
	}

	parsed := imageref.Parse(ref)
	target, found := alias[parsed.Name]
	if !found {
		recordExternal(g, externalIdx, parsed, kind, toKey)
		return
	}

	fromKey := imageref.Parse(target.Alias).Name

	if parsed.Tag != "" {
		stageTag := imageref.Parse(target.Alias).Tag
		if stageTag != parsed.Tag {
			g.TagWarnings = append(g.TagWarnings, TagWarning{
				Alias:        fromKey,
				StageTag:     stageTag,
				ReferenceTag: parsed.Tag,
				ReferencedBy: stage.OriginFile,
				Line:         line,
			})
		}
	}

	recordEdge(g, fromKey, toKey, kind, seenEdge)
}

// recordEdge appends a resolved internal-to-internal edge, dropping
// self-loops and collapsing duplicates already recorded for this build.
func recordEdge(g *Graph, fromKey, toKey string, kind EdgeKind, seenEdge map[ResolvedEdge]bool) {
	if fromKey == toKey {
		return // self-loop, dropped
	}
	edge := ResolvedEdge{From: fromKey, To: toKey, Kind: kind}
	if seenEdge[edge] {
		return
	}
	seenEdge[edge] = true
	g.Edges = append(g.Edges, edge)
}

// recordExternal classifies ref as external-base or external-dep and
// appends the dependent stage to its ExternalRef entry, creating one if
// this is the first time the name has been seen.
func recordExternal(g *Graph, externalIdx *map[string]int, parsed imageref.Ref, kind EdgeKind, dependent string) {
	nodeKind := NodeExternalDep
	if kind == EdgeBase {
		nodeKind = NodeExternalBase
	}

	if idx, ok := (*externalIdx)[parsed.Name]; ok {
		ext := &g.External[idx]
		// A reference already seen as external-dep is external-dep even
		// if later also used as a base; only pure-base references stay
		// external-base. Classification reflects how a name is used
		// across the whole tree, not any single occurrence.
		if ext.Kind == NodeExternalBase && nodeKind == NodeExternalDep {
			ext.Kind = NodeExternalDep
		}
		ext.DependentStages = append(ext.DependentStages, dependent)
		return
	}

	(*externalIdx)[parsed.Name] = len(g.External)
	g.External = append(g.External, ExternalRef{
		Name:            parsed.Name,
		Kind:            nodeKind,
		DependentStages: []string{dependent},
	})
}
