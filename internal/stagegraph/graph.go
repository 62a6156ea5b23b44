package stagegraph

// NodeKind classifies a distinct image reference in the parsed corpus.
type NodeKind int

const (
	// NodeInternal means the reference's name matches a declared alias.
	NodeInternal NodeKind = iota
	// NodeExternalBase means the reference is only ever used as a FROM
	// base, never as a build artifact — a registry image the driver pulls.
	NodeExternalBase
	// NodeExternalDep means the reference is consumed via COPY/RUN-mount
	// but declared nowhere locally.
	NodeExternalDep
)

// String returns a human-readable name for the node kind.
func (k NodeKind) String() string {
	switch k {
	case NodeInternal:
		return "internal"
	case NodeExternalBase:
		return "external-base"
	case NodeExternalDep:
		return "external-dep"
	default:
		return "unknown"
	}
}

// Node is one distinct graph vertex: either an internal stage or an
// external (registry-supplied) image.
type Node struct {
	// Alias is the internal stage alias, or the external image's Name for
	// external nodes.
	Alias string
	Kind  NodeKind
	// Stage is non-nil for internal nodes.
	Stage *Stage
}

// ResolvedEdge is an internal-to-internal edge after resolution: the only
// shape the batch scheduler needs to see (external predecessors never gate
// batching and are dropped at this stage).
type ResolvedEdge struct {
	From string // predecessor alias
	To   string // dependent alias
	Kind EdgeKind
}

// ExternalRef records one use of an external image reference, surfaced in
// diagnostics so an operator can verify none were expected to be local.
type ExternalRef struct {
	// Name is the external image's canonicalized name.
	Name string
	Kind NodeKind // NodeExternalBase or NodeExternalDep
	// DependentStages lists the internal stages (by alias) that reference
	// this external image, in first-seen order.
	DependentStages []string
}

// AliasCollision records two stages across different files declaring the
// same alias. The first declaration wins and is used for resolution; the
// collision is reported, never silently ignored.
type AliasCollision struct {
	Alias string
	First string // origin_file of the winning declaration
	Later string // origin_file of the shadowed declaration
}

// TagWarning records a reference to an internal stage whose tag differs
// from that stage's own declared tag, if it was declared with one.
type TagWarning struct {
	Alias        string
	StageTag     string // the tag, if any, the stage itself was declared with
	ReferenceTag string
	ReferencedBy string // origin_file of the edge that carried the mismatch
	Line         int
}

// Graph is the merged, classified, deduplicated global stage graph.
type Graph struct {
	// Nodes holds every internal stage, keyed by alias. Anonymous stages
	// are included under their synthetic alias: they consume other stages
	// like any stage, and are a predecessor only through a numeric
	// --from=<N> index within their own file, since nothing can name them.
	// Two anonymous stages with the same synthetic alias (same position in
	// same-named files in different directories) share one entry, the
	// later one replacing the earlier.
	Nodes map[string]*Node

	// Edges is the deduplicated set of internal-to-internal edges.
	Edges []ResolvedEdge

	// External is every distinct external reference discovered, sorted by
	// Name for deterministic diagnostics output.
	External []ExternalRef

	// Collisions lists every cross-file alias collision encountered.
	Collisions []AliasCollision

	// TagWarnings lists every internal reference whose tag didn't match
	// the referenced stage's own declared tag.
	TagWarnings []TagWarning
}

// InternalAliases returns every internal, non-anonymous alias, used by the
// scheduler and emitter (anonymous stages are excluded from both batching
// output and bake targets, since nothing can reference them by name).
func (g *Graph) InternalAliases() []string {
	aliases := make([]string, 0, len(g.Nodes))
	for alias, n := range g.Nodes {
		if n.Kind == NodeInternal && !n.Stage.Anonymous {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}

// Predecessors returns the internal aliases that alias directly depends on.
func (g *Graph) Predecessors(alias string) []string {
	var preds []string
	for _, e := range g.Edges {
		if e.To == alias {
			preds = append(preds, e.From)
		}
	}
	return preds
}

// Successors returns the internal aliases that directly depend on alias.
func (g *Graph) Successors(alias string) []string {
	var succ []string
	for _, e := range g.Edges {
		if e.From == alias {
			succ = append(succ, e.To)
		}
	}
	return succ
}

// Reachable reports whether target is reachable by walking predecessor
// edges backward from start (i.e. start transitively depends on target).
func (g *Graph) Reachable(start, target string) bool {
	if start == target {
		return true
	}
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, pred := range g.Predecessors(cur) {
			if pred == target {
				return true
			}
			if !visited[pred] {
				queue = append(queue, pred)
			}
		}
	}
	return false
}

// UnreachableLeaves returns internal, non-anonymous aliases with no internal
// dependents (no FROM, COPY --from or RUN --mount from= in the graph
// resolves to them). Unlike a single Dockerfile build, this tree has no
// single "final stage" to anchor reachability to.
func (g *Graph) UnreachableLeaves() []string {
	var leaves []string
	for alias, n := range g.Nodes {
		if n.Kind != NodeInternal || n.Stage.Anonymous {
			continue
		}
		if len(g.Successors(alias)) == 0 {
			leaves = append(leaves, alias)
		}
	}
	return leaves
}
