// Package stagegraph implements the cross-file stage dependency resolver:
// parsing every build file in a tree into Stage records, merging them into
// one global Graph, and classifying every reference as internal or
// external. It is the heart of the system.
package stagegraph

import "fmt"

// EdgeKind identifies where an edge came from.
type EdgeKind int

const (
	// EdgeBase is the stage's FROM clause.
	EdgeBase EdgeKind = iota
	// EdgeCopy is a COPY --from=<ref> inside the stage body.
	EdgeCopy
	// EdgeMount is a RUN --mount=type=bind,from=<ref>,... inside the stage body.
	EdgeMount
)

// String returns a human-readable name for the edge kind.
func (k EdgeKind) String() string {
	switch k {
	case EdgeBase:
		return "base"
	case EdgeCopy:
		return "copy"
	case EdgeMount:
		return "mount"
	default:
		return "unknown"
	}
}

// Edge is a directed "must exist before" reference emitted by a stage.
// Target resolution (internal stage vs external image) happens later, in
// the Graph Builder — a Stage only knows what it asked for, not what it got.
type Edge struct {
	// Ref is the raw reference string as written in the source (e.g.
	// "builder", "ubuntu:22.04", "0").
	Ref string
	// Kind is where this edge came from.
	Kind EdgeKind
	// Line is the 1-based source line the edge was declared on.
	Line int
}

// Stage is a build unit declared by a stage-introduction line.
type Stage struct {
	// Alias is the local name assigned to the stage (its AS clause), or a
	// synthetic "<basename>#<position>" name if the stage is anonymous.
	Alias string
	// Anonymous is true if the stage had no AS clause; anonymous stages
	// get an Alias for internal bookkeeping but are never emitted as bake
	// targets, and no other stage can reference them by name (only by a
	// numeric --from=<N> index within the same file).
	Anonymous bool
	// BaseRef is the image reference this stage derives from, verbatim.
	BaseRef string
	// BaseLine is the 1-based source line of the FROM instruction.
	BaseLine int
	// OriginFile is the path of the file that declared this stage.
	OriginFile string
	// Position is the stage's zero-based index within OriginFile.
	Position int
	// Edges is the ordered set of COPY/RUN-mount references the stage
	// body consumes, in source order. The base-image edge is tracked
	// separately as BaseRef/BaseLine, not duplicated here.
	Edges []Edge
}

// String implements fmt.Stringer for debug output and test failure messages.
func (s Stage) String() string {
	return fmt.Sprintf("%s (%s#%d, from %s)", s.Alias, s.OriginFile, s.Position, s.BaseRef)
}

// SyntheticAlias builds the synthetic alias assigned to an anonymous stage.
func SyntheticAlias(originFile string, position int) string {
	return fmt.Sprintf("%s#%d", baseName(originFile), position)
}

// baseName returns the final path element of p without relying on
// path/filepath (which is platform-separator-sensitive); origin files are
// always slash-normalized before reaching this package.
func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
