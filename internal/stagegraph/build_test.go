package stagegraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, path, content string) []Stage {
	t.Helper()
	stages, err := ParseBytes(path, []byte(content))
	require.NoError(t, err)
	return stages
}

func TestBuild_CrossFileInternalEdge(t *testing.T) {
	a := mustParse(t, "a/Dockerfile", "FROM golang:1.22 AS builder\n")
	b := mustParse(t, "b/Dockerfile", "FROM alpine\nCOPY --from=builder /app /app\n")

	g := Build([][]Stage{a, b})

	require.Contains(t, g.Nodes, "builder")
	require.Equal(t, NodeInternal, g.Nodes["builder"].Kind)

	want := []ResolvedEdge{{From: "builder", To: SyntheticAlias("b/Dockerfile", 0), Kind: EdgeCopy}}
	if diff := cmp.Diff(want, g.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ExternalBase(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM ubuntu:22.04 AS base\n")
	g := Build([][]Stage{a})

	require.Len(t, g.External, 1)
	require.Equal(t, "ubuntu", g.External[0].Name)
	require.Equal(t, NodeExternalBase, g.External[0].Kind)
	require.Equal(t, []string{"base"}, g.External[0].DependentStages)
}

func TestBuild_ExternalPromotedToDepWhenAlsoCopied(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM tool:1.0 AS base\nFROM alpine\nCOPY --from=tool /bin/tool /bin/tool\n")
	g := Build([][]Stage{a})

	require.Len(t, g.External, 2) // alpine (second stage's base) sorts before tool
	require.Equal(t, "tool", g.External[1].Name)
	require.Equal(t, NodeExternalDep, g.External[1].Kind)
	require.ElementsMatch(t, []string{"base", SyntheticAlias("Dockerfile", 1)}, g.External[1].DependentStages)
}

func TestBuild_AliasCollisionFirstWins(t *testing.T) {
	a := mustParse(t, "a/Dockerfile", "FROM golang:1.22 AS builder\nRUN echo a\n")
	b := mustParse(t, "b/Dockerfile", "FROM golang:1.23 AS builder\nRUN echo b\n")

	g := Build([][]Stage{a, b})

	require.Len(t, g.Collisions, 1)
	require.Equal(t, AliasCollision{Alias: "builder", First: "a/Dockerfile", Later: "b/Dockerfile"}, g.Collisions[0])
	require.Equal(t, "a/Dockerfile", g.Nodes["builder"].Stage.OriginFile)
}

func TestBuild_SelfLoopDropped(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM alpine AS builder\nCOPY --from=builder /x /x\n")
	g := Build([][]Stage{a})
	require.Empty(t, g.Edges)
}

func TestBuild_TagMismatchWarning(t *testing.T) {
	a := mustParse(t, "a/Dockerfile", "FROM golang:1.22 AS builder\n")
	b := mustParse(t, "b/Dockerfile", "FROM alpine\nCOPY --from=builder:1.23 /app /app\n")

	g := Build([][]Stage{a, b})

	require.Len(t, g.TagWarnings, 1)
	w := g.TagWarnings[0]
	require.Equal(t, "builder", w.Alias)
	require.Equal(t, "", w.StageTag)
	require.Equal(t, "1.23", w.ReferenceTag)
	require.Equal(t, "b/Dockerfile", w.ReferencedBy)
}

func TestBuild_DuplicateEdgesCollapse(t *testing.T) {
	a := mustParse(t, "a/Dockerfile", "FROM alpine AS builder\n")
	b := mustParse(t, "b/Dockerfile",
		"FROM alpine\nCOPY --from=builder /x /x\nCOPY --from=builder /y /y\n")

	g := Build([][]Stage{a, b})
	require.Len(t, g.Edges, 1)
}

func TestBuild_NumericIndexResolvesNamedStage(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM golang:1.22 AS builder\nFROM alpine\nCOPY --from=0 /app /app\n")
	g := Build([][]Stage{a})

	// Only the two FROM images are external; "0" is not.
	require.Equal(t, []ExternalRef{
		{Name: "alpine", Kind: NodeExternalBase, DependentStages: []string{SyntheticAlias("Dockerfile", 1)}},
		{Name: "golang", Kind: NodeExternalBase, DependentStages: []string{"builder"}},
	}, g.External)
	want := []ResolvedEdge{{From: "builder", To: SyntheticAlias("Dockerfile", 1), Kind: EdgeCopy}}
	if diff := cmp.Diff(want, g.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_NumericIndexResolvesAnonymousStage(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM golang:1.22\nFROM alpine\nCOPY --from=0 /app /app\n")
	g := Build([][]Stage{a})

	// Only the two FROM images are external; "0" is not.
	require.Equal(t, []ExternalRef{
		{Name: "alpine", Kind: NodeExternalBase, DependentStages: []string{SyntheticAlias("Dockerfile", 1)}},
		{Name: "golang", Kind: NodeExternalBase, DependentStages: []string{SyntheticAlias("Dockerfile", 0)}},
	}, g.External)
	want := []ResolvedEdge{{From: SyntheticAlias("Dockerfile", 0), To: SyntheticAlias("Dockerfile", 1), Kind: EdgeCopy}}
	if diff := cmp.Diff(want, g.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_NumericIndexInRunMount(t *testing.T) {
	a := mustParse(t, "Dockerfile",
		"FROM alpine AS base\nFROM alpine\nRUN --mount=type=bind,from=0,source=/x,target=/x echo hi\n")
	g := Build([][]Stage{a})

	require.Len(t, g.Edges, 1)
	require.Equal(t, "base", g.Edges[0].From)
	require.Equal(t, EdgeMount, g.Edges[0].Kind)
}

func TestBuild_NumericIndexOutOfRangeIsNotExternal(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM alpine AS base\nFROM alpine\nCOPY --from=5 /app /app\n")
	g := Build([][]Stage{a})

	require.Empty(t, g.Edges)
	// Only the FROM image is external; "5" is not.
	require.Equal(t, []ExternalRef{
		{Name: "alpine", Kind: NodeExternalBase, DependentStages: []string{"base", SyntheticAlias("Dockerfile", 1)}},
	}, g.External)
}

func TestBuild_NumericIndexForwardReferenceIgnored(t *testing.T) {
	a := mustParse(t, "Dockerfile", "FROM alpine\nCOPY --from=1 /app /app\nFROM alpine AS later\n")
	g := Build([][]Stage{a})

	require.Empty(t, g.Edges)
	// Only the FROM image is external; "1" is not.
	require.Equal(t, []ExternalRef{
		{Name: "alpine", Kind: NodeExternalBase, DependentStages: []string{SyntheticAlias("Dockerfile", 0), "later"}},
	}, g.External)
}

func TestBuild_Deterministic(t *testing.T) {
	a := mustParse(t, "a/Dockerfile", "FROM ubuntu AS base\nFROM alpine AS builder\nCOPY --from=base /x /x\n")

	g1 := Build([][]Stage{a})
	g2 := Build([][]Stage{a})

	if diff := cmp.Diff(g1, g2, cmpopts.IgnoreFields(Node{}, "Stage")); diff != "" {
		t.Errorf("Build is not deterministic across runs (-first +second):\n%s", diff)
	}
}
