package bake

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wharflab/stagebake/internal/schedule"
	"github.com/wharflab/stagebake/internal/stagegraph"
)

func graphWithStages(stages ...*stagegraph.Stage) *stagegraph.Graph {
	g := &stagegraph.Graph{Nodes: make(map[string]*stagegraph.Node)}
	for _, s := range stages {
		g.Nodes[s.Alias] = &stagegraph.Node{Alias: s.Alias, Kind: stagegraph.NodeInternal, Stage: s}
	}
	return g
}

func TestEmit_Deterministic(t *testing.T) {
	g := graphWithStages(
		&stagegraph.Stage{Alias: "a", OriginFile: "services/a/Dockerfile"},
		&stagegraph.Stage{Alias: "b", OriginFile: "services/b/Dockerfile"},
	)
	sched := schedule.Schedule{schedule.Batch{"a"}, schedule.Batch{"b"}}

	first, err := Emit(g, sched, Options{SourceDir: "/repo"})
	require.NoError(t, err)
	second, err := Emit(g, sched, Options{SourceDir: "/repo"})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEmit_TargetsAndGroups(t *testing.T) {
	g := graphWithStages(
		&stagegraph.Stage{Alias: "builder", OriginFile: "app/Dockerfile"},
		&stagegraph.Stage{Alias: "runtime", OriginFile: "app/Dockerfile"},
	)
	sched := schedule.Schedule{schedule.Batch{"builder"}, schedule.Batch{"runtime"}}

	out, err := Emit(g, sched, Options{})
	require.NoError(t, err)

	text := string(out)
	require.Contains(t, text, `target "builder"`)
	require.Contains(t, text, `target "runtime"`)
	require.Contains(t, text, `context    = "app"`) // hclwrite aligns "=" with the longer dockerfile attribute
	require.Contains(t, text, `dockerfile = "app/Dockerfile"`)
	require.Contains(t, text, `group "group1"`)
	require.Contains(t, text, `group "group2"`)
	require.Contains(t, text, `targets = ["builder"]`)
	require.Contains(t, text, `targets = ["runtime"]`)
}

func TestEmit_AnonymousStagesExcluded(t *testing.T) {
	g := graphWithStages(
		&stagegraph.Stage{Alias: "named", OriginFile: "Dockerfile"},
		&stagegraph.Stage{Alias: "Dockerfile#1", OriginFile: "Dockerfile", Anonymous: true},
	)
	sched := schedule.Schedule{schedule.Batch{"named"}}

	out, err := Emit(g, sched, Options{})
	require.NoError(t, err)
	require.NotContains(t, string(out), "Dockerfile#1")
}
