package stagegraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBytes_SimpleTwoStage(t *testing.T) {
	content := []byte("FROM golang:1.22 AS builder\nRUN go build ./...\n\nFROM alpine\nCOPY --from=builder /app /app\n")

	stages, err := ParseBytes("Dockerfile", content)
	require.NoError(t, err)
	require.Len(t, stages, 2)

	require.Equal(t, "builder", stages[0].Alias)
	require.False(t, stages[0].Anonymous)
	require.Equal(t, "golang:1.22", stages[0].BaseRef)
	require.Equal(t, "Dockerfile", stages[0].OriginFile)
	require.Equal(t, 0, stages[0].Position)

	require.True(t, stages[1].Anonymous)
	require.Equal(t, SyntheticAlias("Dockerfile", 1), stages[1].Alias)
	require.Equal(t, "alpine", stages[1].BaseRef)
	require.Len(t, stages[1].Edges, 1)
	require.Equal(t, Edge{Ref: "builder", Kind: EdgeCopy, Line: stages[1].Edges[0].Line}, stages[1].Edges[0])
}

func TestParseBytes_RunMount(t *testing.T) {
	content := []byte("FROM alpine AS base\n\nFROM alpine\nRUN --mount=type=bind,from=base,source=/x,target=/x echo hi\n")

	stages, err := ParseBytes("Dockerfile", content)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	require.Len(t, stages[1].Edges, 1)
	require.Equal(t, "base", stages[1].Edges[0].Ref)
	require.Equal(t, EdgeMount, stages[1].Edges[0].Kind)
}

func TestParseBytes_InvalidSyntax(t *testing.T) {
	_, err := ParseBytes("Dockerfile", []byte("this is not a dockerfile {{{"))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "Dockerfile", parseErr.File)
}

func TestSyntheticAlias(t *testing.T) {
	require.Equal(t, "Dockerfile#0", SyntheticAlias("Dockerfile", 0))
	require.Equal(t, "web.Dockerfile#2", SyntheticAlias("services/api/web.Dockerfile", 2))
}
