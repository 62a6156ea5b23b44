package stagegraph

import (
	"bytes"
	"context"
	"fmt"

	"github.com/moby/buildkit/frontend/dockerfile/instructions"
	"github.com/moby/buildkit/frontend/dockerfile/parser"

	"github.com/wharflab/stagebake/internal/dockerfile"
	"github.com/wharflab/stagebake/internal/runmount"
)

// ParseError reports a build file that could not be parsed. This is local
// and non-fatal at the tree level: the offending file is skipped and every
// other file is still processed.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseFile parses one build file and returns the ordered list of stages it
// declares, with each stage's edges in source order.
func ParseFile(ctx context.Context, path string) ([]Stage, error) {
	result, err := dockerfile.ParseFile(ctx, path)
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	return stagesFromResult(path, result), nil
}

// ParseBytes parses build-file content already in memory. path is used
// only as the stages' OriginFile and in a returned ParseError; nothing is
// read from disk.
func ParseBytes(path string, content []byte) ([]Stage, error) {
	result, err := dockerfile.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	return stagesFromResult(path, result), nil
}

func stagesFromResult(path string, result *dockerfile.ParseResult) []Stage {
	stages := make([]Stage, len(result.Stages))
	for i := range result.Stages {
		stages[i] = stageFromInstruction(path, i, &result.Stages[i])
	}
	return stages
}

// stageFromInstruction converts one BuildKit instructions.Stage into a
// Stage record, extracting the base edge and every copy/mount edge in
// source order, emitting raw Edge records instead of resolving them
// immediately — this package has no visibility into other files'
// aliases, so resolution is deferred to the graph builder.
func stageFromInstruction(originFile string, position int, stage *instructions.Stage) Stage {
	s := Stage{
		BaseRef:    stage.BaseName,
		OriginFile: originFile,
		Position:   position,
	}
	if len(stage.Location) > 0 {
		s.BaseLine = stage.Location[0].Start.Line
	}

	if stage.Name == "" {
		s.Anonymous = true
		s.Alias = SyntheticAlias(originFile, position)
	} else {
		s.Alias = stage.Name
	}

	for _, cmd := range stage.Commands {
		switch c := cmd.(type) {
		case *instructions.CopyCommand:
			if c.From == "" {
				continue
			}
			s.Edges = append(s.Edges, Edge{
				Ref:  c.From,
				Kind: EdgeCopy,
				Line: location1(c.Location()),
			})

		case *instructions.RunCommand:
			for _, m := range runmount.GetMounts(c) {
				if m.From == "" {
					continue
				}
				s.Edges = append(s.Edges, Edge{
					Ref:  m.From,
					Kind: EdgeMount,
					Line: location1(c.Location()),
				})
			}
		}
	}

	return s
}

func location1(ranges []parser.Range) int {
	if len(ranges) == 0 {
		return 0
	}
	return ranges[0].Start.Line
}
