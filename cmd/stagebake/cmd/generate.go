package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/wharflab/stagebake/internal/bake"
	"github.com/wharflab/stagebake/internal/config"
	"github.com/wharflab/stagebake/internal/diagnostics"
	"github.com/wharflab/stagebake/internal/discovery"
	"github.com/wharflab/stagebake/internal/registry"
	"github.com/wharflab/stagebake/internal/schedule"
	"github.com/wharflab/stagebake/internal/stagegraph"
)

// Exit codes.
const (
	ExitSuccess    = 0 // Graph resolved and bake file written.
	ExitParseError = 1 // No stages could be parsed from the tree, or config loading failed.
	ExitCycle      = 2 // Batch scheduling found a dependency cycle.
	ExitIOError    = 3 // Input unreadable, or output unwritable.
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Walk a directory tree and emit a bake configuration",
		ArgsUsage: "[ROOT]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: auto-discover .stagebake.toml)",
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				Usage:   "Glob pattern to exclude from the walk (can be repeated)",
				Sources: cli.EnvVars("STAGEBAKE_DISCOVERY_EXCLUDE_PATTERNS"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output path: stdout, stderr, or a file path",
				Sources: cli.EnvVars("STAGEBAKE_OUTPUT_PATH"),
			},
			&cli.BoolFlag{
				Name:    "verify-external",
				Usage:   "HEAD-check every external reference against its registry (opt-in, never required)",
				Sources: cli.EnvVars("STAGEBAKE_REGISTRY_VERIFY"),
			},
			&cli.StringFlag{
				Name:    "platform",
				Usage:   "Platform string for external-reference verification, e.g. linux/amd64 (not applied: checks use the default manifest)",
				Sources: cli.EnvVars("STAGEBAKE_REGISTRY_PLATFORM"),
			},
			&cli.StringFlag{
				Name:  "diagnostics-format",
				Usage: "Diagnostics format: text, json",
				Value: "text",
			},
			&cli.BoolFlag{
				Name:  "show-unreachable",
				Usage: "Report internal stages that nothing else in the tree depends on",
			},
		},
		Action: runGenerate,
	}
}

func runGenerate(ctx context.Context, cmd *cli.Command) error {
	root := cmd.Args().First()
	if root == "" {
		root = "."
	}

	cfg, err := loadConfig(cmd, root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.Exit("", ExitParseError)
	}
	applyGenerateOverrides(cmd, cfg)

	discovered, err := discovery.Discover(root, discovery.Options{
		ExcludePatterns: cfg.Discovery.ExcludePatterns,
		MaxFileSize:     cfg.Discovery.MaxFileSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to walk %s: %v\n", root, err)
		return cli.Exit("", ExitIOError)
	}

	allStages, parseErrs := parseDiscovered(ctx, discovered)
	for _, perr := range parseErrs {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", perr)
	}
	if len(allStages) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no stages found under %s\n", root)
		return cli.Exit("", ExitParseError)
	}

	g := stagegraph.Build(allStages)

	if cfg.Registry.Verify {
		verifyExternal(ctx, g, cfg.Registry.Platform)
	}

	sched, err := schedule.Compute(g.InternalAliases(), resolvedEdgesToScheduleEdges(g.Edges))
	rep := diagnostics.Report{
		FilesScanned: len(discovered),
		StagesFound:  countStages(allStages),
		External:     g.External,
		Collisions:   g.Collisions,
		TagWarnings:  g.TagWarnings,
	}
	if cmd.Bool("show-unreachable") {
		rep.Unreachable = g.UnreachableLeaves()
		sort.Strings(rep.Unreachable)
	}
	if err != nil {
		var cycleErr *schedule.CycleError
		if !errors.As(err, &cycleErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cli.Exit("", ExitParseError)
		}
		rep.Cycle = cycleErr
		writeDiagnostics(cmd, rep)
		return cli.Exit("", ExitCycle)
	}

	writeDiagnostics(cmd, rep)

	out, err := bake.Emit(g, sched, bake.Options{SourceDir: root})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to render bake file: %v\n", err)
		return cli.Exit("", ExitIOError)
	}

	outputPath := cfg.Output.Path
	if cmd.IsSet("output") {
		outputPath = cmd.String("output")
	}
	if err := writeOutput(outputPath, out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write output: %v\n", err)
		return cli.Exit("", ExitIOError)
	}

	return nil
}

func loadConfig(cmd *cli.Command, root string) (*config.Config, error) {
	if configPath := cmd.String("config"); configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load(root)
}

func applyGenerateOverrides(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("exclude") {
		cfg.Discovery.ExcludePatterns = append(cfg.Discovery.ExcludePatterns, cmd.StringSlice("exclude")...)
	}
	if cmd.IsSet("output") {
		cfg.Output.Path = cmd.String("output")
	}
	if cmd.IsSet("verify-external") {
		cfg.Registry.Verify = cmd.Bool("verify-external")
	}
	if cmd.IsSet("platform") {
		cfg.Registry.Platform = cmd.String("platform")
	}
}

// parseDiscovered parses every discovered file over a bounded worker pool,
// relabeling each stage's OriginFile to the root-relative path so bake
// context directories and diagnostics read naturally. Parse errors are
// non-fatal to the rest of the tree: a bad file is skipped, not fatal.
// Results are collected into discovery order regardless of completion
// order, so the rest of the pipeline stays deterministic.
func parseDiscovered(ctx context.Context, discovered []discovery.DiscoveredFile) ([][]stagegraph.Stage, []error) {
	stagesByIndex := make([][]stagegraph.Stage, len(discovered))
	errByIndex := make([]error, len(discovered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, df := range discovered {
		g.Go(func() error {
			stages, err := stagegraph.ParseFile(gctx, df.AbsPath)
			if err != nil {
				errByIndex[i] = err
				return nil
			}
			for j := range stages {
				stages[j].OriginFile = df.Path
			}
			stagesByIndex[i] = stages
			return nil
		})
	}
	_ = g.Wait() // per-file errors are collected above; nothing returned here aborts the walk

	var allStages [][]stagegraph.Stage
	var errs []error
	for i := range discovered {
		if errByIndex[i] != nil {
			errs = append(errs, errByIndex[i])
			continue
		}
		allStages = append(allStages, stagesByIndex[i])
	}

	return allStages, errs
}

func countStages(allStages [][]stagegraph.Stage) int {
	n := 0
	for _, stages := range allStages {
		n += len(stages)
	}
	return n
}

func resolvedEdgesToScheduleEdges(edges []stagegraph.ResolvedEdge) []schedule.Edge {
	out := make([]schedule.Edge, len(edges))
	for i, e := range edges {
		out[i] = schedule.Edge{From: e.From, To: e.To}
	}
	return out
}

func verifyExternal(ctx context.Context, g *stagegraph.Graph, _ string) {
	if len(g.External) == 0 {
		return
	}
	refs := make([]string, len(g.External))
	for i, e := range g.External {
		refs[i] = e.Name
	}

	v := &registry.Verifier{}
	results := v.VerifyAll(ctx, refs)
	for _, r := range results {
		if r.Exists {
			continue
		}
		fmt.Fprintf(os.Stderr, "note: external reference %q could not be verified: %v\n", r.Ref, r.Err)
	}
}

func writeDiagnostics(cmd *cli.Command, rep diagnostics.Report) {
	format, err := diagnostics.ParseFormat(cmd.String("diagnostics-format"))
	if err != nil {
		format = diagnostics.FormatText
	}
	reporter, err := diagnostics.New(diagnostics.Options{Format: format, Writer: os.Stderr})
	if err != nil {
		return
	}
	_ = reporter.Report(rep)
}

// writeOutput writes the bake file. For stdout/stderr it writes directly;
// for a real path it writes to a temp file in the destination directory
// and renames atomically, so a failure never leaves a partial file behind.
func writeOutput(path string, content []byte) error {
	switch path {
	case "", "stdout":
		_, err := os.Stdout.Write(content)
		return err
	case "stderr":
		_, err := os.Stderr.Write(content)
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stagebake-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup; rename below is the success path

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
