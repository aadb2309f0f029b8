package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/prolet-tools/prolet/internal/convert"
)

func newBuildCmd(g *globalFlags) *cobra.Command {
	sf := &syncFlags{}
	var htmlDir string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Sync, then render the mirrored files into HTML fragments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runSync(cmd, g, sf)
			if err != nil {
				return err
			}
			if sf.dryRun {
				return res.exitErr()
			}

			dir := htmlDir
			if dir == "" {
				dir = filepath.Join(res.paths.root, "reader", "html")
			}
			failed, err := render(res.paths.output, dir, res.outcome.Paths)
			if err != nil {
				return err
			}
			if failed > 0 {
				return &exitError{code: 1}
			}
			return res.exitErr()
		},
	}
	addSyncFlags(cmd.Flags(), sf)
	cmd.Flags().StringVar(&htmlDir, "html-dir", "", "fragment output directory (default: <root>/reader/html)")
	return cmd
}

// render converts every mirrored file it has a converter for and returns the
// number of files that had a converter but failed.
func render(outputRoot, htmlDir string, localPaths []string) (int, error) {
	if err := os.MkdirAll(htmlDir, 0o755); err != nil {
		return 0, fmt.Errorf("create html directory: %w", err)
	}

	rel := make([]string, 0, len(localPaths))
	for _, p := range localPaths {
		r, err := filepath.Rel(outputRoot, p)
		if err != nil {
			return 0, fmt.Errorf("relative path for %s: %w", p, err)
		}
		rel = append(rel, filepath.ToSlash(r))
	}

	registry := convert.NewRegistry(nil)
	slog.Debug("rendering fragments", "count", len(rel), "formats", registry.Capabilities())

	var failed, rendered int
	unavailable := make(map[string]int)
	for _, res := range registry.RenderAll(osfs.New(outputRoot), osfs.New(htmlDir), rel) {
		var ue *convert.UnavailableError
		switch {
		case res.Err == nil:
			rendered++
		case errors.As(res.Err, &ue):
			unavailable[ue.Ext]++
		default:
			failed++
			slog.Error("render failed", "path", res.Path, "error", res.Err)
		}
	}
	for ext, n := range unavailable {
		slog.Warn("no converter available", "ext", ext, "files", n)
	}
	slog.Info("rendered fragments", "rendered", rendered, "failed", failed, "dir", htmlDir)
	return failed, nil
}
