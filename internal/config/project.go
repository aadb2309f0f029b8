package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/prolet-tools/prolet/internal/filter"
)

const (
	// DefaultBranch is used when the project file names no target_branch.
	DefaultBranch = "master"
	// DefaultRetries is the per-file attempt count when nothing overrides it.
	DefaultRetries = 3
)

// ProjectFile returns the default project config path under root.
func ProjectFile(root string) string {
	return filepath.Join(root, "reader", "config.toml")
}

// LegacyProjectFile returns the JSON project file used by older projects.
func LegacyProjectFile(root string) string {
	return filepath.Join(root, "reader", "config.json")
}

// FindProjectFile returns ProjectFile(root), or LegacyProjectFile(root) when
// only the JSON file exists.
func FindProjectFile(root string) string {
	tomlPath := ProjectFile(root)
	if _, err := os.Stat(tomlPath); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Stat(LegacyProjectFile(root)); err == nil {
			return LegacyProjectFile(root)
		}
	}
	return tomlPath
}

// OutputDir returns the default output root under root.
func OutputDir(root string) string {
	return filepath.Join(root, "reader", "source")
}

// Project is the per-project configuration: which repository to mirror and
// what to leave out.
type Project struct {
	GithubRepo      string     `toml:"github_repo"      json:"github_repo"`
	TargetBranch    string     `toml:"target_branch"    json:"target_branch"`
	ExcludePatterns []string   `toml:"exclude_patterns" json:"exclude_patterns"`
	ExcludeFiles    []string   `toml:"exclude_files"    json:"exclude_files"`
	Sync            SyncConfig `toml:"sync"             json:"sync"`
}

// SyncConfig holds project-level tuning. Nil means unset.
type SyncConfig struct {
	Workers *int    `toml:"workers" json:"workers"`
	Retries *int    `toml:"retries" json:"retries"`
	BWLimit *string `toml:"bwlimit" json:"bwlimit"`
	Timeout *string `toml:"timeout" json:"timeout"`
}

// LoadProject reads the project file at path, TOML or, for a .json
// extension, JSON. Unlike the user config, the project file is required.
func LoadProject(path string) (Project, error) {
	var p Project
	// Unknown keys belong to the site generator and are ignored here.
	if filepath.Ext(path) == ".json" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Project{}, fmt.Errorf("load project config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return Project{}, fmt.Errorf("load project config %s: %w", path, err)
		}
	} else if _, err := toml.DecodeFile(path, &p); err != nil {
		return Project{}, fmt.Errorf("load project config %s: %w", path, err)
	}
	if p.TargetBranch == "" {
		p.TargetBranch = DefaultBranch
	}
	return p, nil
}

// Settings are the effective tuning values after layering.
type Settings struct {
	Branch  string
	Workers int
	Retries int
	BWLimit int64
	Timeout time.Duration
}

// Resolve layers project [sync] values over user defaults. Zero values in
// the result mean "use the library default". Command-line flags are applied
// on top by the caller.
func (p Project) Resolve(user DefaultsConfig) (Settings, error) {
	s := Settings{Branch: p.TargetBranch, Retries: DefaultRetries}
	if v := firstInt(p.Sync.Workers, user.Workers); v != nil {
		if *v < 1 {
			return Settings{}, fmt.Errorf("workers must be at least 1, got %d", *v)
		}
		s.Workers = *v
	}
	if v := firstInt(p.Sync.Retries, user.Retries); v != nil {
		if *v < 1 {
			return Settings{}, fmt.Errorf("retries must be at least 1, got %d", *v)
		}
		s.Retries = *v
	}
	if v := firstString(p.Sync.BWLimit, user.BWLimit); v != nil {
		n, err := filter.ParseSize(*v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid bwlimit: %w", err)
		}
		s.BWLimit = n
	}
	if v := firstString(p.Sync.Timeout, user.Timeout); v != nil {
		d, err := time.ParseDuration(*v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid timeout: %w", err)
		}
		s.Timeout = d
	}
	return s, nil
}

// NewChain builds the exclusion chain described by the project file.
func (p Project) NewChain() (*filter.Chain, error) {
	chain := filter.NewChain(filter.DefaultExtensions...)
	for _, name := range p.ExcludeFiles {
		chain.AddExcludeName(name)
	}
	for _, pat := range p.ExcludePatterns {
		if err := chain.AddExclude(pat); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pat, err)
		}
	}
	return chain, nil
}

func firstInt(vals ...*int) *int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstString(vals ...*string) *string {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}
