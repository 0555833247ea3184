// Package config resolves Elixir's process-wide location variables and
// per-project descriptors into an explicit configuration record, read
// once at startup rather than consulted ad hoc from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Location names the two directories every Elixir invocation needs: where
// the version-control store lives, and where the cross-reference database
// is written.
type Location struct {
	RepoDir string
	DataDir string
}

// FromEnv builds a Location from LXR_REPO_DIR and LXR_DATA_DIR.
func FromEnv() (Location, error) {
	repo := os.Getenv("LXR_REPO_DIR")
	data := os.Getenv("LXR_DATA_DIR")
	if repo == "" || data == "" {
		return Location{}, fmt.Errorf("config: LXR_REPO_DIR and LXR_DATA_DIR must both be set")
	}
	return Location{RepoDir: repo, DataDir: data}, nil
}

// Project is a single project's {repo,data} pair under a multi-project
// root, as named by LXR_ROOT.
type Project struct {
	Name string
	Location
}

// DiscoverRoot enumerates every <project>/{repo,data} subtree under root.
// A directory is a project iff it contains both "repo" and "data"
// subdirectories.
func DiscoverRoot(root string) ([]Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("config: read root %q: %w", root, err)
	}

	var projects []Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		repoDir := filepath.Join(root, name, "repo")
		dataDir := filepath.Join(root, name, "data")
		if !isDir(repoDir) || !isDir(dataDir) {
			continue
		}
		projects = append(projects, Project{
			Name:     name,
			Location: Location{RepoDir: repoDir, DataDir: dataDir},
		})
	}
	return projects, nil
}

// FromRootEnv resolves the multi-project layout from LXR_ROOT.
func FromRootEnv() ([]Project, error) {
	root := os.Getenv("LXR_ROOT")
	if root == "" {
		return nil, fmt.Errorf("config: LXR_ROOT must be set for multi-project mode")
	}
	return DiscoverRoot(root)
}

// ResolveProject picks out a single named project from LXR_ROOT's
// discovered set, for CLI invocations that operate on one project at a
// time even in multi-project mode.
func ResolveProject(name string) (Project, error) {
	projects, err := FromRootEnv()
	if err != nil {
		return Project{}, err
	}
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("config: no project %q under LXR_ROOT", name)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
