package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xrefdb/elixir/internal/config"
	"github.com/xrefdb/elixir/pkg/blobstore"
	"github.com/xrefdb/elixir/pkg/coordinator"
	"github.com/xrefdb/elixir/pkg/query"
	"github.com/xrefdb/elixir/pkg/vcsadapter"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// env bundles every long-lived handle a subcommand needs, built once from
// the configured project location.
type env struct {
	loc     config.Location
	desc    config.Descriptor
	db      *xrefcore.SQLiteDB
	adapter vcsadapter.Adapter
	blobs   *blobstore.Store
}

// openEnv resolves the active project's Location, either directly from
// LXR_REPO_DIR/LXR_DATA_DIR or, when project is non-empty, by looking it
// up under the multi-project root named by LXR_ROOT.
func openEnv(ctx context.Context, project string) (*env, error) {
	loc, err := resolveLocation(project)
	if err != nil {
		return nil, err
	}

	desc, err := config.LoadDescriptor(filepath.Join(loc.DataDir, "project.toml"))
	if err != nil {
		return nil, err
	}

	db, err := xrefcore.OpenSQLiteDB(filepath.Join(loc.DataDir, "elixir.db"))
	if err != nil {
		return nil, err
	}
	if err := xrefcore.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	blobs, err := blobstore.Open(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &env{
		loc:     loc,
		desc:    desc,
		db:      db,
		adapter: vcsadapter.NewLocalStore(loc.RepoDir),
		blobs:   blobs,
	}, nil
}

// resolveLocation picks the single-project (LXR_REPO_DIR/LXR_DATA_DIR) or
// multi-project (LXR_ROOT + project name) form of the environment
// contract, per the project names a --project flag identifies.
func resolveLocation(project string) (config.Location, error) {
	if project != "" {
		p, err := config.ResolveProject(project)
		if err != nil {
			return config.Location{}, err
		}
		return p.Location, nil
	}
	if os.Getenv("LXR_ROOT") != "" {
		return config.Location{}, fmt.Errorf("elixir: LXR_ROOT is set; pass --project to select one of its projects")
	}
	return config.FromEnv()
}

func (e *env) close() error {
	return e.db.Close()
}

func (e *env) coordinator(workers int) *coordinator.Coordinator {
	return coordinator.New(e.adapter, e.db, e.blobs, e.desc.Families, workers)
}

func (e *env) query() *query.Interface {
	return query.New(e.db, e.adapter, e.blobs)
}
