package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/xrefdb/elixir/pkg/family"
)

// Descriptor is a project plug-in: the family-classification table and
// tag-listing policy toggles a project supplies. The Update Coordinator
// consults its family table; the Repo Adapter does not read it. It never
// reaches into the core's database or extraction internals.
type Descriptor struct {
	// Name identifies the project in multi-project mode.
	Name string `toml:"name"`
	// TagsHierarchy, when non-empty, groups tags returned by list_tags
	// under named buckets (e.g. "v5.x", "v6.x") for the HTML front-end;
	// the core only needs the flat order, so this is carried opaquely.
	TagsHierarchy []string `toml:"tags_hierarchy"`
	// LatestTag names a release the project pins as current. It is
	// decoded and carried opaquely; the adapters' Latest does not consult
	// it and keeps its own newest-tag policy.
	LatestTag string          `toml:"latest_tag"`
	Families  family.Table    `toml:"families"`
}

// LoadDescriptor reads a project descriptor from path. A missing file is
// not an error: DefaultDescriptor is returned instead, since a minimal
// project needs no TOML at all.
func LoadDescriptor(path string) (Descriptor, error) {
	desc := DefaultDescriptor()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return desc, nil
	}
	if _, err := toml.DecodeFile(path, &desc); err != nil {
		return Descriptor{}, fmt.Errorf("config: decode project descriptor %q: %w", path, err)
	}
	if len(desc.Families.Rules) == 0 {
		desc.Families = family.DefaultTable()
	}
	return desc, nil
}

// DefaultDescriptor returns the descriptor used when a project supplies no
// project.toml.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		Families: family.DefaultTable(),
	}
}
