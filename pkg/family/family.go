// Package family classifies file paths into language families: a
// closed, per-project set that selects extractor rules and tags
// definitions/references for query-time filtering.
package family

import (
	"path/filepath"
	"strings"
)

// Family is an opaque language-family tag, e.g. "C", "K", "D", "M".
type Family string

// Built-in families matching a kernel-style source tree: C sources,
// Kconfig, device-tree, and a catch-all "other".
const (
	C        Family = "C"
	Kconfig  Family = "K"
	DeviceTree Family = "D"
	Makefile Family = "M"
	Other    Family = "O"
)

// Rule maps a path pattern to a family. Extension rules start with ".";
// basename rules match the exact final path component or a "*" glob.
type Rule struct {
	Pattern string `toml:"pattern"`
	Family  Family `toml:"family"`
}

// Table is an ordered, project-configurable classification table. Rules are
// tried in order and every matching rule contributes its family, in rule
// order. DefaultFamily applies when nothing matches.
type Table struct {
	Rules         []Rule `toml:"rule"`
	DefaultFamily Family `toml:"default_family"`
}

// DefaultTable returns the classification table used when a project
// descriptor supplies none: the C/Kconfig/device-tree vocabulary of a
// kernel-style source tree.
func DefaultTable() Table {
	return Table{
		Rules: []Rule{
			{Pattern: ".c", Family: C},
			{Pattern: ".h", Family: C},
			{Pattern: ".cpp", Family: C},
			{Pattern: ".cc", Family: C},
			{Pattern: ".hpp", Family: C},
			{Pattern: "Kconfig", Family: Kconfig},
			{Pattern: "Kconfig.*", Family: Kconfig},
			{Pattern: ".dts", Family: DeviceTree},
			{Pattern: ".dtsi", Family: DeviceTree},
			{Pattern: "Makefile", Family: Makefile},
			{Pattern: "Makefile.*", Family: Makefile},
			{Pattern: ".mk", Family: Makefile},
		},
		DefaultFamily: Other,
	}
}

// Classify returns every family that path maps to under t. A path can
// map to more than one family only when the project descriptor's rule
// set contains overlapping patterns (e.g. the same header used as C and
// as Kconfig context); DefaultTable never produces more than one.
func (t Table) Classify(path string) []Family {
	base := filepath.Base(path)
	ext := filepath.Ext(path)

	var matched []Family
	seen := make(map[Family]bool)
	add := func(f Family) {
		if !seen[f] {
			seen[f] = true
			matched = append(matched, f)
		}
	}

	for _, rule := range t.Rules {
		if matchesRule(rule.Pattern, base, ext) {
			add(rule.Family)
		}
	}

	if len(matched) == 0 {
		def := t.DefaultFamily
		if def == "" {
			def = Other
		}
		add(def)
	}
	return matched
}

func matchesRule(pattern, base, ext string) bool {
	switch {
	case strings.HasPrefix(pattern, "."):
		return ext == pattern
	case strings.Contains(pattern, "*"):
		ok, _ := filepath.Match(pattern, base)
		return ok
	default:
		return base == pattern
	}
}
