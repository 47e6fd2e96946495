// Package layout resolves the well-known directories of a station
// installation relative to a single root path.
package layout

import (
	"path/filepath"

	"github.com/wxstack/wxstack/stanza"
)

// Directory roles of a station installation.
const (
	RoleRoot     = "root"
	RoleBin      = "bin"
	RoleConfig   = "config"
	RoleSkins    = "skins"
	RoleDatabase = "database"
	RoleHTML     = "html"
	RoleDocs     = "docs"
	RoleExamples = "examples"
	RoleUser     = "user"
)

// defaults are the role paths relative to the root.
var defaults = map[string]string{
	RoleBin:      "bin",
	RoleConfig:   ".",
	RoleSkins:    "skins",
	RoleDatabase: "archive",
	RoleHTML:     "public_html",
	RoleDocs:     "docs",
	RoleExamples: "examples",
	RoleUser:     "bin/user",
}

// Layout maps directory roles to resolved absolute paths.
type Layout struct {
	root  string
	paths map[string]string
}

// New builds a layout from a root path and optional per-role overrides.
func New(root string, overrides map[string]string) *Layout {
	l := &Layout{root: root, paths: make(map[string]string)}
	for role, rel := range defaults {
		l.paths[role] = Join(root, rel)
	}
	for role, p := range overrides {
		if p == "" {
			continue
		}
		l.paths[role] = Join(root, p)
	}
	return l
}

// FromConfig builds a layout from the host configuration's Paths
// stanza, if present. The root itself comes from the top-level
// WXSTACK_ROOT key, falling back to the config file's directory.
func FromConfig(doc *stanza.Document, configPath string) *Layout {
	root, err := doc.Scalar("WXSTACK_ROOT")
	if err != nil || root == "" {
		root = filepath.Dir(configPath)
	}
	if !filepath.IsAbs(root) {
		root = Join(filepath.Dir(configPath), root)
	}

	overrides := map[string]string{}
	if sec, err := doc.Section("Paths"); err == nil {
		for _, role := range []string{RoleBin, RoleSkins, RoleDatabase, RoleHTML, RoleDocs, RoleExamples, RoleUser} {
			if v, ok := sec.Scalar(role); ok {
				overrides[role] = v
			}
		}
	}
	return New(root, overrides)
}

// Root returns the installation root.
func (l *Layout) Root() string {
	return l.root
}

// Dir returns the resolved path for a role. Unknown roles resolve to
// the root.
func (l *Layout) Dir(role string) string {
	if p, ok := l.paths[role]; ok {
		return p
	}
	return l.root
}

// Join joins path elements with the rule that the last absolute path
// wins: Join("/home/station", "/var/lib/wx") is "/var/lib/wx".
func Join(elems ...string) string {
	out := ""
	for _, e := range elems {
		if e == "" {
			continue
		}
		if filepath.IsAbs(e) || out == "" {
			out = e
			continue
		}
		out = filepath.Join(out, e)
	}
	return filepath.Clean(out)
}
