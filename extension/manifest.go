package extension

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wxstack/wxstack/stanza"
)

// ManifestFileName is the descriptor file every package must carry.
const ManifestFileName = "extension.yaml"

var validate = validator.New()

// Package is a loaded extension package: its manifest plus the parsed
// configuration fragment, rooted at Dir.
type Package struct {
	Dir      string
	Manifest *Manifest
	Fragment *stanza.Document // nil when the manifest names no fragment
}

// LoadPackage reads and validates an extension package directory.
func LoadPackage(dir string) (*Package, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ManifestFileName, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFileName, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	pkg := &Package{Dir: dir, Manifest: &m}

	for _, f := range m.Files {
		src := filepath.Join(dir, f.Source)
		if _, err := os.Stat(src); err != nil {
			return nil, fmt.Errorf("package file %s: %w", f.Source, err)
		}
	}

	if m.Config != "" {
		frag, err := stanza.ParseFile(filepath.Join(dir, m.Config))
		if err != nil {
			return nil, fmt.Errorf("config fragment: %w", err)
		}
		pkg.Fragment = frag
	}
	return pkg, nil
}

// Validate checks the manifest's structural and semantic constraints.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	if !IsValidType(m.Type) {
		return fmt.Errorf("manifest: unknown extension type %q", m.Type)
	}
	if strings.ContainsAny(m.Name, " .[]") {
		return fmt.Errorf("manifest: name %q must be a bare stanza name", m.Name)
	}
	for _, svc := range m.Services {
		if !IsValidStage(svc.Stage) {
			return fmt.Errorf("manifest: unknown pipeline stage %q", svc.Stage)
		}
		if !isModuleQualified(svc.Module) {
			return fmt.Errorf("manifest: service %q is not a module-qualified name", svc.Module)
		}
	}
	for _, f := range m.Files {
		switch f.Role {
		case "user", "skins", "bin", "examples":
		default:
			return fmt.Errorf("manifest: file %s targets unknown role %q", f.Source, f.Role)
		}
		if filepath.IsAbs(f.Source) || strings.Contains(f.Source, "..") {
			return fmt.Errorf("manifest: file source %q must stay inside the package", f.Source)
		}
	}
	if len(m.Services) > 0 && m.Type == TypeSkin {
		return fmt.Errorf("manifest: a skin cannot register services")
	}
	return nil
}

// isModuleQualified requires at least package.Class with non-empty
// parts.
func isModuleQualified(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
