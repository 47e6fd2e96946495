package extension

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wxstack/wxstack/layout"
	"github.com/wxstack/wxstack/logging/logger"
	"github.com/wxstack/wxstack/stanza"
)

// Installer places an extension package into a station: files copied
// under the layout's directories, the config fragment merged into the
// station configuration, and services registered with the engine.
type Installer struct {
	confPath string
	layout   *layout.Layout
	dryRun   bool
}

// Option configures an Installer.
type Option func(*Installer)

// WithDryRun makes the installer report planned actions without
// touching the filesystem or the configuration.
func WithDryRun() Option {
	return func(i *Installer) { i.dryRun = true }
}

// NewInstaller creates an installer against the station configuration
// at confPath.
func NewInstaller(confPath string, lay *layout.Layout, opts ...Option) *Installer {
	i := &Installer{confPath: confPath, layout: lay}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Report describes what an install or uninstall did (or, in dry-run
// mode, would do).
type Report struct {
	Name      string
	Version   string
	Files     []string // destination paths
	Stanzas   []string // config stanzas added or removed
	Services  []string // "stage:module" registrations
	Unchanged bool     // the package was already installed as-is
	DryRun    bool
}

// Install installs the package rooted at pkgDir. Re-installing the
// identical package is a no-op; a different package whose name is
// already taken fails without modifying anything. The host process
// must be restarted afterwards to pick the extension up.
func (i *Installer) Install(ctx context.Context, pkgDir string) (*Report, error) {
	pkg, err := LoadPackage(pkgDir)
	if err != nil {
		return nil, err
	}
	m := pkg.Manifest

	doc, err := stanza.ParseFile(i.confPath)
	if err != nil {
		return nil, fmt.Errorf("station config: %w", err)
	}

	for _, dep := range m.Dependencies {
		if _, ok := findInstalled(doc, dep); !ok {
			return nil, fmt.Errorf("extension %s requires %s, which is not installed", m.Name, dep)
		}
	}

	report := &Report{Name: m.Name, Version: m.Version, DryRun: i.dryRun}

	if prior, ok := findInstalled(doc, m.Name); ok {
		if prior.Version == m.Version && i.fragmentMatches(doc, pkg) {
			logger.Infof(ctx, "extension %s %s is already installed", m.Name, m.Version)
			report.Unchanged = true
			return report, nil
		}
		return nil, fmt.Errorf("%w: %s (installed %s, package %s)",
			ErrAlreadyInstalled, m.Name, prior.Version, m.Version)
	}

	// Stage every config change before touching anything, so a
	// failure leaves both the file tree and the config as they were.
	if pkg.Fragment != nil {
		merged, err := doc.Merge(pkg.Fragment)
		if err != nil {
			return nil, err
		}
		report.Stanzas = merged.Added
	}
	for _, svc := range m.Services {
		if err := registerService(doc, svc.Stage, svc.Module); err != nil {
			return nil, err
		}
		report.Services = append(report.Services, svc.Stage+":"+svc.Module)
	}

	// Files copied so far are removed again if any later step fails,
	// so a failed install never leaves files behind that no registry
	// entry accounts for.
	var copied []string
	undoCopies := func() {
		for _, dst := range copied {
			os.RemoveAll(dst)
		}
	}
	for _, f := range m.Files {
		src := filepath.Join(pkg.Dir, f.Source)
		dst := layout.Join(i.layout.Dir(f.Role), filepath.Base(f.Source))
		report.Files = append(report.Files, dst)
		if i.dryRun {
			continue
		}
		if err := copyTree(src, dst); err != nil {
			undoCopies()
			return nil, fmt.Errorf("copying %s: %w", f.Source, err)
		}
		copied = append(copied, dst)
	}

	if err := recordInstall(doc, Installed{
		Name:     m.Name,
		Version:  m.Version,
		Type:     m.Type,
		Files:    report.Files,
		Stanzas:  report.Stanzas,
		Services: report.Services,
	}); err != nil {
		undoCopies()
		return nil, err
	}

	if i.dryRun {
		return report, nil
	}
	if err := doc.WriteFile(i.confPath); err != nil {
		undoCopies()
		return nil, fmt.Errorf("writing station config: %w", err)
	}
	logger.Infof(ctx, "installed extension %s %s; restart the station process to activate it", m.Name, m.Version)
	return report, nil
}

// Uninstall reverses an install: files removed, stanzas dropped,
// service registrations withdrawn. Unrelated configuration is left
// untouched.
func (i *Installer) Uninstall(ctx context.Context, name string) (*Report, error) {
	doc, err := stanza.ParseFile(i.confPath)
	if err != nil {
		return nil, fmt.Errorf("station config: %w", err)
	}

	entry, ok := findInstalled(doc, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}

	report := &Report{
		Name:     entry.Name,
		Version:  entry.Version,
		Files:    entry.Files,
		Stanzas:  entry.Stanzas,
		Services: entry.Services,
		DryRun:   i.dryRun,
	}

	for _, svc := range entry.Services {
		stage, module, ok := strings.Cut(svc, ":")
		if !ok {
			continue
		}
		if err := unregisterService(doc, stage, module); err != nil {
			return nil, err
		}
	}
	for _, name := range entry.Stanzas {
		doc.Root().RemoveSection(name)
	}
	if err := removeInstall(doc, entry.Name); err != nil {
		return nil, err
	}

	if i.dryRun {
		return report, nil
	}

	for _, dst := range entry.Files {
		if err := os.RemoveAll(dst); err != nil {
			return nil, fmt.Errorf("removing %s: %w", dst, err)
		}
	}
	if err := doc.WriteFile(i.confPath); err != nil {
		return nil, fmt.Errorf("writing station config: %w", err)
	}
	logger.Infof(ctx, "uninstalled extension %s; restart the station process to deactivate it", name)
	return report, nil
}

// List returns the installed extensions in install order.
func (i *Installer) List() ([]Installed, error) {
	doc, err := stanza.ParseFile(i.confPath)
	if err != nil {
		return nil, fmt.Errorf("station config: %w", err)
	}
	return readRegistry(doc), nil
}

// fragmentMatches reports whether the package's fragment stanzas are
// already present with identical content.
func (i *Installer) fragmentMatches(doc *stanza.Document, pkg *Package) bool {
	if pkg.Fragment == nil {
		return true
	}
	for _, sec := range pkg.Fragment.Root().Sections() {
		existing, ok := doc.Root().Sub(sec.Name)
		if !ok || !existing.Equal(sec) {
			return false
		}
	}
	return true
}

// copyTree copies a file or directory tree, creating parents as
// needed. Existing files are overwritten.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyTree(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	return copyFile(src, dst, info.Mode())
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
