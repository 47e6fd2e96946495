package extension

import (
	"fmt"
	"strings"

	"github.com/wxstack/wxstack/stanza"
)

// registryStanza is the stanza inside the station configuration that
// records what is installed. One sub-section per extension, in install
// order.
const registryStanza = "Extensions"

// Installed describes one entry of the install registry. Enough is
// recorded to reverse the install precisely.
type Installed struct {
	Name     string
	Version  string
	Type     string
	Files    []string // destination paths created by the install
	Stanzas  []string // top-level stanzas the fragment added
	Services []string // "stage:module" registrations
}

// readRegistry returns the installed extensions recorded in doc.
func readRegistry(doc *stanza.Document) []Installed {
	sec, err := doc.Section(registryStanza)
	if err != nil {
		return nil
	}
	var out []Installed
	for _, sub := range sec.Sections() {
		entry := Installed{Name: sub.Name}
		entry.Version, _ = sub.Scalar("version")
		entry.Type, _ = sub.Scalar("type")
		entry.Files = nonEmptyList(sub, "files")
		entry.Stanzas = nonEmptyList(sub, "stanzas")
		entry.Services = nonEmptyList(sub, "services")
		out = append(out, entry)
	}
	return out
}

// findInstalled looks an extension up by name.
func findInstalled(doc *stanza.Document, name string) (*Installed, bool) {
	for _, e := range readRegistry(doc) {
		if e.Name == name {
			return &e, true
		}
	}
	return nil, false
}

// recordInstall appends an extension to the registry stanza, creating
// the stanza on first use.
func recordInstall(doc *stanza.Document, entry Installed) error {
	root := doc.Root()
	sec, ok := root.Sub(registryStanza)
	if !ok {
		sec = stanza.NewSection(registryStanza)
		root.AppendSection(sec)
	}
	if sec.HasSection(entry.Name) {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalled, entry.Name)
	}

	sub := stanza.NewSection(entry.Name)
	sub.SetScalar("version", entry.Version)
	sub.SetScalar("type", entry.Type)
	if len(entry.Files) > 0 {
		sub.SetList("files", entry.Files)
	}
	if len(entry.Stanzas) > 0 {
		sub.SetList("stanzas", entry.Stanzas)
	}
	if len(entry.Services) > 0 {
		sub.SetList("services", entry.Services)
	}
	sec.AppendSection(sub)
	return nil
}

// nonEmptyList reads a list key, treating a blank value as absent.
func nonEmptyList(sec *stanza.Section, key string) []string {
	values, ok := sec.List(key)
	if !ok || (len(values) == 1 && strings.TrimSpace(values[0]) == "") {
		return nil
	}
	return values
}

// removeInstall drops an extension from the registry stanza.
func removeInstall(doc *stanza.Document, name string) error {
	sec, err := doc.Section(registryStanza)
	if err != nil || !sec.RemoveSection(name) {
		return fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}
	return nil
}

// Service list editing

// serviceListPath is where the engine's ordered service lists live.
const serviceListPath = "Engine.Services"

// registerService appends module to the stage's ordered list, leaving
// existing entries untouched. Re-registering is a no-op.
func registerService(doc *stanza.Document, stage, module string) error {
	sec, err := doc.Section(serviceListPath)
	if err != nil {
		return fmt.Errorf("station config has no [Engine] [[Services]] stanza: %w", err)
	}
	current, _ := sec.List(stage)
	if len(current) == 1 && strings.TrimSpace(current[0]) == "" {
		current = nil
	}
	for _, m := range current {
		if m == module {
			return nil
		}
	}
	sec.SetList(stage, append(current, module))
	return nil
}

// unregisterService removes module from the stage's list, preserving
// the order of the remaining entries.
func unregisterService(doc *stanza.Document, stage, module string) error {
	sec, err := doc.Section(serviceListPath)
	if err != nil {
		return err
	}
	current, ok := sec.List(stage)
	if !ok {
		return nil
	}
	var kept []string
	for _, m := range current {
		if m != module {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(current) {
		return nil
	}
	sec.SetList(stage, kept)
	return nil
}
