// Package extension defines the descriptor a distributable extension
// package must carry and the installer that wires it into a station:
// files copied into place, its configuration stanza merged, and its
// services registered with the engine.
package extension

import "errors"

// Extension types.
const (
	TypeService    = "service"
	TypeDriver     = "driver"
	TypeSkin       = "skin"
	TypeSearchList = "search_list"
)

// Engine pipeline stages a service can register at, in execution order.
var Stages = []string{
	"prep_services",
	"data_services",
	"process_services",
	"archive_services",
	"restful_services",
	"report_services",
}

// IsValidStage reports whether name is a known pipeline stage.
func IsValidStage(name string) bool {
	for _, s := range Stages {
		if s == name {
			return true
		}
	}
	return false
}

// IsValidType reports whether t is a known extension type.
func IsValidType(t string) bool {
	switch t {
	case TypeService, TypeDriver, TypeSkin, TypeSearchList:
		return true
	}
	return false
}

var (
	// ErrNotInstalled is returned when uninstalling an unknown extension
	ErrNotInstalled = errors.New("extension is not installed")
	// ErrAlreadyInstalled is returned when a different package claims an
	// installed extension's name
	ErrAlreadyInstalled = errors.New("extension with this name is already installed")
)

// Metadata describes an extension package.
type Metadata struct {
	// Name is the name of the extension and of its config stanza
	Name string `yaml:"name" validate:"required"`
	// Version is the version of the extension
	Version string `yaml:"version" validate:"required"`
	// Description is a one-line description
	Description string `yaml:"description"`
	// Type is the extension type: service, driver, skin or search_list
	Type string `yaml:"type" validate:"required"`
	// Dependencies names extensions that must already be installed
	Dependencies []string `yaml:"dependencies"`
}

// FileEntry maps a file or directory in the package onto a layout role.
type FileEntry struct {
	// Source is the path inside the package
	Source string `yaml:"source" validate:"required"`
	// Role is the layout role the source is copied under
	Role string `yaml:"role" validate:"required"`
}

// ServiceEntry registers a module with an engine pipeline stage.
type ServiceEntry struct {
	// Stage is the service list the module joins
	Stage string `yaml:"stage" validate:"required"`
	// Module is the module-qualified class name, e.g. user.pmon.ProcessMonitor
	Module string `yaml:"module" validate:"required"`
}

// Manifest is the full package descriptor read from extension.yaml.
type Manifest struct {
	Metadata `yaml:",inline"`
	// Files lists what gets copied where
	Files []FileEntry `yaml:"files"`
	// Config names the INI fragment merged into the station config
	Config string `yaml:"config"`
	// Services lists engine registrations
	Services []ServiceEntry `yaml:"services"`
}
