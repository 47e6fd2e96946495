package station

import (
	"fmt"
	"strings"

	"github.com/wxstack/wxstack/alerting"
	"github.com/wxstack/wxstack/expression"
	"github.com/wxstack/wxstack/extension"
	"github.com/wxstack/wxstack/layout"
	"github.com/wxstack/wxstack/stanza"
)

// Problem is one finding from a configuration check.
type Problem struct {
	// Stanza is the dotted path of the offending section.
	Stanza string
	// Detail explains what is wrong.
	Detail string
}

func (p Problem) String() string {
	return fmt.Sprintf("[%s] %s", p.Stanza, p.Detail)
}

// Check validates the station configuration: required options of the
// core stanzas, service list references, data bindings, and alert
// rules. It returns every problem found rather than stopping at the
// first one.
func Check(doc *stanza.Document, lay *layout.Layout, knownObs map[string]bool) []Problem {
	var problems []Problem
	add := func(stanzaPath, format string, args ...any) {
		problems = append(problems, Problem{Stanza: stanzaPath, Detail: fmt.Sprintf(format, args...)})
	}

	// [Station] and the active driver.
	if sec, err := doc.Section("Station"); err != nil {
		add("Station", "stanza is missing")
	} else {
		driver, ok := sec.Scalar("station_type")
		switch {
		case !ok || driver == "":
			add("Station", "station_type is not set")
		case !doc.Root().HasSection(driver):
			add("Station", "station_type names %s, which has no stanza", driver)
		}
	}

	// Service list entries must be module-qualified and use known
	// stages.
	if sec, err := doc.Section("Engine.Services"); err != nil {
		add("Engine.Services", "stanza is missing")
	} else {
		for _, key := range sec.Keys() {
			if !extension.IsValidStage(key) {
				add("Engine.Services", "unknown stage %s", key)
				continue
			}
			modules, _ := sec.List(key)
			for _, m := range modules {
				if !strings.Contains(m, ".") {
					add("Engine.Services", "%s entry %q is not module-qualified", key, m)
				}
			}
		}
	}

	// Data bindings must resolve to configured databases.
	if sec, err := doc.Section("DataBindings"); err == nil {
		for _, b := range sec.Sections() {
			if _, _, err := ResolveBinding(doc, lay, b.Name); err != nil {
				add("DataBindings."+b.Name, "%v", err)
			}
		}
	}

	// Services that name a data binding must name one that exists.
	for _, top := range doc.Root().Sections() {
		binding, ok := top.Scalar("data_binding")
		if !ok {
			continue
		}
		if _, err := doc.Section("DataBindings." + binding); err != nil {
			add(top.Name, "data_binding %s is not configured", binding)
		}
	}

	// Alert rules, when present.
	if doc.Root().HasSection("Alerting") {
		if _, err := alerting.LoadRules(doc, expression.New(nil), knownObs); err != nil {
			add("Alerting", "%v", err)
		}
	}

	return problems
}
