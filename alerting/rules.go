// Package alerting evaluates rule expressions against incoming
// observation records and pushes notifications to an external
// alerting endpoint.
package alerting

import (
	"errors"
	"fmt"

	"github.com/wxstack/wxstack/expression"
	"github.com/wxstack/wxstack/stanza"
)

// ruleStanza is the station configuration stanza the rules live in.
const ruleStanza = "Alerting"

var (
	// ErrNoMessage is returned for a rule without a message.
	ErrNoMessage = errors.New("rule has no message")
	// ErrNoExpression is returned for a rule without an expression.
	ErrNoExpression = errors.New("rule has no expression")
)

// DefaultObservations are the observation names rule expressions may
// reference when the caller has no schema of its own.
var DefaultObservations = map[string]bool{
	"outTemp":     true,
	"inTemp":      true,
	"outHumidity": true,
	"inHumidity":  true,
	"barometer":   true,
	"pressure":    true,
	"altimeter":   true,
	"windSpeed":   true,
	"windGust":    true,
	"windDir":     true,
	"rain":        true,
	"rainRate":    true,
	"dewpoint":    true,
	"windchill":   true,
	"heatindex":   true,
	"UV":          true,
	"radiation":   true,
	"precipType":  true,
	"appTemp":     true,
	"cloudbase":   true,
	"ET":          true,
	"luminosity":  true,
}

// Rule is one alerting rule from the station configuration.
type Rule struct {
	// Name is the rule's sub-section name.
	Name string
	// Expression is evaluated against each observation record.
	Expression string
	// Alias deduplicates notifications at the receiving end. Empty
	// means the rule name is used.
	Alias string
	// Message is the notification text. Required.
	Message string
	// Details is optional free-form text sent with the notification.
	Details string
}

// RuleSet is the parsed and validated alerting configuration.
type RuleSet struct {
	// Units is the unit system values are reported in.
	Units string
	// Recipients receive the notifications.
	Recipients []string
	Rules      []Rule
}

// LoadRules reads the alerting stanza from the station configuration
// and validates every rule. known holds the observation names rule
// expressions may reference; a rule with a missing message or an
// invalid expression fails the whole load.
func LoadRules(doc *stanza.Document, engine *expression.Engine, known map[string]bool) (*RuleSet, error) {
	sec, err := doc.Section(ruleStanza)
	if err != nil {
		return nil, fmt.Errorf("no [%s] stanza: %w", ruleStanza, err)
	}

	set := &RuleSet{}
	if v, ok := sec.Scalar("units"); ok {
		set.Units = v
	}
	if v, ok := sec.List("recipients"); ok {
		set.Recipients = v
	}

	for _, sub := range sec.Sections() {
		rule := Rule{Name: sub.Name}
		rule.Expression, _ = sub.Scalar("expression")
		rule.Alias, _ = sub.Scalar("alias")
		rule.Message, _ = sub.Scalar("message")
		rule.Details, _ = sub.Scalar("details")
		if rule.Alias == "" {
			rule.Alias = rule.Name
		}
		if err := validateRule(rule, engine, known); err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		set.Rules = append(set.Rules, rule)
	}
	if len(set.Rules) == 0 {
		return nil, fmt.Errorf("[%s] defines no rules", ruleStanza)
	}
	return set, nil
}

func validateRule(r Rule, engine *expression.Engine, known map[string]bool) error {
	if r.Message == "" {
		return ErrNoMessage
	}
	if r.Expression == "" {
		return ErrNoExpression
	}
	if err := engine.ValidateSyntax(r.Expression, known); err != nil {
		return fmt.Errorf("expression %q: %w", r.Expression, err)
	}
	return nil
}
