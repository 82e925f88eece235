package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/PaesslerAG/gval"
)

// complianceLanguage evaluates rule expressions: arithmetic, text and
// propositional logic over a trade's fact map.
var complianceLanguage = gval.Full()

// Compliance rule actions.
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// ComplianceRule is one operator-configured admission rule for energy
// trades. The expression is evaluated against the trade's fact map; rules
// are checked in descending priority and the first match decides.
type ComplianceRule struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Priority    int    `json:"priority"`
	Expression  string `json:"expression"`
	Action      string `json:"action"`
}

type compiledRule struct {
	ComplianceRule
	eval gval.Evaluable
}

// ComplianceEngine checks trade fact maps against a prioritised rule set.
// The rule set is immutable after construction, so checks need no locking.
type ComplianceEngine struct {
	rules []compiledRule
}

// NewComplianceEngine compiles and sorts the rule set. Expressions are
// validated here so a malformed rule fails at startup, not at admission.
func NewComplianceEngine(rules []ComplianceRule) (*ComplianceEngine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(rule.ID) == "" {
			return nil, fmt.Errorf("compliance rule id cannot be empty")
		}
		if rule.Action != ActionAllow && rule.Action != ActionDeny {
			return nil, fmt.Errorf("compliance rule %s: unknown action %q", rule.ID, rule.Action)
		}
		eval, err := complianceLanguage.NewEvaluable(rule.Expression)
		if err != nil {
			return nil, fmt.Errorf("compliance rule %s: invalid expression: %w", rule.ID, err)
		}
		compiled = append(compiled, compiledRule{ComplianceRule: rule, eval: eval})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})
	return &ComplianceEngine{rules: compiled}, nil
}

// LoadComplianceRules reads a JSON array of rules from a file.
func LoadComplianceRules(path string) ([]ComplianceRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compliance rules file: %w", err)
	}
	var rules []ComplianceRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse compliance rules file %s: %w", path, err)
	}
	return rules, nil
}

// Check evaluates the facts against the rule set. The first matching rule
// decides: a deny rule rejects the trade, an allow rule clears it. Facts
// matching no rule are allowed.
func (e *ComplianceEngine) Check(facts map[string]interface{}) error {
	for _, rule := range e.rules {
		value, err := rule.eval(context.Background(), facts)
		if err != nil {
			return fmt.Errorf("compliance rule %s: %w", rule.ID, err)
		}
		matched, ok := value.(bool)
		if !ok {
			return fmt.Errorf("compliance rule %s: expression must evaluate to a boolean, got %T", rule.ID, value)
		}
		if !matched {
			continue
		}
		if rule.Action == ActionDeny {
			if rule.Description != "" {
				return fmt.Errorf("trade denied by compliance rule %s: %s", rule.ID, rule.Description)
			}
			return fmt.Errorf("trade denied by compliance rule %s", rule.ID)
		}
		return nil
	}
	return nil
}

// Rules returns the rule set in evaluation order.
func (e *ComplianceEngine) Rules() []ComplianceRule {
	rules := make([]ComplianceRule, len(e.rules))
	for i, rule := range e.rules {
		rules[i] = rule.ComplianceRule
	}
	return rules
}
