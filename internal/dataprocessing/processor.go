package dataprocessing

import (
	"fmt"
	"sort"
	"strings"

	"verdiff/pkg/contracts/domain"
)

// Formatter applies formatting rules to the columns they name. Columns
// absent from a table are ignored. Process rejects unknown rule types with
// an error, even when the rule names an absent column; Format leaves such
// columns unchanged.
type Formatter struct {
	rules FormattingRules
}

// NewFormatter creates a formatter for rules.
func NewFormatter(rules FormattingRules) *Formatter {
	return &Formatter{rules: rules}
}

// Process implements Processor.
func (f *Formatter) Process(t *domain.Table) (*domain.Table, error) {
	for col, rule := range f.rules {
		switch rule.Type {
		case RuleZFill, RuleTrim:
		default:
			return nil, fmt.Errorf("column %q: unknown formatting rule %q", col, rule.Type)
		}
	}
	return f.Format(t), nil
}

// Format returns a copy of t with every rule applied. t is not modified.
func (f *Formatter) Format(t *domain.Table) *domain.Table {
	if len(f.rules) == 0 {
		return t
	}

	cols := make([]string, 0, len(f.rules))
	for col := range f.rules {
		if t.HasColumn(col) {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return t
	}
	sort.Strings(cols)

	out := &domain.Table{
		Name:    t.Name,
		Columns: t.Columns,
		Records: make([]domain.Record, len(t.Records)),
	}
	for i, rec := range t.Records {
		cp := make(domain.Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		for _, col := range cols {
			if v, ok := cp[col]; ok {
				cp[col] = applyRule(f.rules[col], v)
			}
		}
		out.Records[i] = cp
	}
	return out
}

func applyRule(rule FormattingRule, v string) string {
	switch rule.Type {
	case RuleZFill:
		return ZFill(v, rule.Width)
	case RuleTrim:
		return strings.TrimSpace(v)
	default:
		return v
	}
}

// ZFill left-pads s with zeros to width characters. A leading sign stays in
// front of the padding. Width <= 0 and strings already wide enough are
// returned unchanged.
func ZFill(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) >= width {
		return s
	}
	pad := strings.Repeat("0", width-len(r))
	if len(r) > 0 && (r[0] == '+' || r[0] == '-') {
		return string(r[0]) + pad + string(r[1:])
	}
	return pad + s
}
