package dataprocessing

import "verdiff/pkg/contracts/domain"

// Supported formatting rule types.
const (
	RuleZFill = "zfill"
	RuleTrim  = "trim"
)

// Processor transforms a table before it reaches comparison.
type Processor interface {
	Process(t *domain.Table) (*domain.Table, error)
}

// FormattingRule describes how one column is normalized.
type FormattingRule struct {
	Type  string `yaml:"type" json:"type" validate:"required,oneof=zfill trim"`
	Width int    `yaml:"width,omitempty" json:"width,omitempty" validate:"gte=0"`
}

// FormattingRules maps column names to their rule.
type FormattingRules map[string]FormattingRule
