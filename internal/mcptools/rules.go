package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memctx/memctx/internal/rules"
	"github.com/memctx/memctx/internal/storage"
)

// RuleOutput is the tool-facing projection of a storage.Rule.
type RuleOutput struct {
	ID              int64    `json:"id"`
	Trigger         string   `json:"trigger"`
	TriggerKeywords []string `json:"trigger_keywords,omitempty"`
	MustDo          []string `json:"must_do,omitempty"`
	MustNot         []string `json:"must_not,omitempty"`
	AskFirst        []string `json:"ask_first,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Priority        int      `json:"priority"`
	Enabled         bool     `json:"enabled"`
	CreatedAt       string   `json:"created_at"`
}

func toRuleOutput(r *storage.Rule) RuleOutput {
	return RuleOutput{
		ID:              r.ID,
		Trigger:         r.Trigger,
		TriggerKeywords: r.TriggerKeywords,
		MustDo:          r.MustDo,
		MustNot:         r.MustNot,
		AskFirst:        r.AskFirst,
		Warnings:        r.Warnings,
		Priority:        r.Priority,
		Enabled:         r.Enabled,
		CreatedAt:       r.CreatedAt.Format(timeFormat),
	}
}

// AddRuleInput is add_rule's tool input.
type AddRuleInput struct {
	ProjectPath     string   `json:"project_path" jsonschema:"absolute path to the project root"`
	Trigger         string   `json:"trigger" jsonschema:"text describing when this rule applies"`
	TriggerKeywords []string `json:"trigger_keywords,omitempty"`
	MustDo          []string `json:"must_do,omitempty"`
	MustNot         []string `json:"must_not,omitempty"`
	AskFirst        []string `json:"ask_first,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Priority        int      `json:"priority,omitempty"`
	Enabled         bool     `json:"enabled,omitempty"`
}

// AddRuleOutput wraps the new rule.
type AddRuleOutput struct {
	Rule RuleOutput `json:"rule"`
}

func (s *Server) addRule(ctx context.Context, _ *mcp.CallToolRequest, in AddRuleInput) (*mcp.CallToolResult, AddRuleOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, AddRuleOutput{}, mapError(err)
	}

	rule, err := pc.Rules.AddRule(ctx, rules.AddRuleInput{
		Trigger:         in.Trigger,
		TriggerKeywords: in.TriggerKeywords,
		MustDo:          in.MustDo,
		MustNot:         in.MustNot,
		AskFirst:        in.AskFirst,
		Warnings:        in.Warnings,
		Priority:        in.Priority,
		Enabled:         in.Enabled,
	})
	if err != nil {
		return nil, AddRuleOutput{}, mapError(err)
	}
	return nil, AddRuleOutput{Rule: toRuleOutput(rule)}, nil
}

// ListRulesInput is list_rules' tool input.
type ListRulesInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	EnabledOnly bool   `json:"enabled_only,omitempty"`
}

// ListRulesOutput lists every rule.
type ListRulesOutput struct {
	Rules []RuleOutput `json:"rules"`
}

func (s *Server) listRules(ctx context.Context, _ *mcp.CallToolRequest, in ListRulesInput) (*mcp.CallToolResult, ListRulesOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, ListRulesOutput{}, mapError(err)
	}

	list, err := pc.Rules.ListRules(ctx, in.EnabledOnly)
	if err != nil {
		return nil, ListRulesOutput{}, mapError(err)
	}

	out := ListRulesOutput{}
	for _, r := range list {
		out.Rules = append(out.Rules, toRuleOutput(r))
	}
	return nil, out, nil
}

// CheckRulesInput is check_rules' tool input.
type CheckRulesInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	Text        string `json:"text" jsonschema:"text to check against rule triggers, e.g. a planned action"`
}

// CheckRulesOutput lists the rules that matched, most relevant first.
type CheckRulesOutput struct {
	Matched []RuleOutput `json:"matched"`
}

func (s *Server) checkRules(ctx context.Context, _ *mcp.CallToolRequest, in CheckRulesInput) (*mcp.CallToolResult, CheckRulesOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, CheckRulesOutput{}, mapError(err)
	}
	if err := pc.EnsureRulesFresh(ctx); err != nil {
		return nil, CheckRulesOutput{}, mapError(err)
	}

	matched, err := pc.Rules.CheckRules(ctx, in.Text)
	if err != nil {
		return nil, CheckRulesOutput{}, mapError(err)
	}

	out := CheckRulesOutput{}
	for _, r := range matched {
		out.Matched = append(out.Matched, toRuleOutput(r))
	}
	return nil, out, nil
}
