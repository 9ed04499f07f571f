package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/memctx/memctx/internal/output"
	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage and check project rules",
	}
	cmd.AddCommand(newRulesAddCmd())
	cmd.AddCommand(newRulesListCmd())
	cmd.AddCommand(newRulesCheckCmd())
	return cmd
}

func newRulesAddCmd() *cobra.Command {
	var mustDo, mustNot, askFirst, warnings, keywords []string
	var priority int

	cmd := &cobra.Command{
		Use:   "add <trigger>",
		Short: "Add a trigger -> obligations rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesAdd(cmd.Context(), cmd, args[0], keywords, mustDo, mustNot, askFirst, warnings, priority)
		},
	}

	cmd.Flags().StringSliceVar(&keywords, "keyword", nil, "additional trigger keywords")
	cmd.Flags().StringSliceVar(&mustDo, "must-do", nil, "obligations the rule enforces")
	cmd.Flags().StringSliceVar(&mustNot, "must-not", nil, "prohibitions the rule enforces")
	cmd.Flags().StringSliceVar(&askFirst, "ask-first", nil, "actions requiring confirmation first")
	cmd.Flags().StringSliceVar(&warnings, "warning", nil, "warnings to surface when triggered")
	cmd.Flags().IntVar(&priority, "priority", 0, "tie-break priority, higher wins")

	return cmd
}

func runRulesAdd(ctx context.Context, cmd *cobra.Command, trigger string, keywords, mustDo, mustNot, askFirst, warnings []string, priority int) error {
	root, cfg, err := resolveProject()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	manager := projectctx.NewManager(cfg)
	defer manager.EvictAll()

	pc, err := manager.Get(ctx, root)
	if err != nil {
		return err
	}

	rule, err := pc.Rules.AddRule(ctx, rules.AddRuleInput{
		Trigger:         trigger,
		TriggerKeywords: keywords,
		MustDo:          mustDo,
		MustNot:         mustNot,
		AskFirst:        askFirst,
		Warnings:        warnings,
		Priority:        priority,
		Enabled:         true,
	})
	if err != nil {
		out.Errorf("add rule failed: %v", err)
		return err
	}

	out.Successf("added rule #%d", rule.ID)
	return nil
}

func newRulesListCmd() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List project rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(cmd.Context(), cmd, enabledOnly)
		},
	}
	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "list only enabled rules")
	return cmd
}

func runRulesList(ctx context.Context, cmd *cobra.Command, enabledOnly bool) error {
	root, cfg, err := resolveProject()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	manager := projectctx.NewManager(cfg)
	defer manager.EvictAll()

	pc, err := manager.Get(ctx, root)
	if err != nil {
		return err
	}

	list, err := pc.Rules.ListRules(ctx, enabledOnly)
	if err != nil {
		out.Errorf("list rules failed: %v", err)
		return err
	}

	for _, r := range list {
		out.Statusf("", "#%d [p=%d] %s", r.ID, r.Priority, r.Trigger)
	}
	return nil
}

func newRulesCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <text>",
		Short: "Check text against every rule's trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesCheck(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runRulesCheck(ctx context.Context, cmd *cobra.Command, text string) error {
	root, cfg, err := resolveProject()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	manager := projectctx.NewManager(cfg)
	defer manager.EvictAll()

	pc, err := manager.Get(ctx, root)
	if err != nil {
		return err
	}
	if err := pc.EnsureRulesFresh(ctx); err != nil {
		return err
	}

	hits, err := pc.Rules.CheckRules(ctx, text)
	if err != nil {
		out.Errorf("check rules failed: %v", err)
		return err
	}

	if len(hits) == 0 {
		out.Status("", "no rules matched")
		return nil
	}
	for _, r := range hits {
		out.Warningf("#%d %s", r.ID, r.Trigger)
		for _, m := range r.MustDo {
			out.Statusf("", "  must do: %s", m)
		}
		for _, m := range r.MustNot {
			out.Statusf("", "  must not: %s", m)
		}
	}
	return nil
}
