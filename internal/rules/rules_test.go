package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memctx/memctx/internal/storage"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(ctx, "", 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e, err := NewEngine(ctx, store)
	require.NoError(t, err)
	return e
}

func TestAddRule_RejectsEmptyTrigger(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.AddRule(context.Background(), AddRuleInput{Trigger: "   "})
	require.Error(t, err)
}

func TestAddRule_PersistsAndIndexes(t *testing.T) {
	e := newTestEngine(t)
	rule, err := e.AddRule(context.Background(), AddRuleInput{
		Trigger:  "deleting a database migration",
		MustDo:   []string{"confirm with the team first"},
		Priority: 5,
		Enabled:  true,
	})
	require.NoError(t, err)
	require.NotZero(t, rule.ID)
	require.Equal(t, 1, e.Index.Size())
}

func TestListRules_FiltersEnabledOnly(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AddRule(ctx, AddRuleInput{Trigger: "enabled rule trigger", Enabled: true})
	require.NoError(t, err)
	_, err = e.AddRule(ctx, AddRuleInput{Trigger: "disabled rule trigger", Enabled: false})
	require.NoError(t, err)

	all, err := e.ListRules(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	enabled, err := e.ListRules(ctx, true)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
}

func TestCheckRules_MatchesByTriggerScore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AddRule(ctx, AddRuleInput{
		Trigger:  "dropping a production database table",
		Warnings: []string{"irreversible"},
		Priority: 10,
		Enabled:  true,
	})
	require.NoError(t, err)
	_, err = e.AddRule(ctx, AddRuleInput{
		Trigger:  "renaming a CSS class",
		Priority: 1,
		Enabled:  true,
	})
	require.NoError(t, err)

	matched, err := e.CheckRules(ctx, "about to drop the production database table")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, "dropping a production database table", matched[0].Trigger)
}

func TestCheckRules_SortsByScoreThenPriority(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AddRule(ctx, AddRuleInput{Trigger: "database migration rollback", Priority: 1, Enabled: true})
	require.NoError(t, err)
	_, err = e.AddRule(ctx, AddRuleInput{Trigger: "database migration rollback", Priority: 9, Enabled: true})
	require.NoError(t, err)

	matched, err := e.CheckRules(ctx, "running a database migration rollback")
	require.NoError(t, err)
	require.Len(t, matched, 2)
	require.Equal(t, 9, matched[0].Priority)
}

func TestCheckRules_NoMatchReturnsEmpty(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AddRule(ctx, AddRuleInput{Trigger: "database migration rollback", Enabled: true})
	require.NoError(t, err)

	matched, err := e.CheckRules(ctx, "completely unrelated text about fonts")
	require.NoError(t, err)
	require.Empty(t, matched)
}

func TestCheckRules_DisabledRuleExcludedEvenIfIndexed(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.AddRule(ctx, AddRuleInput{Trigger: "archiving old customer records", Enabled: false})
	require.NoError(t, err)

	matched, err := e.CheckRules(ctx, "archiving old customer records now")
	require.NoError(t, err)
	require.Empty(t, matched)
}
