// Package rules is the rules engine (C7): a small CRUD surface over trigger
// -> obligations records, plus a check operation that scores incoming text
// against every rule's trigger using its own dedicated TF-IDF index,
// mirroring the Memory manager's use of the same index type for memories.
package rules

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/storage"
	"github.com/memctx/memctx/internal/tfidf"
)

// defaultCheckThreshold is the trigger-score cutoff below which a rule is
// not considered relevant to the checked text.
const defaultCheckThreshold = 0.1

// Engine owns one project's rule set and its trigger index.
type Engine struct {
	Store     *storage.Store
	Index     *tfidf.Index
	Threshold float64

	indexBuiltAt time.Time
}

// NewEngine builds an engine over an already-open store, loading every
// existing rule's trigger into a fresh index.
func NewEngine(ctx context.Context, store *storage.Store) (*Engine, error) {
	e := &Engine{
		Store:     store,
		Index:     tfidf.New(),
		Threshold: defaultCheckThreshold,
	}
	if err := e.reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) reload(ctx context.Context) error {
	rules, err := e.Store.ListRules(ctx, false)
	if err != nil {
		return err
	}
	e.Index.Clear()
	for _, r := range rules {
		e.Index.Add(formatRuleID(r.ID), r.Trigger, r.TriggerKeywords)
	}
	e.indexBuiltAt = time.Now()
	return nil
}

// Reload forces a full re-read of every rule's trigger from storage and
// re-stamps the freshness marker C9 compares against storage's
// max(created_at) to decide whether a project's rules engine is stale.
func (e *Engine) Reload(ctx context.Context) error {
	return e.reload(ctx)
}

// IndexBuiltAt reports when the trigger index was last rebuilt.
func (e *Engine) IndexBuiltAt() time.Time {
	return e.indexBuiltAt
}

// AddRuleInput is the caller-supplied payload for AddRule.
type AddRuleInput struct {
	Trigger         string
	TriggerKeywords []string
	MustDo          []string
	MustNot         []string
	AskFirst        []string
	Warnings        []string
	Priority        int
	Enabled         bool
}

// AddRule validates and inserts a new rule, indexing its trigger.
func (e *Engine) AddRule(ctx context.Context, in AddRuleInput) (*storage.Rule, error) {
	const op = "rules.AddRule"

	trigger := strings.TrimSpace(in.Trigger)
	if trigger == "" {
		return nil, memerrors.Validationf(op, "trigger must not be empty")
	}

	rule := &storage.Rule{
		Trigger:         trigger,
		TriggerKeywords: in.TriggerKeywords,
		MustDo:          in.MustDo,
		MustNot:         in.MustNot,
		AskFirst:        in.AskFirst,
		Warnings:        in.Warnings,
		Priority:        in.Priority,
		Enabled:         in.Enabled,
	}

	err := e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		return storage.InsertRule(ctx, tx, rule)
	})
	if err != nil {
		return nil, err
	}

	e.Index.Add(formatRuleID(rule.ID), rule.Trigger, rule.TriggerKeywords)
	e.indexBuiltAt = time.Now()
	return rule, nil
}

// ListRules returns every rule, optionally restricted to enabled ones,
// ordered (priority desc, id asc) as storage.ListRules already returns.
func (e *Engine) ListRules(ctx context.Context, enabledOnly bool) ([]*storage.Rule, error) {
	return e.Store.ListRules(ctx, enabledOnly)
}

// CheckRules tokenizes text, scores it against every rule's trigger index,
// and returns the rules scoring above threshold, sorted by (score desc,
// priority desc).
func (e *Engine) CheckRules(ctx context.Context, text string) ([]*storage.Rule, error) {
	hits := e.Index.Query(text, 0, e.Threshold)
	if len(hits) == 0 {
		return nil, nil
	}

	scoreByID := make(map[int64]float64, len(hits))
	for _, h := range hits {
		id, ok := parseRuleID(h.ID)
		if !ok {
			continue
		}
		scoreByID[id] = h.Score
	}

	all, err := e.Store.ListRules(ctx, true)
	if err != nil {
		return nil, err
	}

	var matched []*storage.Rule
	for _, r := range all {
		if _, ok := scoreByID[r.ID]; ok {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := scoreByID[matched[i].ID], scoreByID[matched[j].ID]
		if si != sj {
			return si > sj
		}
		return matched[i].Priority > matched[j].Priority
	})

	return matched, nil
}

func formatRuleID(id int64) string { return strconv.FormatInt(id, 10) }

func parseRuleID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
