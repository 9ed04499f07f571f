package hybrid

import (
	"math"
	"time"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/storage"
)

const ln2 = math.Ln2

// decayAndOutcome applies the age-based exponential decay and the
// outcome-based boost/penalty to a fused score, per §4.5 step 4.
// Pinned or permanent memories bypass decay entirely.
func decayAndOutcome(m *storage.Memory, score float64, now time.Time, cfg config.SearchConfig) float64 {
	if !m.Pinned && !m.IsPermanent {
		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		halfLife := float64(cfg.HalfLifeFor(string(m.Category)))
		if halfLife > 0 {
			score *= math.Exp(-ln2 * ageDays / halfLife)
		}
	}

	if m.Worked != nil {
		if *m.Worked {
			score *= 1 + cfg.OutcomeBoost
		} else {
			score *= 1 - cfg.OutcomePenalty
		}
	}

	return score
}
