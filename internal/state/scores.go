package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrScoreOutOfRange = errors.New("credit registry: score out of range")

// ScoreRegistry holds per-user credit scores. Writes arrive only through the
// authority-gated admin path; everything else reads. Unknown users default to
// zero, which lands in the most conservative tier.
type ScoreRegistry struct {
	minScore int
	maxScore int
	scores   map[uuid.UUID]int
}

func NewScoreRegistry(minScore, maxScore int) *ScoreRegistry {
	return &ScoreRegistry{
		minScore: minScore,
		maxScore: maxScore,
		scores:   make(map[uuid.UUID]int),
	}
}

// Set assigns a score after bounds validation.
func (r *ScoreRegistry) Set(user uuid.UUID, score int) error {
	if score < r.minScore || score > r.maxScore {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrScoreOutOfRange, score, r.minScore, r.maxScore)
	}
	r.scores[user] = score
	return nil
}

// Get returns the user's score, zero if never assigned.
func (r *ScoreRegistry) Get(user uuid.UUID) int {
	return r.scores[user]
}
