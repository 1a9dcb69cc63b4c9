package brackets

import (
	"errors"
	"math"
	"math/rand"
	"sort"

	"github.com/vortexplay/arena-server/models"
)

var (
	ErrInsufficientParticipants = errors.New("not enough confirmed participants to generate a bracket (minimum 2)")
	ErrUnsupportedFormat        = errors.New("unsupported bracket format")
)

// Slot is one position in the ordered bracket slot list. A slot is either a
// real participant or a synthetic bye used for padding; byes carry a seed for
// ordering only and never materialize as matches.
type Slot struct {
	Seed          int
	ParticipantID int
	Bye           bool
}

// ByeAdvance records a slot that left the given round without playing.
type ByeAdvance struct {
	Round int
	Slot  Slot
}

// BracketSize returns the next power of two >= n.
func BracketSize(n int) int {
	if n <= 1 {
		return n
	}
	return 1 << uint(math.Ceil(math.Log2(float64(n))))
}

// SeedSlots orders confirmed participants into bracket slots.
//
// If any participant carries an explicit seed, participants are sorted
// ascending by it, with unseeded participants after all seeded ones. Otherwise
// the order is a uniformly random permutation drawn from rng. Either way the
// resulting slots are renumbered 1..N by position, and for formats that
// require a power-of-two field the list is padded with byes seeded N+1..M.
func SeedSlots(participants []*models.Participant, format models.BracketFormat, rng *rand.Rand) ([]Slot, error) {
	n := len(participants)
	if n < 2 {
		return nil, ErrInsufficientParticipants
	}

	ordered := make([]*models.Participant, n)
	copy(ordered, participants)

	if anyExplicitSeed(ordered) {
		sort.SliceStable(ordered, func(i, j int) bool {
			return seedOrInf(ordered[i]) < seedOrInf(ordered[j])
		})
	} else {
		rng.Shuffle(n, func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	slots := make([]Slot, 0, n)
	for i, p := range ordered {
		slots = append(slots, Slot{Seed: i + 1, ParticipantID: p.ID})
	}

	if format.RequiresPowerOfTwo() {
		for seed := n + 1; seed <= BracketSize(n); seed++ {
			slots = append(slots, Slot{Seed: seed, Bye: true})
		}
	}

	return slots, nil
}

func anyExplicitSeed(participants []*models.Participant) bool {
	for _, p := range participants {
		if p.Seed != nil {
			return true
		}
	}
	return false
}

func seedOrInf(p *models.Participant) int {
	if p.Seed == nil {
		return math.MaxInt
	}
	return *p.Seed
}
