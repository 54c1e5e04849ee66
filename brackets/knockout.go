package brackets

import (
	"context"
	"errors"
	"math"
)

// KnockoutGenerator builds a single-elimination schedule. Round one
// pairs the pool in seed order; byes fill the bracket up to the next
// power of two. Later rounds are created as open slots so the full
// schedule exists up front and is filled in as results are recorded.
type KnockoutGenerator struct{}

func NewKnockoutGenerator() Generator {
	return &KnockoutGenerator{}
}

func (g *KnockoutGenerator) Name() string {
	return "Knockout"
}

func (g *KnockoutGenerator) Generate(ctx context.Context, params GenerateParams) ([]*Pairing, error) {
	pool := params.Pool
	n := len(pool)
	if n < 2 {
		return nil, errors.New("not enough participants for a knockout schedule (minimum 2)")
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	bracketSize := 1 << uint(numRounds)
	numByes := bracketSize - n

	type slot struct {
		enrollmentID *int
	}

	pairings := make([]*Pairing, 0, bracketSize-1)

	// Round one: the top seeds take the byes, the rest are paired in
	// seed order. A bye pairing carries only P1 and its winner is known.
	nextRound := make([]slot, 0, bracketSize/2)
	idx := 0
	for order := 1; order <= bracketSize/2; order++ {
		p := &Pairing{Round: 1, OrderInRound: order}
		if order <= numByes {
			id := pool[idx].ID
			idx++
			p.P1EnrollmentID = &id
			nextRound = append(nextRound, slot{enrollmentID: &id})
		} else {
			id1, id2 := pool[idx].ID, pool[idx+1].ID
			idx += 2
			p.P1EnrollmentID = &id1
			p.P2EnrollmentID = &id2
			nextRound = append(nextRound, slot{})
		}
		pairings = append(pairings, p)
	}

	// Later rounds: open slots, pre-filled where the feeder was a bye
	// whose winner is already determined.
	current := nextRound
	for r := 2; r <= numRounds; r++ {
		upcoming := make([]slot, 0, len(current)/2)
		for i, o := 0, 0; i < len(current); i += 2 {
			o++
			p := &Pairing{Round: r, OrderInRound: o}
			if current[i].enrollmentID != nil {
				p.P1EnrollmentID = current[i].enrollmentID
			}
			if i+1 < len(current) && current[i+1].enrollmentID != nil {
				p.P2EnrollmentID = current[i+1].enrollmentID
			}
			pairings = append(pairings, p)
			upcoming = append(upcoming, slot{})
		}
		current = upcoming
	}

	return pairings, nil
}
