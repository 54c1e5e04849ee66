package brackets

import (
	"context"
	"fmt"
)

// RoundRobinGenerator schedules every participant against every other
// participant exactly once, using the circle method: with n players
// (padded to even with a dummy), n-1 rounds of n/2 pairings each.
type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() Generator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string {
	return "RoundRobin"
}

func (g *RoundRobinGenerator) Generate(ctx context.Context, params GenerateParams) ([]*Pairing, error) {
	pool := params.Pool
	if len(pool) < 2 {
		return nil, fmt.Errorf("not enough participants for a round-robin schedule (found %d, min 2)", len(pool))
	}

	ids := make([]*int, 0, len(pool)+1)
	for _, e := range pool {
		id := e.ID
		ids = append(ids, &id)
	}
	if len(ids)%2 != 0 {
		ids = append(ids, nil) // dummy: its opponent sits the round out
	}

	n := len(ids)
	pairings := make([]*Pairing, 0, (n-1)*n/2)

	for round := 1; round < n; round++ {
		order := 0
		for i := 0; i < n/2; i++ {
			p1, p2 := ids[i], ids[n-1-i]
			if p1 == nil || p2 == nil {
				continue // bye against the dummy, no session
			}
			order++
			pairings = append(pairings, &Pairing{
				Round:          round,
				OrderInRound:   order,
				P1EnrollmentID: p1,
				P2EnrollmentID: p2,
			})
		}
		// Rotate all but the first position.
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}

	return pairings, nil
}
