package brackets

import (
	"context"
	"fmt"

	"github.com/academyhq/tournament-core/models"
)

const groupSize = 4

// GroupKnockoutGenerator runs a group stage (round robin inside groups
// of up to four, assigned in seed order) followed by a knockout stage
// of open slots: one semifinal pair per two groups and a final. The
// knockout slots are filled from group results as they are recorded.
type GroupKnockoutGenerator struct{}

func NewGroupKnockoutGenerator() Generator {
	return &GroupKnockoutGenerator{}
}

func (g *GroupKnockoutGenerator) Name() string {
	return "GroupKnockout"
}

func (g *GroupKnockoutGenerator) Generate(ctx context.Context, params GenerateParams) ([]*Pairing, error) {
	pool := params.Pool
	if len(pool) < 4 {
		return nil, fmt.Errorf("not enough participants for a group stage (found %d, min 4)", len(pool))
	}

	numGroups := (len(pool) + groupSize - 1) / groupSize
	groups := make([][]*models.Enrollment, numGroups)
	for i, e := range pool {
		groups[i%numGroups] = append(groups[i%numGroups], e)
	}

	rr := NewRoundRobinGenerator()
	pairings := make([]*Pairing, 0)
	groupRounds := 0

	for gi, group := range groups {
		if len(group) < 2 {
			return nil, fmt.Errorf("group %d has fewer than 2 participants", gi+1)
		}
		label := fmt.Sprintf("Group %c", 'A'+gi)
		groupPairings, err := rr.Generate(ctx, GenerateParams{Tournament: params.Tournament, Pool: group})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", label, err)
		}
		for _, p := range groupPairings {
			lbl := label
			p.GroupLabel = &lbl
			if p.Round > groupRounds {
				groupRounds = p.Round
			}
		}
		pairings = append(pairings, groupPairings...)
	}

	// Knockout stage: the qualifier count is the top two per group,
	// rounded up to a bracket the knockout slots can hold.
	qualifiers := numGroups * 2
	round := groupRounds + 1
	for matches := qualifiers / 2; matches >= 1; matches /= 2 {
		for o := 1; o <= matches; o++ {
			pairings = append(pairings, &Pairing{Round: round, OrderInRound: o})
		}
		round++
		if matches == 1 {
			break
		}
	}

	return pairings, nil
}
