package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academyhq/tournament-core/models"
)

func pool(n int) []*models.Enrollment {
	out := make([]*models.Enrollment, n)
	for i := range out {
		out[i] = &models.Enrollment{ID: i + 1, UserID: 100 + i, TournamentID: 1}
	}
	return out
}

func byRound(pairings []*Pairing) map[int][]*Pairing {
	out := make(map[int][]*Pairing)
	for _, p := range pairings {
		out[p.Round] = append(out[p.Round], p)
	}
	return out
}

func TestForFormat(t *testing.T) {
	cases := []struct {
		format models.TournamentFormat
		name   string
	}{
		{models.FormatKnockout, "Knockout"},
		{models.FormatRoundRobin, "RoundRobin"},
		{models.FormatGroupKnockout, "GroupKnockout"},
	}
	for _, tc := range cases {
		gen, ok := ForFormat(tc.format)
		require.True(t, ok, tc.format)
		assert.Equal(t, tc.name, gen.Name())
	}

	_, ok := ForFormat(models.TournamentFormat("swiss"))
	assert.False(t, ok)
}

func TestKnockoutRejectsTinyPool(t *testing.T) {
	_, err := NewKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(1)})
	assert.Error(t, err)
}

func TestKnockoutTwoPlayers(t *testing.T) {
	pairings, err := NewKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(2)})
	require.NoError(t, err)
	require.Len(t, pairings, 1)

	final := pairings[0]
	assert.Equal(t, 1, final.Round)
	assert.Equal(t, 1, final.OrderInRound)
	require.NotNil(t, final.P1EnrollmentID)
	require.NotNil(t, final.P2EnrollmentID)
	assert.Equal(t, 1, *final.P1EnrollmentID)
	assert.Equal(t, 2, *final.P2EnrollmentID)
}

func TestKnockoutFourPlayers(t *testing.T) {
	pairings, err := NewKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(4)})
	require.NoError(t, err)
	require.Len(t, pairings, 3)

	rounds := byRound(pairings)
	require.Len(t, rounds[1], 2)
	require.Len(t, rounds[2], 1)

	assert.Equal(t, 1, *rounds[1][0].P1EnrollmentID)
	assert.Equal(t, 2, *rounds[1][0].P2EnrollmentID)
	assert.Equal(t, 3, *rounds[1][1].P1EnrollmentID)
	assert.Equal(t, 4, *rounds[1][1].P2EnrollmentID)

	// The final exists up front with both slots open.
	assert.Nil(t, rounds[2][0].P1EnrollmentID)
	assert.Nil(t, rounds[2][0].P2EnrollmentID)
}

func TestKnockoutFivePlayersByes(t *testing.T) {
	pairings, err := NewKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(5)})
	require.NoError(t, err)
	// Bracket of 8: 4 + 2 + 1 slots.
	require.Len(t, pairings, 7)

	rounds := byRound(pairings)
	require.Len(t, rounds[1], 4)
	require.Len(t, rounds[2], 2)
	require.Len(t, rounds[3], 1)

	// Top three seeds take the byes.
	for i, seed := range []int{1, 2, 3} {
		p := rounds[1][i]
		require.NotNil(t, p.P1EnrollmentID)
		assert.Equal(t, seed, *p.P1EnrollmentID)
		assert.Nil(t, p.P2EnrollmentID, "bye pairing has no opponent")
	}
	assert.Equal(t, 4, *rounds[1][3].P1EnrollmentID)
	assert.Equal(t, 5, *rounds[1][3].P2EnrollmentID)

	// Bye winners are pre-advanced into round two.
	require.NotNil(t, rounds[2][0].P1EnrollmentID)
	require.NotNil(t, rounds[2][0].P2EnrollmentID)
	assert.Equal(t, 1, *rounds[2][0].P1EnrollmentID)
	assert.Equal(t, 2, *rounds[2][0].P2EnrollmentID)
	require.NotNil(t, rounds[2][1].P1EnrollmentID)
	assert.Equal(t, 3, *rounds[2][1].P1EnrollmentID)
	assert.Nil(t, rounds[2][1].P2EnrollmentID)

	assert.Nil(t, rounds[3][0].P1EnrollmentID)
	assert.Nil(t, rounds[3][0].P2EnrollmentID)
}

func TestKnockoutSevenPlayersSingleBye(t *testing.T) {
	pairings, err := NewKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(7)})
	require.NoError(t, err)
	require.Len(t, pairings, 7)

	rounds := byRound(pairings)
	require.Len(t, rounds[1], 4)

	bye := rounds[1][0]
	require.NotNil(t, bye.P1EnrollmentID)
	assert.Equal(t, 1, *bye.P1EnrollmentID)
	assert.Nil(t, bye.P2EnrollmentID)

	// Remaining seeds are paired in order.
	for i, want := range [][2]int{{2, 3}, {4, 5}, {6, 7}} {
		p := rounds[1][i+1]
		assert.Equal(t, want[0], *p.P1EnrollmentID)
		assert.Equal(t, want[1], *p.P2EnrollmentID)
	}

	require.NotNil(t, rounds[2][0].P1EnrollmentID)
	assert.Equal(t, 1, *rounds[2][0].P1EnrollmentID)
	assert.Nil(t, rounds[2][0].P2EnrollmentID)
	assert.Nil(t, rounds[2][1].P1EnrollmentID)
}

func TestRoundRobinEvenPool(t *testing.T) {
	pairings, err := NewRoundRobinGenerator().Generate(context.Background(), GenerateParams{Pool: pool(4)})
	require.NoError(t, err)
	require.Len(t, pairings, 6)

	rounds := byRound(pairings)
	require.Len(t, rounds, 3)
	for r := 1; r <= 3; r++ {
		assert.Len(t, rounds[r], 2, "round %d", r)
	}

	assertEveryPairOnce(t, pairings, 4)
}

func TestRoundRobinOddPoolSitsOneOut(t *testing.T) {
	pairings, err := NewRoundRobinGenerator().Generate(context.Background(), GenerateParams{Pool: pool(5)})
	require.NoError(t, err)
	// 5 players padded to 6: 5 rounds, one of the 3 slots per round is
	// the sit-out against the dummy.
	require.Len(t, pairings, 10)

	rounds := byRound(pairings)
	require.Len(t, rounds, 5)
	for r := 1; r <= 5; r++ {
		assert.Len(t, rounds[r], 2, "round %d", r)
	}

	assertEveryPairOnce(t, pairings, 5)
}

func assertEveryPairOnce(t *testing.T, pairings []*Pairing, n int) {
	t.Helper()
	seen := make(map[string]int)
	for _, p := range pairings {
		require.NotNil(t, p.P1EnrollmentID)
		require.NotNil(t, p.P2EnrollmentID)
		a, b := *p.P1EnrollmentID, *p.P2EnrollmentID
		require.NotEqual(t, a, b)
		if a > b {
			a, b = b, a
		}
		seen[fmt.Sprintf("%d-%d", a, b)]++
	}
	assert.Len(t, seen, n*(n-1)/2)
	for pair, count := range seen {
		assert.Equal(t, 1, count, "pair %s scheduled more than once", pair)
	}
}

func TestGroupKnockoutRejectsTinyPool(t *testing.T) {
	_, err := NewGroupKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(3)})
	assert.Error(t, err)
}

func TestGroupKnockoutSingleGroup(t *testing.T) {
	pairings, err := NewGroupKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(4)})
	require.NoError(t, err)
	// One group of four: 6 group matches plus the final slot.
	require.Len(t, pairings, 7)

	var groupStage, knockoutStage []*Pairing
	for _, p := range pairings {
		if p.GroupLabel != nil {
			groupStage = append(groupStage, p)
		} else {
			knockoutStage = append(knockoutStage, p)
		}
	}
	require.Len(t, groupStage, 6)
	for _, p := range groupStage {
		assert.Equal(t, "Group A", *p.GroupLabel)
	}

	require.Len(t, knockoutStage, 1)
	final := knockoutStage[0]
	assert.Equal(t, 4, final.Round, "final follows the three group rounds")
	assert.Nil(t, final.P1EnrollmentID)
	assert.Nil(t, final.P2EnrollmentID)
}

func TestGroupKnockoutTwoGroups(t *testing.T) {
	pairings, err := NewGroupKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(8)})
	require.NoError(t, err)
	// Two groups of four (12 matches), then two semifinals and a final.
	require.Len(t, pairings, 15)

	perGroup := make(map[string]int)
	var open []*Pairing
	for _, p := range pairings {
		if p.GroupLabel != nil {
			perGroup[*p.GroupLabel]++
			assert.NotNil(t, p.P1EnrollmentID)
			assert.NotNil(t, p.P2EnrollmentID)
		} else {
			open = append(open, p)
		}
	}
	assert.Equal(t, map[string]int{"Group A": 6, "Group B": 6}, perGroup)

	require.Len(t, open, 3)
	semis := byRound(open)
	require.Len(t, semis[4], 2)
	require.Len(t, semis[5], 1)
	for _, p := range open {
		assert.Nil(t, p.P1EnrollmentID)
		assert.Nil(t, p.P2EnrollmentID)
	}
}

func TestGroupKnockoutAssignsSeedsAcrossGroups(t *testing.T) {
	pairings, err := NewGroupKnockoutGenerator().Generate(context.Background(), GenerateParams{Pool: pool(8)})
	require.NoError(t, err)

	members := make(map[string]map[int]bool)
	for _, p := range pairings {
		if p.GroupLabel == nil {
			continue
		}
		if members[*p.GroupLabel] == nil {
			members[*p.GroupLabel] = make(map[int]bool)
		}
		members[*p.GroupLabel][*p.P1EnrollmentID] = true
		members[*p.GroupLabel][*p.P2EnrollmentID] = true
	}

	// Seeds are striped across groups so group strength stays even.
	assert.Equal(t, map[int]bool{1: true, 3: true, 5: true, 7: true}, members["Group A"])
	assert.Equal(t, map[int]bool{2: true, 4: true, 6: true, 8: true}, members["Group B"])
}
