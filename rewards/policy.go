// Package rewards holds the versioned payout policy. The policy is a
// JSON document validated once at the boundary; the distribution
// coordinator only ever sees a checked Policy value.
package rewards

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const SupportedVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported reward policy version")
	ErrInvalidPolicy      = errors.New("invalid reward policy")
)

// Policy describes how a tournament pot is split by final place.
// PotPercent is the share of collected enrollment fees that forms the
// pot; Shares maps place number to its percentage of that pot.
type Policy struct {
	Version    int         `json:"version"`
	PotPercent int         `json:"pot_percent"`
	Shares     map[int]int `json:"-"`
}

type policyJSON struct {
	Version    int            `json:"version"`
	PotPercent int            `json:"pot_percent"`
	Shares     map[string]int `json:"shares"`
}

// Parse decodes and validates a policy document. Missing required
// sections, unknown versions and shares summing past 100 are all
// rejected here rather than at payout time.
func Parse(data []byte) (*Policy, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidPolicy)
	}

	var raw policyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	if raw.Version != SupportedVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, raw.Version, SupportedVersion)
	}
	if raw.PotPercent <= 0 || raw.PotPercent > 100 {
		return nil, fmt.Errorf("%w: pot_percent must be in (0, 100], got %d", ErrInvalidPolicy, raw.PotPercent)
	}
	if len(raw.Shares) == 0 {
		return nil, fmt.Errorf("%w: shares section is required", ErrInvalidPolicy)
	}

	shares := make(map[int]int, len(raw.Shares))
	total := 0
	for placeStr, pct := range raw.Shares {
		var place int
		if _, err := fmt.Sscanf(placeStr, "%d", &place); err != nil || place <= 0 {
			return nil, fmt.Errorf("%w: invalid place %q", ErrInvalidPolicy, placeStr)
		}
		if pct <= 0 {
			return nil, fmt.Errorf("%w: share for place %d must be positive, got %d", ErrInvalidPolicy, place, pct)
		}
		if _, dup := shares[place]; dup {
			return nil, fmt.Errorf("%w: duplicate place %d", ErrInvalidPolicy, place)
		}
		shares[place] = pct
		total += pct
	}
	if total > 100 {
		return nil, fmt.Errorf("%w: shares sum to %d%%, must not exceed 100", ErrInvalidPolicy, total)
	}

	return &Policy{Version: raw.Version, PotPercent: raw.PotPercent, Shares: shares}, nil
}

// Default is the academy's standard 50/30/20 split of a full pot.
func Default() *Policy {
	return &Policy{
		Version:    SupportedVersion,
		PotPercent: 100,
		Shares:     map[int]int{1: 50, 2: 30, 3: 20},
	}
}

// Payout is one computed reward line.
type Payout struct {
	Place  int
	Amount int
}

// Compute turns collected fees into per-place payouts. Amounts round
// down; the remainder stays with the academy. Places with no share get
// no payout.
func (p *Policy) Compute(collectedFees int) (pot int, payouts []Payout) {
	if collectedFees <= 0 {
		return 0, nil
	}
	pot = collectedFees * p.PotPercent / 100

	places := make([]int, 0, len(p.Shares))
	for place := range p.Shares {
		places = append(places, place)
	}
	sort.Ints(places)

	payouts = make([]Payout, 0, len(places))
	for _, place := range places {
		amount := pot * p.Shares[place] / 100
		if amount <= 0 {
			continue
		}
		payouts = append(payouts, Payout{Place: place, Amount: amount})
	}
	return pot, payouts
}
