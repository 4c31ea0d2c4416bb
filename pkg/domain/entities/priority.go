package entities

import (
	"fmt"
	"sort"
	"strings"
)

// ResolutionPolicy selects how an oversubscribed pool is shared
type ResolutionPolicy int

const (
	// StrictPriority services higher-priority claims in full before lower ones
	StrictPriority ResolutionPolicy = iota
	// ProRata scales every claim by the same ratio when demand exceeds capacity
	ProRata
	// IndependentCap caps each claim against the unadjusted pool on its own;
	// claims do not compete with each other
	IndependentCap
)

// String method for ResolutionPolicy enum
func (p ResolutionPolicy) String() string {
	switch p {
	case StrictPriority:
		return "strict-priority"
	case ProRata:
		return "pro-rata"
	case IndependentCap:
		return "independent-cap"
	default:
		return "unknown"
	}
}

// Shared reports whether claims under this policy compete for one capacity
func (p ResolutionPolicy) Shared() bool {
	return p == StrictPriority || p == ProRata
}

// ParseResolutionPolicy parses a policy name; empty means strict priority
func ParseResolutionPolicy(s string) (ResolutionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict-priority", "strict", "priority":
		return StrictPriority, nil
	case "pro-rata", "prorata", "proportional":
		return ProRata, nil
	case "independent-cap", "independent", "cap":
		return IndependentCap, nil
	default:
		return StrictPriority, fmt.Errorf("unknown resolution policy: %s", s)
	}
}

// PriorityOrdering ranks solutions competing for one resource category.
// Solutions not listed rank after every listed one.
type PriorityOrdering struct {
	Category string
	Order    []SolutionID
	Policy   ResolutionPolicy

	ranks map[SolutionID]int
}

// NewPriorityOrdering creates a validated PriorityOrdering
func NewPriorityOrdering(category string, order []SolutionID, policy ResolutionPolicy) (*PriorityOrdering, error) {
	if category == "" {
		return nil, fmt.Errorf("priority category cannot be empty")
	}
	ranks := make(map[SolutionID]int, len(order))
	for i, id := range order {
		if id == "" {
			return nil, fmt.Errorf("priority list for %s has an empty solution id at position %d", category, i)
		}
		if prev, dup := ranks[id]; dup {
			return nil, fmt.Errorf(
				"priority list for %s names %s twice (positions %d and %d)",
				category, id, prev, i,
			)
		}
		ranks[id] = i
	}
	ordered := make([]SolutionID, len(order))
	copy(ordered, order)
	return &PriorityOrdering{
		Category: category,
		Order:    ordered,
		Policy:   policy,
		ranks:    ranks,
	}, nil
}

// Rank returns the 0-based position of a solution, or len(Order) when unlisted
func (p *PriorityOrdering) Rank(id SolutionID) int {
	if p == nil {
		return 0
	}
	if p.ranks == nil {
		for i, listed := range p.Order {
			if listed == id {
				return i
			}
		}
		return len(p.Order)
	}
	if r, ok := p.ranks[id]; ok {
		return r
	}
	return len(p.Order)
}

// Lists reports whether the solution appears in the ordering
func (p *PriorityOrdering) Lists(id SolutionID) bool {
	return p != nil && p.Rank(id) < len(p.Order)
}

// Ordered returns the claims sorted by rank; ties keep their input order
func (p *PriorityOrdering) Ordered(claims []SolutionClaim) []SolutionClaim {
	sorted := make([]SolutionClaim, len(claims))
	copy(sorted, claims)
	sort.SliceStable(sorted, func(i, j int) bool {
		return p.Rank(sorted[i].SolutionID()) < p.Rank(sorted[j].SolutionID())
	})
	return sorted
}

// PolicyOf returns the ordering's policy, StrictPriority for a nil ordering
func (p *PriorityOrdering) PolicyOf() ResolutionPolicy {
	if p == nil {
		return StrictPriority
	}
	return p.Policy
}

// MergeOrderings combines orderings that share a category, as produced when a
// topology is built once per region. Orderings of one category must agree on
// policy and on the relative rank of every solution they both list. The merged
// order keeps the order of each input; categories keep first-seen order.
func MergeOrderings(orderings []*PriorityOrdering) ([]*PriorityOrdering, error) {
	var categories []string
	merged := make(map[string]*PriorityOrdering, len(orderings))
	for _, o := range orderings {
		if o == nil {
			continue
		}
		prev, ok := merged[o.Category]
		if !ok {
			categories = append(categories, o.Category)
			merged[o.Category] = o
			continue
		}
		m, err := prev.merge(o)
		if err != nil {
			return nil, err
		}
		merged[o.Category] = m
	}

	out := make([]*PriorityOrdering, 0, len(categories))
	for _, c := range categories {
		out = append(out, merged[c])
	}
	return out, nil
}

func (p *PriorityOrdering) merge(o *PriorityOrdering) (*PriorityOrdering, error) {
	if p.Policy != o.Policy {
		return nil, fmt.Errorf("priority orderings for %s disagree on policy: %s and %s", p.Category, p.Policy, o.Policy)
	}

	last := -1
	var lastID SolutionID
	for _, id := range o.Order {
		if !p.Lists(id) {
			continue
		}
		r := p.Rank(id)
		if r < last {
			return nil, fmt.Errorf("priority orderings for %s rank %s and %s in opposite order", p.Category, lastID, id)
		}
		last, lastID = r, id
	}

	// solutions only o lists go just before the next solution both list
	order := make([]SolutionID, 0, len(p.Order)+len(o.Order))
	var pending []SolutionID
	next := 0
	for _, id := range o.Order {
		if !p.Lists(id) {
			pending = append(pending, id)
			continue
		}
		r := p.Rank(id)
		order = append(order, p.Order[next:r]...)
		order = append(order, pending...)
		pending = pending[:0]
		next = r
	}
	order = append(order, p.Order[next:]...)
	order = append(order, pending...)
	return NewPriorityOrdering(p.Category, order, p.Policy)
}
