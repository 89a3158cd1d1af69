// Package selector picks the items a recipient answers in one round.
//
// Selection is driver-balanced: every requested slot is first tagged with a
// driver, then resolved against two memories. The recipient memory spans
// rounds and holds what the recipient has already been asked. The round
// memory spans one processing pass and holds what any recipient of the
// round has been given so far. Both are mutated in place.
package selector

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/unclebandit/pulse-scheduler/internal/model"
)

// DefaultMaxRetries bounds the random draws spent on one sequence slot before
// falling back to round-robin.
const DefaultMaxRetries = 64

type Selector struct {
	mu         sync.Mutex
	rng        *rand.Rand
	MaxRetries int
}

func New(rng *rand.Rand) *Selector {
	return &Selector{rng: rng, MaxRetries: DefaultMaxRetries}
}

// NewSeeded returns a selector whose PRNG is seeded from crypto/rand.
func NewSeeded() *Selector {
	var b [8]byte
	seed := int64(0)
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return New(rand.New(rand.NewSource(seed)))
}

// Select returns up to count distinct item ids from items. The result is
// shorter than count only when the catalog has fewer items. seen and round
// are updated with every returned item.
func (s *Selector) Select(drivers []model.Driver, items []model.Item, seen, round model.ItemSet, count int) []string {
	if count <= 0 || len(items) == 0 {
		return []string{}
	}
	drivers = driversWithItems(drivers, items)
	if len(drivers) == 0 {
		return []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sequence := s.driverSequence(drivers, count)
	chosen := make(model.ItemSet, count)
	out := make([]string, 0, count)

	for _, driverID := range sequence {
		if len(out) == len(items) {
			break
		}
		if seen.Covers(items) {
			reset(seen, chosen)
		}
		if round.Covers(items) {
			reset(round, chosen)
		}

		pool := resolvePool(driverID, items, seen, round, chosen)
		picked := pool[s.rng.Intn(len(pool))]

		chosen.Add(picked)
		seen.Add(picked)
		round.Add(picked)
		out = append(out, picked)
	}
	return out
}

// DriverSequence returns count driver ids sampled by weight, where a driver
// may repeat only once every other driver has been used as often.
func (s *Selector) DriverSequence(drivers []model.Driver, count int) []string {
	if count <= 0 || len(drivers) == 0 {
		return []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driverSequence(drivers, count)
}

func (s *Selector) driverSequence(drivers []model.Driver, count int) []string {
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	total := 0.0
	for _, d := range drivers {
		total += weightOf(d)
	}

	used := make([]int, len(drivers))
	seq := make([]string, 0, count)
	for len(seq) < count {
		least := minCount(used)
		idx := -1
		for attempt := 0; attempt < maxRetries; attempt++ {
			candidate := s.weightedIndex(drivers, total)
			if used[candidate] == least {
				idx = candidate
				break
			}
		}
		if idx < 0 {
			idx = firstWithCount(used, least)
		}
		used[idx]++
		seq = append(seq, drivers[idx].ID)
	}
	return seq
}

func (s *Selector) weightedIndex(drivers []model.Driver, total float64) int {
	r := s.rng.Float64() * total
	for i, d := range drivers {
		r -= weightOf(d)
		if r < 0 {
			return i
		}
	}
	return len(drivers) - 1
}

// resolvePool returns the first non-empty candidate pool, in order:
// the slot's driver avoiding both memories, any driver avoiding both,
// avoiding only the recipient memory, avoiding only the round memory,
// then anything not yet chosen.
func resolvePool(driverID string, items []model.Item, seen, round, chosen model.ItemSet) []string {
	filters := []func(model.Item) bool{
		func(it model.Item) bool { return it.DriverID == driverID && !seen.Has(it.ID) && !round.Has(it.ID) },
		func(it model.Item) bool { return !seen.Has(it.ID) && !round.Has(it.ID) },
		func(it model.Item) bool { return !seen.Has(it.ID) },
		func(it model.Item) bool { return !round.Has(it.ID) },
		func(model.Item) bool { return true },
	}
	for _, keep := range filters {
		var pool []string
		for _, it := range items {
			if !chosen.Has(it.ID) && keep(it) {
				pool = append(pool, it.ID)
			}
		}
		if len(pool) > 0 {
			return pool
		}
	}
	return nil
}

// reset starts a new rotation for mem, keeping what this call already chose.
func reset(mem, chosen model.ItemSet) {
	mem.Clear()
	for id := range chosen {
		mem.Add(id)
	}
}

func driversWithItems(drivers []model.Driver, items []model.Item) []model.Driver {
	owned := make(map[string]bool, len(drivers))
	for _, it := range items {
		owned[it.DriverID] = true
	}
	out := make([]model.Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.Active && owned[d.ID] {
			out = append(out, d)
		}
	}
	return out
}

func weightOf(d model.Driver) float64 {
	if d.Weight <= 0 {
		return 1
	}
	return d.Weight
}

func minCount(used []int) int {
	m := used[0]
	for _, u := range used[1:] {
		if u < m {
			m = u
		}
	}
	return m
}

func firstWithCount(used []int, n int) int {
	for i, u := range used {
		if u == n {
			return i
		}
	}
	return 0
}
