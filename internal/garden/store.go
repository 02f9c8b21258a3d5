package garden

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store holds garden records behind one lock held for every composite
// operation. Callers only ever see copies.
type Store struct {
	mu      sync.Mutex
	records map[Identity]*Record
	dirty   bool
}

func NewStore() *Store {
	return &Store{records: make(map[Identity]*Record)}
}

// Sow replaces any record for id with a fresh planting.
func (s *Store) Sow(id Identity, soil, seed uint32, t uint64) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &Record{
		Identity:       id,
		Soil:           soil,
		Seed:           seed,
		SowTime:        t,
		LastCare:       t,
		Fertilizations: []Fertilization{},
	}
	s.records[id] = rec
	s.dirty = true
	return rec.clone()
}

// Care records a care action. Unknown plots get a placeholder first, and an
// unknown seed is filled from guessSeed when it is non-zero.
func (s *Store) Care(id Identity, t uint64, guessSeed uint32) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.ensureLocked(id, guessSeed)
	rec.LastCare = t
	s.dirty = true
	return rec.clone()
}

// Fertilize appends a fertilizer application with the same placeholder and
// seed-guess rules as Care.
func (s *Store) Fertilize(id Identity, fertilizer uint32, t uint64, guessSeed uint32) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.ensureLocked(id, guessSeed)
	rec.Fertilizations = append(rec.Fertilizations, Fertilization{Fertilizer: fertilizer, Time: t})
	s.dirty = true
	return rec.clone()
}

func (s *Store) ensureLocked(id Identity, guessSeed uint32) *Record {
	rec, ok := s.records[id]
	if !ok {
		rec = &Record{Identity: id, Fertilizations: []Fertilization{}}
		s.records[id] = rec
		log.Debug().Msgf("garden.Store placeholder id=%s", id)
	}
	if rec.Seed == 0 && guessSeed != 0 {
		rec.Seed = guessSeed
	}
	return rec
}

// Remove drops the record; harvesting or disposing an unknown plot is a no-op.
func (s *Store) Remove(id Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	s.dirty = true
	return true
}

func (s *Store) Get(id Identity) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// List returns copies sorted by identity key.
func (s *Store) List() []Record {
	s.mu.Lock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.clone())
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Key() < out[j].Identity.Key() })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Durations supplies per-seed grow and wilt durations in seconds.
type Durations interface {
	GrowSeconds(seedID uint32) uint64
	WiltSeconds(seedID uint32) uint64
}

// Estimate projects maturity and wilt for id. Repeated calls without new
// events return identical results.
func (s *Store) Estimate(id Identity, d Durations) (Estimate, bool) {
	rec, ok := s.Get(id)
	if !ok {
		return Estimate{}, false
	}
	return estimate(rec, d), true
}

// Estimates projects every record, sorted like List.
func (s *Store) Estimates(d Durations) []Estimate {
	recs := s.List()
	out := make([]Estimate, 0, len(recs))
	for _, rec := range recs {
		out = append(out, estimate(rec, d))
	}
	return out
}

func estimate(rec Record, d Durations) Estimate {
	return Estimate{
		Record:   rec,
		Maturity: MaturityTime(rec, d.GrowSeconds(rec.Seed)),
		Wilt:     WiltTime(rec, d.WiltSeconds(rec.Seed)),
	}
}
