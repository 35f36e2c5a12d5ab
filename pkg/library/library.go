// Package library provides the immutable in-memory spectral library searched by
// the identification pipeline.
package library

import (
	"fmt"
	"sort"

	"github.com/ChrisMcGann/DIAKey/pkg/core"
	"github.com/ChrisMcGann/DIAKey/pkg/filter"
)

// Key identifies a library entry.
type Key struct {
	PrecursorMZ float64
	Peptide     string
}

func (k Key) less(o Key) bool {
	if k.PrecursorMZ != o.PrecursorMZ {
		return k.PrecursorMZ < o.PrecursorMZ
	}
	return k.Peptide < o.Peptide
}

// Entry is one reference spectrum. Index is its position in key order.
type Entry struct {
	Key
	Index       int
	Charge      int
	Identifier  string
	ProteinName string
	Peaks       []core.Peak // top-N by intensity, sorted by m/z
	Decoy       bool
}

// Library is a read-only collection of entries sorted by key. It is safe
// for concurrent use once built.
type Library struct {
	entries []Entry
}

// Builder accumulates spectra into a Library. Adding a spectrum with a key
// that is already present replaces the earlier one.
type Builder struct {
	filter  filter.Config
	entries map[Key]Entry
}

// NewBuilder creates a Builder applying cfg to every added spectrum. A nil
// cfg keeps the DefaultTopN most intense peaks.
func NewBuilder(cfg *filter.Config) *Builder {
	f := filter.Config{TopN: filter.DefaultTopN}
	if cfg != nil {
		f = *cfg
	}
	return &Builder{
		filter:  f,
		entries: make(map[Key]Entry),
	}
}

// Add filters and validates spec and stages it for the library. spec is
// modified in place by the peak filter.
func (b *Builder) Add(spec *core.Spectrum) error {
	b.filter.Apply(spec)
	if err := spec.Validate(); err != nil {
		return err
	}

	key := Key{PrecursorMZ: spec.PrecursorMZ, Peptide: spec.Peptide}
	peaks := make([]core.Peak, len(spec.Peaks))
	copy(peaks, spec.Peaks)
	b.entries[key] = Entry{
		Key:         key,
		Charge:      spec.Charge,
		Identifier:  spec.Identifier,
		ProteinName: spec.ProteinName,
		Peaks:       peaks,
		Decoy:       spec.IsDecoy(),
	}
	return nil
}

// Len returns the number of distinct keys staged so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Build sorts the staged entries by key and assigns their indices.
func (b *Builder) Build() *Library {
	entries := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.less(entries[j].Key)
	})
	for i := range entries {
		entries[i].Index = i
	}
	return &Library{entries: entries}
}

// New builds a library from spectra, failing on the first invalid one.
func New(spectra []*core.Spectrum, cfg *filter.Config) (*Library, error) {
	b := NewBuilder(cfg)
	for _, spec := range spectra {
		if err := b.Add(spec); err != nil {
			return nil, fmt.Errorf("invalid library spectrum %s: %w", spec.Name(), err)
		}
	}
	return b.Build(), nil
}

// Len returns the number of entries.
func (l *Library) Len() int {
	return len(l.entries)
}

// Entry returns the entry with the given index. The returned entry must not
// be modified.
func (l *Library) Entry(i int) *Entry {
	return &l.entries[i]
}

// Range returns the half-open index range [start, end) of entries whose
// precursor m/z lies within [lo, hi].
func (l *Library) Range(lo, hi float64) (start, end int) {
	start = sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].PrecursorMZ >= lo
	})
	end = sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].PrecursorMZ > hi
	})
	if end < start {
		end = start
	}
	return start, end
}

// Summary describes the contents of a library.
type Summary struct {
	Entries      int
	Decoys       int
	Peaks        int
	MinPrecursor float64
	MaxPrecursor float64
	Charges      map[int]int
}

// Summarize computes entry, decoy and precursor statistics.
func (l *Library) Summarize() Summary {
	s := Summary{Entries: len(l.entries), Charges: make(map[int]int)}
	for i, e := range l.entries {
		if e.Decoy {
			s.Decoys++
		}
		s.Peaks += len(e.Peaks)
		s.Charges[e.Charge]++
		if i == 0 {
			s.MinPrecursor = e.PrecursorMZ
		}
		s.MaxPrecursor = e.PrecursorMZ
	}
	return s
}
