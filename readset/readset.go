// Package readset defines Read and ReadSet, the typed containers that carry
// per-read allele calls from allele detection through to the phasing DP, and
// PositionIndex, the bijection between variant positions and the small
// dense integer indices used as DP columns.
package readset

import (
	"sort"

	"github.com/wckdouglas/whatshap/phaseerr"
)

// Allele is one (position, allele, quality) observation within a Read.
type Allele struct {
	Position   int64
	AlleleIdx  uint8
	BaseQual   uint8
}

// Read is a single sequencing read (or, after paired-end merging, a single
// fragment), reduced to its sparse list of variant-position observations.
// Positions within a read must be strictly increasing.
type Read struct {
	Name        string
	MappingQual uint8
	SampleID    int
	SourceID    int
	Alleles     []Allele
}

// NewRead validates and constructs a Read from an already-sorted allele list.
func NewRead(name string, mappingQual uint8, sampleID, sourceID int, alleles []Allele) (*Read, error) {
	for i := 1; i < len(alleles); i++ {
		if alleles[i].Position <= alleles[i-1].Position {
			return nil, phaseerr.E(phaseerr.InvalidInput, "read alleles out of order for read "+name)
		}
	}
	return &Read{Name: name, MappingQual: mappingQual, SampleID: sampleID, SourceID: sourceID, Alleles: alleles}, nil
}

// Len returns the number of positions this read has an allele call for.
func (r *Read) Len() int { return len(r.Alleles) }

// IsInformative reports whether the read lists at least two positions; the
// caller is responsible for having already restricted the read's alleles
// to heterozygous positions when that's the informativeness
// criterion in play (§3: "at least two heterozygous positions").
func (r *Read) IsInformative() bool { return len(r.Alleles) >= 2 }

// FirstPosition and LastPosition return the read's covered span, in variant
// coordinates. Both are defined only when Len() > 0.
func (r *Read) FirstPosition() int64 { return r.Alleles[0].Position }
func (r *Read) LastPosition() int64  { return r.Alleles[len(r.Alleles)-1].Position }

// ReadSet is an ordered, owning collection of Reads. Index-based subset
// selection (§3 "selection operations yield subsets identified by index")
// is supported via Subset rather than copying Read values.
type ReadSet struct {
	reads []*Read
}

// NewReadSet constructs an empty ReadSet.
func NewReadSet() *ReadSet { return &ReadSet{} }

// Add appends a read to the set and returns its index.
func (rs *ReadSet) Add(r *Read) int {
	rs.reads = append(rs.reads, r)
	return len(rs.reads) - 1
}

// Len returns the number of reads in the set.
func (rs *ReadSet) Len() int { return len(rs.reads) }

// Get returns the read at index i.
func (rs *ReadSet) Get(i int) *Read { return rs.reads[i] }

// All returns the full backing slice. Callers must not mutate it.
func (rs *ReadSet) All() []*Read { return rs.reads }

// Subset returns a new ReadSet containing only the reads at the given
// indices, preserving order.
func (rs *ReadSet) Subset(indices []int) *ReadSet {
	out := &ReadSet{reads: make([]*Read, len(indices))}
	for i, idx := range indices {
		out.reads[i] = rs.reads[idx]
	}
	return out
}

// Positions returns the sorted set of distinct variant positions covered by
// any read in the set.
func (rs *ReadSet) Positions() []int64 {
	seen := make(map[int64]bool)
	var out []int64
	for _, r := range rs.reads {
		for _, a := range r.Alleles {
			if !seen[a.Position] {
				seen[a.Position] = true
				out = append(out, a.Position)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PositionIndex is a bijection between variant positions and the small dense
// integer indices ("columns") used throughout the DP. It is built once per
// chromosome from the VariantTable's variant list, which is already in
// strictly increasing position order, so the forward mapping is a sorted
// slice (binary-searchable) and the reverse mapping is direct indexing.
type PositionIndex struct {
	positions []int64
}

// NewPositionIndex builds a PositionIndex over the given strictly increasing
// positions.
func NewPositionIndex(positions []int64) *PositionIndex {
	return &PositionIndex{positions: positions}
}

// Len returns the number of positions (i.e. the number of DP columns).
func (p *PositionIndex) Len() int { return len(p.positions) }

// IndexOf returns the column index for pos, or -1 if pos is not present.
func (p *PositionIndex) IndexOf(pos int64) int {
	i := sort.Search(len(p.positions), func(i int) bool { return p.positions[i] >= pos })
	if i < len(p.positions) && p.positions[i] == pos {
		return i
	}
	return -1
}

// PositionAt returns the position at column index i.
func (p *PositionIndex) PositionAt(i int) int64 { return p.positions[i] }

// All returns every position in column order. Callers must not mutate it.
func (p *PositionIndex) All() []int64 { return p.positions }
