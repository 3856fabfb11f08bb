// Package variant defines the core data model shared by every other package
// in this module: Variant, Genotype, Phase, VariantTable, and PhasedBlock.
// These types are immutable once constructed (the lifecycles section of the
// design notes), so the zero-value-friendly constructors below validate their
// inputs once and the rest of the engine trusts the invariants from then on.
package variant

import (
	"fmt"

	"github.com/wckdouglas/whatshap/phaseerr"
)

// Variant is a single candidate site on a chromosome. Position is 0-based.
// Alleles may be empty to represent an insertion (RefAllele empty) or
// deletion (AltAllele empty).
type Variant struct {
	Position   int64
	RefAllele  []byte
	AltAllele  []byte
}

// IsSNV reports whether the variant is a single-nucleotide variant: both
// alleles are exactly one base long.
func (v Variant) IsSNV() bool {
	return len(v.RefAllele) == 1 && len(v.AltAllele) == 1
}

// IsInsertion reports whether the variant's reference allele is empty.
func (v Variant) IsInsertion() bool { return len(v.RefAllele) == 0 }

// IsDeletion reports whether the variant's alternative allele is empty.
func (v Variant) IsDeletion() bool { return len(v.AltAllele) == 0 }

// Genotype is a multiset of allele indices of size Ploidy. Two genotypes are
// equal iff they are equal as multisets, regardless of entry order.
type Genotype struct {
	alleles []uint8
}

// NewGenotype constructs a Genotype from allele indices, canonicalising the
// internal representation (sorted) so that Equal is a simple slice compare.
func NewGenotype(alleles ...uint8) Genotype {
	sorted := append([]uint8(nil), alleles...)
	insertionSort(sorted)
	return Genotype{alleles: sorted}
}

// insertionSort sorts small slices (ploidy is rarely above a handful) without
// pulling in sort.Slice's interface overhead in the DP's hot path.
func insertionSort(a []uint8) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}

// Ploidy returns the number of allele entries in the genotype.
func (g Genotype) Ploidy() int { return len(g.alleles) }

// Alleles returns the sorted allele multiset as a slice. Callers must not
// mutate the result.
func (g Genotype) Alleles() []uint8 { return g.alleles }

// IsHomozygous reports whether every entry in the genotype is identical.
func (g Genotype) IsHomozygous() bool {
	if len(g.alleles) == 0 {
		return true
	}
	first := g.alleles[0]
	for _, a := range g.alleles[1:] {
		if a != first {
			return false
		}
	}
	return true
}

// IsHeterozygous is the negation of IsHomozygous.
func (g Genotype) IsHeterozygous() bool { return !g.IsHomozygous() }

// Equal reports multiset equality between two genotypes.
func (g Genotype) Equal(other Genotype) bool {
	if len(g.alleles) != len(other.alleles) {
		return false
	}
	for i, a := range g.alleles {
		if a != other.alleles[i] {
			return false
		}
	}
	return true
}

func (g Genotype) String() string {
	return fmt.Sprintf("%v", g.alleles)
}

// FromHaplotypeTuple builds the Genotype implied by a haplotype tuple,
// i.e. the multiset of its entries. This is used to check the invariant
// multiset(phase.HaplotypeTuple) == genotype(v).
func FromHaplotypeTuple(tuple []uint8) Genotype {
	return NewGenotype(tuple...)
}

// Phase assigns each haplotype of a sample a specific allele at one variant.
// BlockID identifies the phase set this phase belongs to; by convention
// (§4.6) it equals the position of the leftmost variant in the block.
type Phase struct {
	BlockID        int64
	HaplotypeTuple []uint8
}

// Genotype returns the multiset implied by the phase's haplotype tuple.
func (p Phase) Genotype() Genotype { return FromHaplotypeTuple(p.HaplotypeTuple) }

// Validate checks the invariant multiset(HaplotypeTuple) == genotype.
func (p Phase) Validate(genotype Genotype) error {
	if !p.Genotype().Equal(genotype) {
		return phaseerr.Invalidf("phase at block %d: haplotype tuple %v is not a permutation of genotype %v", p.BlockID, p.HaplotypeTuple, genotype)
	}
	return nil
}

// VariantTable holds one chromosome's candidate variants together with, per
// sample, the genotype and (optional) phase aligned to each variant.
// VariantTable is constructed once per chromosome and is immutable for the
// duration of a phasing run.
type VariantTable struct {
	Chromosome string
	Variants   []Variant

	// SampleNames preserves insertion order; sample data below is indexed by
	// position in this slice.
	SampleNames []string
	Genotypes   [][]Genotype       // Genotypes[sample][variantIdx]
	Phases      [][]*Phase         // Phases[sample][variantIdx], nil if unphased
}

// NewVariantTable validates and constructs a VariantTable. Positions must be
// strictly increasing, and every per-sample genotype/phase slice must have
// exactly one entry per variant.
func NewVariantTable(chromosome string, variants []Variant, sampleNames []string, genotypes [][]Genotype, phases [][]*Phase) (*VariantTable, error) {
	for i := 1; i < len(variants); i++ {
		if variants[i].Position <= variants[i-1].Position {
			return nil, phaseerr.E(phaseerr.InvalidInput, fmt.Sprintf("variant positions not strictly increasing at index %d (chromosome %s)", i, chromosome))
		}
	}
	if len(genotypes) != len(sampleNames) || len(phases) != len(sampleNames) {
		return nil, phaseerr.E(phaseerr.InvalidInput, "per-sample genotype/phase slice count does not match sample count")
	}
	for s, name := range sampleNames {
		if len(genotypes[s]) != len(variants) {
			return nil, phaseerr.E(phaseerr.InvalidInput, fmt.Sprintf("sample %s: genotype slice length %d does not match variant count %d", name, len(genotypes[s]), len(variants)))
		}
		if len(phases[s]) != len(variants) {
			return nil, phaseerr.E(phaseerr.InvalidInput, fmt.Sprintf("sample %s: phase slice length %d does not match variant count %d", name, len(phases[s]), len(variants)))
		}
	}
	return &VariantTable{
		Chromosome:  chromosome,
		Variants:    variants,
		SampleNames: sampleNames,
		Genotypes:   genotypes,
		Phases:      phases,
	}, nil
}

// SampleIndex returns the index of a sample name, or -1 if absent.
func (t *VariantTable) SampleIndex(name string) int {
	for i, n := range t.SampleNames {
		if n == name {
			return i
		}
	}
	return -1
}

// HeterozygousIndices returns the indices (into t.Variants) of variants that
// are heterozygous for the given sample.
func (t *VariantTable) HeterozygousIndices(sample int) []int {
	var out []int
	for i, g := range t.Genotypes[sample] {
		if g.IsHeterozygous() {
			out = append(out, i)
		}
	}
	return out
}

// PhasedBlock is a maximal set of variants whose relative phase is
// determined, produced by BlockAssembler and consumed by report writers
// (external to this module).
type PhasedBlock struct {
	Chromosome       string
	LeftmostVariant  Variant
	RightmostVariant Variant
	// Phases maps a variant index (into the owning VariantTable.Variants) to
	// the Phase assigned within this block.
	Phases map[int]Phase
}

// Span returns the genomic span of the block in base pairs.
func (b *PhasedBlock) Span() int64 {
	return b.RightmostVariant.Position - b.LeftmostVariant.Position
}

// SNVCount returns the number of single-nucleotide variants among the
// variants phased within this block (the keys of Phases).
func (b *PhasedBlock) SNVCount(table *VariantTable) int {
	count := 0
	for idx := range b.Phases {
		if table.Variants[idx].IsSNV() {
			count++
		}
	}
	return count
}

// HetCount returns the number of variants phased within this block.
func (b *PhasedBlock) HetCount() int { return len(b.Phases) }
