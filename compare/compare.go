// Package compare implements PhasingComparator (§4.7): given two
// VariantTables phased over the same variant set for one sample, it reports
// per-joint-block hamming/switch/switch-flip/diff-genotype statistics,
// aggregated and for the single longest joint block, and supports a
// set-partition DP decomposition for polyploid phasings. Grounded directly
// on original_source/whatshap/cli/compare.py for the diploid run-length
// switch/flip decomposition and the --only-snvs / longest-block / multiway
// extensions (§12 items 2-3).
package compare

import (
	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/variant"
)

// Options configures a comparison run.
type Options struct {
	OnlySNVs bool
}

// BlockStats is one joint block's comparison output (§4.7 "Outputs").
type BlockStats struct {
	Hamming       int
	Switches      int    // hamming distance between the two switch encodings
	SwitchFlips   [2]int // [switches, flips] run-length decomposition
	DiffGenotypes int
	NumVariants   int
}

func (b BlockStats) add(o BlockStats) BlockStats {
	return BlockStats{
		Hamming:       b.Hamming + o.Hamming,
		Switches:      b.Switches + o.Switches,
		SwitchFlips:   [2]int{b.SwitchFlips[0] + o.SwitchFlips[0], b.SwitchFlips[1] + o.SwitchFlips[1]},
		DiffGenotypes: b.DiffGenotypes + o.DiffGenotypes,
		NumVariants:   b.NumVariants + o.NumVariants,
	}
}

// Result is PhasingComparator's full output for one pair of inputs.
type Result struct {
	PerBlock  []BlockStats
	Aggregate BlockStats
	Longest   BlockStats
}

// Compare runs the diploid comparison algorithm (§4.7) for sample, present
// in both a and b.
func Compare(a, b *variant.VariantTable, sample string, opts Options) (*Result, error) {
	ai, bi, err := commonSample(a, b, sample)
	if err != nil {
		return nil, err
	}
	blocks := jointBlocks(a.Phases[ai], b.Phases[bi], a.Variants, opts.OnlySNVs)
	per := make([]BlockStats, len(blocks))
	for i, idx := range blocks {
		per[i] = diploidBlockStats(a.Phases[ai], b.Phases[bi], idx)
	}
	return &Result{PerBlock: per, Aggregate: aggregate(per), Longest: longest(per)}, nil
}

func commonSample(a, b *variant.VariantTable, sample string) (ai, bi int, err error) {
	ai = a.SampleIndex(sample)
	bi = b.SampleIndex(sample)
	if ai < 0 || bi < 0 {
		return 0, 0, phaseerr.E(phaseerr.NoCommonSample, "compare: sample "+sample+" not present in both inputs")
	}
	if a.Chromosome != b.Chromosome {
		return 0, 0, phaseerr.E(phaseerr.ChromosomeMismatch, "compare: "+a.Chromosome+" vs "+b.Chromosome)
	}
	if len(a.Variants) != len(b.Variants) {
		return 0, 0, phaseerr.E(phaseerr.InvalidInput, "compare: variant tables cover different variant sets")
	}
	return ai, bi, nil
}

func aggregate(per []BlockStats) BlockStats {
	var agg BlockStats
	for _, b := range per {
		agg = agg.add(b)
	}
	return agg
}

func longest(per []BlockStats) BlockStats {
	var best BlockStats
	for _, b := range per {
		if b.NumVariants > best.NumVariants {
			best = b
		}
	}
	return best
}

// jointBlocks segments variant indices into maximal runs where both a and b
// carry a non-null phase in the same phase-set (block id) on both sides,
// i.e. the intersection of the two inputs' own block boundaries. Runs
// shorter than 2 variants carry no relative-phase information and are
// dropped, matching §4.7 "Per joint block of size >= 2".
func jointBlocks(a, b []*variant.Phase, variants []variant.Variant, onlySNVs bool) [][]int {
	var blocks [][]int
	var cur []int
	flush := func() {
		if len(cur) >= 2 {
			blocks = append(blocks, cur)
		}
		cur = nil
	}
	for i := range variants {
		if onlySNVs && !variants[i].IsSNV() {
			flush()
			continue
		}
		if a[i] == nil || b[i] == nil {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			if a[i].BlockID != a[prev].BlockID || b[i].BlockID != b[prev].BlockID {
				flush()
			}
		}
		cur = append(cur, i)
	}
	flush()
	return blocks
}

func diploidBlockStats(a, b []*variant.Phase, indices []int) BlockStats {
	n := len(indices)
	av := make([]uint8, n)
	bv := make([]uint8, n)
	diffGeno := 0
	for k, idx := range indices {
		av[k] = a[idx].HaplotypeTuple[0]
		bv[k] = b[idx].HaplotypeTuple[0]
		if !a[idx].Genotype().Equal(b[idx].Genotype()) {
			diffGeno++
		}
	}
	seA := switchEncoding(av)
	seB := switchEncoding(bv)
	switches, flips := switchFlipsRuns(seA, seB)
	return BlockStats{
		Hamming:       hammingMinComplement(av, bv),
		Switches:      boolHamming(seA, seB),
		SwitchFlips:   [2]int{switches, flips},
		DiffGenotypes: diffGeno,
		NumVariants:   n,
	}
}

func hamming(a, b []uint8) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// complement flips the two haplotype labels of a binary (biallelic) vector;
// diploid switch-error comparison must minimise over this global relabelling
// since haplotype 0 vs 1 is an arbitrary naming choice (§4.7 "minimum over
// complementing b").
func complement(a []uint8) []uint8 {
	c := make([]uint8, len(a))
	for i, v := range a {
		switch v {
		case 0:
			c[i] = 1
		case 1:
			c[i] = 0
		default:
			c[i] = v
		}
	}
	return c
}

func hammingMinComplement(a, b []uint8) int {
	direct := hamming(a, b)
	flipped := hamming(complement(a), b)
	if flipped < direct {
		return flipped
	}
	return direct
}

func switchEncoding(p []uint8) []bool {
	if len(p) == 0 {
		return nil
	}
	out := make([]bool, len(p)-1)
	for i := 1; i < len(p); i++ {
		out[i-1] = p[i] != p[i-1]
	}
	return out
}

func boolHamming(a, b []bool) int {
	c := 0
	for i := range a {
		if a[i] != b[i] {
			c++
		}
	}
	return c
}

// switchFlipsRuns implements §4.7's run-length decomposition: group
// consecutive positions where the two switch encodings disagree; each run
// of length k contributes k/2 flips and k%2 switches.
func switchFlipsRuns(a, b []bool) (switches, flips int) {
	n := len(a)
	i := 0
	for i < n {
		if a[i] == b[i] {
			i++
			continue
		}
		j := i
		for j < n && a[j] != b[j] {
			j++
		}
		k := j - i
		flips += k / 2
		switches += k % 2
		i = j
	}
	return switches, flips
}

// MultiwayResult is the supplemented N-way extension (§12 item 3): how many
// joint blocks (phased in every input) have every input in full pairwise
// agreement, against the total joint-block count.
type MultiwayResult struct {
	TotalBlocks    int
	AgreeingBlocks int
}

// CompareMultiway reports, across more than two phasings of the same
// sample, how many jointly-phased blocks have every input agree once each
// is canonicalised against the first input's haplotype-label convention.
func CompareMultiway(tables []*variant.VariantTable, sample string, opts Options) (*MultiwayResult, error) {
	if len(tables) < 2 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "compare: multiway comparison requires at least two inputs")
	}
	indices := make([]int, len(tables))
	for i, t := range tables {
		idx := t.SampleIndex(sample)
		if idx < 0 {
			return nil, phaseerr.E(phaseerr.NoCommonSample, "compare: sample "+sample+" not present in all inputs")
		}
		indices[i] = idx
	}
	ref := tables[0]
	for _, t := range tables[1:] {
		if t.Chromosome != ref.Chromosome {
			return nil, phaseerr.E(phaseerr.ChromosomeMismatch, "compare: "+ref.Chromosome+" vs "+t.Chromosome)
		}
		if len(t.Variants) != len(ref.Variants) {
			return nil, phaseerr.E(phaseerr.InvalidInput, "compare: variant tables cover different variant sets")
		}
	}

	phasesOf := func(tableIdx int) []*variant.Phase { return tables[tableIdx].Phases[indices[tableIdx]] }
	var cur []int
	var blocks [][]int
	flush := func() {
		if len(cur) >= 2 {
			blocks = append(blocks, cur)
		}
		cur = nil
	}
	for i := range ref.Variants {
		if opts.OnlySNVs && !ref.Variants[i].IsSNV() {
			flush()
			continue
		}
		allPhased := true
		for t := range tables {
			if phasesOf(t)[i] == nil {
				allPhased = false
				break
			}
		}
		if !allPhased {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			sameBlock := true
			for t := range tables {
				if phasesOf(t)[i].BlockID != phasesOf(t)[prev].BlockID {
					sameBlock = false
					break
				}
			}
			if !sameBlock {
				flush()
			}
		}
		cur = append(cur, i)
	}
	flush()

	result := &MultiwayResult{TotalBlocks: len(blocks)}
	for _, block := range blocks {
		refVec := make([]uint8, len(block))
		for k, idx := range block {
			refVec[k] = phasesOf(0)[idx].HaplotypeTuple[0]
		}
		agree := true
		for t := 1; t < len(tables); t++ {
			vec := make([]uint8, len(block))
			for k, idx := range block {
				vec[k] = phasesOf(t)[idx].HaplotypeTuple[0]
			}
			if hammingMinComplement(refVec, vec) != 0 {
				agree = false
				break
			}
		}
		if agree {
			result.AgreeingBlocks++
		}
	}
	return result, nil
}
