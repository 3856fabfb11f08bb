package compare

import (
	"strconv"
	"strings"

	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/variant"
)

// PolyOptions configures the polyploid comparator DP (§4.7 "Polyploid DP").
type PolyOptions struct {
	Ploidy      int
	OnlySNVs    bool
	SwitchCost  float64
	FlipCost    float64 // not read by ComparePolyploid, which sets its own flip costs for both runs
}

// PolyBlockStats is one joint block's polyploid comparison output.
// PureSwitches is the switch-error count computed with flip cost
// prohibitively high (every disagreement must resolve as a relabelling);
// Switches/Flips is the run decomposition computed with both costs equal.
type PolyBlockStats struct {
	PureSwitches  int
	Switches      int
	Flips         int
	DiffGenotypes int
	NumVariants   int
}

func (b PolyBlockStats) add(o PolyBlockStats) PolyBlockStats {
	return PolyBlockStats{
		PureSwitches:  b.PureSwitches + o.PureSwitches,
		Switches:      b.Switches + o.Switches,
		Flips:         b.Flips + o.Flips,
		DiffGenotypes: b.DiffGenotypes + o.DiffGenotypes,
		NumVariants:   b.NumVariants + o.NumVariants,
	}
}

// PolyResult is the polyploid comparator's full output.
type PolyResult struct {
	PerBlock  []PolyBlockStats
	Aggregate PolyBlockStats
}

// permutations returns every permutation of {0,...,p-1}, for aligning one
// phasing's haplotype labels onto another's.
func permutations(p int) [][]int {
	base := make([]int, p)
	for i := range base {
		base[i] = i
	}
	var out [][]int
	var rec func(k int)
	rec = func(k int) {
		if k == p {
			out = append(out, append([]int(nil), base...))
			return
		}
		for i := k; i < p; i++ {
			base[k], base[i] = base[i], base[k]
			rec(k + 1)
			base[k], base[i] = base[i], base[k]
		}
	}
	rec(0)
	return out
}

func permKey(p []int) string {
	var sb strings.Builder
	for _, v := range p {
		sb.WriteString(strconv.Itoa(v))
		sb.WriteByte(',')
	}
	return sb.String()
}

// permDistance is the number of haplotype slots that map differently
// between two permutations (§4.7 "number_of_positions_where_permutation_
// changed").
func permDistance(a, b []int) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

func mismatchCount(a, b []uint8, perm []int) int {
	d := 0
	for i := range a {
		if a[i] != b[perm[i]] {
			d++
		}
	}
	return d
}

type polyCompareEntry struct {
	perm []int
	cost float64
	back *polyCompareEntry
}

// runPermutationDP is §4.7's polyploid alignment DP: at each joint-block
// column, choose a permutation of B's haplotype labels onto A's; paying
// switchCost per slot whose mapping changed since the previous column, and
// flipCost per haplotype slot that still disagrees under the chosen
// permutation. Pruning mirrors §4.5's rule exactly, with permutation
// distance standing in for bipartition Hamming distance.
func runPermutationDP(colsA, colsB [][]uint8, perms [][]int, switchCost, flipCost float64) []*polyCompareEntry {
	n := len(colsA)
	if n == 0 {
		return nil
	}
	table := make([]map[string]*polyCompareEntry, n)
	for i := 0; i < n; i++ {
		entries := make(map[string]*polyCompareEntry)
		if i == 0 {
			for _, perm := range perms {
				cost := flipCost * float64(mismatchCount(colsA[0], colsB[0], perm))
				entries[permKey(perm)] = &polyCompareEntry{perm: perm, cost: cost}
			}
		} else {
			for _, prev := range table[i-1] {
				for _, perm := range perms {
					edge := switchCost * float64(permDistance(prev.perm, perm))
					col := flipCost * float64(mismatchCount(colsA[i], colsB[i], perm))
					cost := prev.cost + edge + col
					key := permKey(perm)
					if existing, ok := entries[key]; ok && existing.cost <= cost {
						continue
					}
					entries[key] = &polyCompareEntry{perm: perm, cost: cost, back: prev}
				}
			}
		}
		table[i] = pruneEntries(entries, switchCost)
	}
	last := table[n-1]
	var best *polyCompareEntry
	for _, e := range last {
		if best == nil || e.cost < best.cost {
			best = e
		}
	}
	path := make([]*polyCompareEntry, n)
	cur := best
	for i := n - 1; i >= 0; i-- {
		path[i] = cur
		cur = cur.back
	}
	return path
}

func pruneEntries(entries map[string]*polyCompareEntry, switchCost float64) map[string]*polyCompareEntry {
	if len(entries) == 0 || switchCost <= 0 {
		return entries
	}
	var best *polyCompareEntry
	for _, e := range entries {
		if best == nil || e.cost < best.cost {
			best = e
		}
	}
	kept := make(map[string]*polyCompareEntry, len(entries))
	for k, e := range entries {
		if e.cost <= best.cost+switchCost*float64(permDistance(e.perm, best.perm)) {
			kept[k] = e
		}
	}
	return kept
}

// ComparePolyploid runs the polyploid comparator over sample, present in
// both a and b at the declared ploidy. Switches and flips are computed by
// running the DP twice: once with a prohibitively high flip cost to force
// every disagreement to resolve as a relabelling (the pure switch-error
// count), and once with equal switch/flip costs to decompose the remainder
// into the two error classes (§4.7).
func ComparePolyploid(a, b *variant.VariantTable, sample string, opts PolyOptions) (*PolyResult, error) {
	if opts.Ploidy < 2 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "compare: polyploid comparison requires ploidy >= 2")
	}
	ai, bi, err := commonSample(a, b, sample)
	if err != nil {
		return nil, err
	}
	blocks := jointBlocks(a.Phases[ai], b.Phases[bi], a.Variants, opts.OnlySNVs)
	perms := permutations(opts.Ploidy)
	switchCost := opts.SwitchCost
	if switchCost <= 0 {
		switchCost = 1
	}
	pureFlipCost := float64(2*len(a.Variants)*opts.Ploidy + 1)

	per := make([]PolyBlockStats, len(blocks))
	for bIdx, block := range blocks {
		colsA := make([][]uint8, len(block))
		colsB := make([][]uint8, len(block))
		diffGeno := 0
		for k, idx := range block {
			colsA[k] = a.Phases[ai][idx].HaplotypeTuple
			colsB[k] = b.Phases[bi][idx].HaplotypeTuple
			if !a.Phases[ai][idx].Genotype().Equal(b.Phases[bi][idx].Genotype()) {
				diffGeno++
			}
		}
		pureSwitches := countTransitionSwitches(runPermutationDP(colsA, colsB, perms, switchCost, pureFlipCost))
		decomposed := runPermutationDP(colsA, colsB, perms, switchCost, 1)
		decomposedSwitches := countTransitionSwitches(decomposed)
		flips := 0
		for i, e := range decomposed {
			flips += mismatchCount(colsA[i], colsB[i], e.perm)
		}
		per[bIdx] = PolyBlockStats{PureSwitches: pureSwitches, Switches: decomposedSwitches, Flips: flips, DiffGenotypes: diffGeno, NumVariants: len(block)}
	}
	var agg PolyBlockStats
	for _, b := range per {
		agg = agg.add(b)
	}
	return &PolyResult{PerBlock: per, Aggregate: agg}, nil
}

// countTransitionSwitches counts columns (after the first) whose chosen
// permutation differs at all from the previous column's — one switch event
// per such transition, regardless of how many haplotype slots moved.
func countTransitionSwitches(path []*polyCompareEntry) int {
	count := 0
	for i := 1; i < len(path); i++ {
		if permKey(path[i].perm) != permKey(path[i-1].perm) {
			count++
		}
	}
	return count
}
