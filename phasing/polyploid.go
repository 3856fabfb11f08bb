package phasing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/readselect"
	"github.com/wckdouglas/whatshap/readset"
	"github.com/wckdouglas/whatshap/variant"
)

// PolyploidOptions configures PolyploidDP. Polyploid runs are restricted to
// a single sample with no pedigree — real multi-way pedigree transmission
// (which parental haplotype set contributed which subset of a child's P
// haplotypes) is a substantially different combinatorial problem that the
// corpus's source material never addresses, so PolyploidDP takes no
// pedigree model and the engine rejects any configured trio before running
// it (documented as an explicit scope decision in DESIGN.md).
type PolyploidOptions struct {
	Ploidy     int
	SwitchCost float64
}

// groupState assigns each active read to one of Ploidy haplotype groups.
type groupState map[int]int

func cloneGroup(g groupState) groupState {
	c := make(groupState, len(g))
	for k, v := range g {
		c[k] = v
	}
	return c
}

func purgeGroup(g groupState, drop []int) groupState {
	dropSet := make(map[int]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	c := make(groupState, len(g))
	for k, v := range g {
		if !dropSet[k] {
			c[k] = v
		}
	}
	return c
}

func transitionGroups(base groupState, enter []int, ploidy int) []groupState {
	if len(enter) == 0 {
		return []groupState{cloneGroup(base)}
	}
	var out []groupState
	cur := cloneGroup(base)
	var rec func(i int)
	rec = func(i int) {
		if i == len(enter) {
			out = append(out, cloneGroup(cur))
			return
		}
		for g := 0; g < ploidy; g++ {
			cur[enter[i]] = g
			rec(i + 1)
		}
		delete(cur, enter[i])
	}
	rec(0)
	return out
}

func groupKey(g groupState) string {
	keys := make([]int, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(strconv.Itoa(k))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(g[k]))
		sb.WriteByte(',')
	}
	return sb.String()
}

// distinctPermutations returns every distinct ordering of a (possibly
// repeated) allele multiset: the candidate haplotype tuples for one sample
// at one column.
func distinctPermutations(alleles []uint8) [][]uint8 {
	sorted := append([]uint8(nil), alleles...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	used := make([]bool, len(sorted))
	cur := make([]uint8, 0, len(sorted))
	var out [][]uint8
	var rec func()
	rec = func() {
		if len(cur) == len(sorted) {
			out = append(out, append([]uint8(nil), cur...))
			return
		}
		for i := range sorted {
			if used[i] {
				continue
			}
			if i > 0 && sorted[i] == sorted[i-1] && !used[i-1] {
				continue // skip duplicate branch at this recursion level
			}
			used[i] = true
			cur = append(cur, sorted[i])
			rec()
			cur = cur[:len(cur)-1]
			used[i] = false
		}
	}
	rec()
	return out
}

func tupleKey(t []uint8) string {
	var sb strings.Builder
	for _, v := range t {
		sb.WriteByte(byte('0' + v))
	}
	return sb.String()
}

func tupleDistance(a, b []uint8) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}

// polyStateEntry is PolyploidDP's table cell: a group assignment for active
// reads plus the sample's chosen haplotype tuple for this column.
type polyStateEntry struct {
	group groupState
	tuple []uint8
	cost  float64
	back  *polyStateEntry
}

// PolyploidDP is PhasingDP's set-partition variant (§4.5 "the polyploid
// variant uses the same scheme with set-partitions instead of
// bipartitions"): at each column every active read is assigned to one of P
// groups instead of a bit, and each sample's column-wise state is a
// haplotype tuple (a permutation of its fixed genotype) rather than a
// founder/child pair.
type PolyploidDP struct {
	stage   Stage
	rs      *readset.ReadSet
	posIdx  *readset.PositionIndex
	table2  *variant.VariantTable
	sample  string
	options PolyploidOptions

	plan  *columnPlan
	cols  []map[string]*polyStateEntry
}

// NewPolyploidDP constructs a set-partition DP for a single sample over a
// single chromosome's selected reads.
func NewPolyploidDP(rs *readset.ReadSet, posIdx *readset.PositionIndex, table *variant.VariantTable, sample string, selection *readselect.Result, options PolyploidOptions) (*PolyploidDP, error) {
	if options.Ploidy < 2 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "polyploid DP requires ploidy >= 2")
	}
	sampleIdx := table.SampleIndex(sample)
	if sampleIdx < 0 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "polyploid DP: sample "+sample+" not present in variant table")
	}
	spans := buildSpans(rs, posIdx, selection)
	return &PolyploidDP{
		rs:      rs,
		posIdx:  posIdx,
		table2:  table,
		sample:  sample,
		options: options,
		plan:    buildColumnPlan(posIdx.Len(), spans),
	}, nil
}

func (dp *PolyploidDP) genotypeAt(col int) variant.Genotype {
	sampleIdx := dp.table2.SampleIndex(dp.sample)
	return dp.table2.Genotypes[sampleIdx][col]
}

func (dp *PolyploidDP) columnCost(col int, group groupState, tuple []uint8) float64 {
	pos := dp.posIdx.PositionAt(col)
	var cost float64
	for readIdx, g := range group {
		entry, ok := alleleEntryAt(dp.rs.Get(readIdx), pos)
		if !ok {
			continue
		}
		if tuple[g] != entry.AlleleIdx {
			cost += float64(entry.BaseQual)
		}
	}
	return cost
}

func (dp *PolyploidDP) insert(entries map[string]*polyStateEntry, group groupState, tuple []uint8, cost float64, back *polyStateEntry) {
	key := groupKey(group) + "#" + tupleKey(tuple)
	if existing, ok := entries[key]; ok && existing.cost <= cost {
		return
	}
	entries[key] = &polyStateEntry{group: cloneGroup(group), tuple: tuple, cost: cost, back: back}
}

func (dp *PolyploidDP) prune(entries map[string]*polyStateEntry) map[string]*polyStateEntry {
	if len(entries) == 0 || dp.options.SwitchCost <= 0 {
		return entries
	}
	var best *polyStateEntry
	for _, e := range entries {
		if best == nil || e.cost < best.cost {
			best = e
		}
	}
	kept := make(map[string]*polyStateEntry, len(entries))
	for k, e := range entries {
		dist := tupleDistance(e.tuple, best.tuple)
		if e.cost <= best.cost+dp.options.SwitchCost*float64(dist) {
			kept[k] = e
		}
	}
	return kept
}

// Run mirrors DP.Run's lifecycle for the set-partition variant.
func (dp *PolyploidDP) Run(cancelled func() bool) (*PolyResult, error) {
	if dp.stage != Initialised {
		return nil, phaseerr.E(phaseerr.InvalidInput, "phasing.PolyploidDP.Run: called out of lifecycle order")
	}
	dp.stage = BuiltTables
	n := dp.posIdx.Len()
	dp.cols = make([]map[string]*polyStateEntry, n)
	for i := 0; i < n; i++ {
		if cancelled != nil && cancelled() {
			dp.cols = nil
			dp.stage = Initialised
			return nil, phaseerr.E(phaseerr.Cancelled, "polyploid phasing cancelled at column "+strconv.Itoa(i))
		}
		tuples := distinctPermutations(dp.genotypeAt(i).Alleles())
		entries := make(map[string]*polyStateEntry)
		if i == 0 {
			for _, t := range tuples {
				for _, g := range transitionGroups(groupState{}, dp.plan.enter[0], dp.options.Ploidy) {
					dp.insert(entries, g, t, dp.columnCost(0, g, t), nil)
				}
			}
		} else {
			for _, prev := range dp.cols[i-1] {
				purged := purgeGroup(prev.group, dp.plan.leave[i-1])
				for _, g := range transitionGroups(purged, dp.plan.enter[i], dp.options.Ploidy) {
					for _, t := range tuples {
						edge := dp.options.SwitchCost * float64(tupleDistance(prev.tuple, t))
						dp.insert(entries, g, t, prev.cost+edge+dp.columnCost(i, g, t), prev)
					}
				}
			}
		}
		dp.cols[i] = dp.prune(entries)
	}
	dp.stage = RanForward
	result, err := dp.backtrace()
	if err != nil {
		return nil, err
	}
	dp.stage = Emitted
	return result, nil
}

// PolyResult is PolyploidDP's output: the per-column haplotype tuple chosen
// for the sample along the optimal backtrace.
type PolyResult struct {
	Cost    float64
	Tuples  [][]uint8
}

func (dp *PolyploidDP) backtrace() (*PolyResult, error) {
	dp.stage = Backtraced
	n := len(dp.cols)
	if n == 0 {
		return &PolyResult{}, nil
	}
	last := dp.cols[n-1]
	if len(last) == 0 {
		return nil, phaseerr.Invalidf("polyploid phasing: no feasible state survives at the final column")
	}
	var best *polyStateEntry
	for _, e := range last {
		if best == nil || e.cost < best.cost {
			best = e
		}
	}
	tuples := make([][]uint8, n)
	cur := best
	for i := n - 1; i >= 0; i-- {
		if cur == nil {
			return nil, phaseerr.Invalidf("polyploid phasing: backtrace ended before column 0 (column %d)", i)
		}
		tuples[i] = cur.tuple
		cur = cur.back
	}
	return &PolyResult{Cost: best.cost, Tuples: tuples}, nil
}
