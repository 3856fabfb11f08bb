package phasing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/log"

	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/readselect"
	"github.com/wckdouglas/whatshap/readset"
	"github.com/wckdouglas/whatshap/variant"
)

// Algorithm selects between the default pedigree-aware DP and the
// restricted hapchat-mode alternative (§4.5 "Hapchat-mode alternative").
type Algorithm int

const (
	DefaultAlgorithm Algorithm = iota
	Hapchat
)

// Stage is the DP-run lifecycle (§4.5 "State machine"): every run walks
// through these in order, with no stage skipped.
type Stage int

const (
	Initialised Stage = iota
	BuiltTables
	RanForward
	Backtraced
	Emitted
)

// Options bundles the DP's per-run configuration, the subset of §9's
// EngineConfig that the core DP itself consumes.
type Options struct {
	Algorithm   Algorithm
	SwitchCost  float64 // pruning threshold slope; 0 or less keeps only the single cheapest entry per column
	MaxCoverage int
}

// bipState is a bipartition restricted to the reads active at one column:
// read index -> haplotype bit (false = haplotype 0, true = haplotype 1).
type bipState map[int]bool

func cloneBip(b bipState) bipState {
	c := make(bipState, len(b))
	for k, v := range b {
		c[k] = v
	}
	return c
}

func purgeBip(b bipState, drop []int) bipState {
	if len(drop) == 0 {
		return cloneBip(b)
	}
	dropSet := make(map[int]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	c := make(bipState, len(b))
	for k, v := range b {
		if !dropSet[k] {
			c[k] = v
		}
	}
	return c
}

func bipKey(b bipState) string {
	keys := make([]int, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(strconv.Itoa(k))
		if b[k] {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
		sb.WriteByte(',')
	}
	return sb.String()
}

// bipDistance is the Hamming distance between two bipartitions sharing the
// same read domain.
func bipDistance(a, b bipState) int {
	d := 0
	for k, v := range a {
		if bv, ok := b[k]; ok && bv != v {
			d++
		}
	}
	return d
}

// transitionBips expands base (the carried-over bits, already purged of
// reads that left) by branching every newly entering read over both
// haplotype assignments (§4.5 "reads that enter are added, doubling the
// number of child states for each new read").
func transitionBips(base bipState, enter []int) []bipState {
	if len(enter) == 0 {
		return []bipState{cloneBip(base)}
	}
	var out []bipState
	cur := cloneBip(base)
	var rec func(i int)
	rec = func(i int) {
		if i == len(enter) {
			out = append(out, cloneBip(cur))
			return
		}
		for _, bit := range [2]bool{false, true} {
			cur[enter[i]] = bit
			rec(i + 1)
		}
		delete(cur, enter[i])
	}
	rec(0)
	return out
}

// stateEntry is one DP table cell: a (bipartition, genetic-state) pair, its
// accumulated cost, and the backpointer used for backtracing.
type stateEntry struct {
	bip  bipState
	gen  *geneticState
	cost float64
	back *stateEntry
}

func combinedKey(bip bipState, gen *geneticState) string {
	return bipKey(bip) + "#" + gen.key
}

// pruneColumn implements §4.5's pruning rule: retain only entries within
// best_in_column + switch_cost*permutation_distance_from_best, where the
// permutation distance accounts for the diploid global haplotype-label
// swap (founders may be canonicalised either way with no cost difference).
func pruneColumn(entries map[string]*stateEntry, switchCost float64) map[string]*stateEntry {
	if len(entries) == 0 {
		return entries
	}
	var best *stateEntry
	for _, e := range entries {
		if best == nil || e.cost < best.cost {
			best = e
		}
	}
	if switchCost <= 0 {
		return map[string]*stateEntry{combinedKey(best.bip, best.gen): best}
	}
	kept := make(map[string]*stateEntry, len(entries))
	for k, e := range entries {
		d := bipDistance(e.bip, best.bip)
		flipped := len(e.bip) - d
		dist := d
		if flipped < dist {
			dist = flipped
		}
		if e.cost <= best.cost+switchCost*float64(dist) {
			kept[k] = e
		}
	}
	return kept
}

// DP is one run of the phasing dynamic program over a single chromosome's
// selected reads, for one pedigree (possibly a single unrelated sample,
// i.e. a pedigree with no trios).
type DP struct {
	stage Stage

	rs       *readset.ReadSet
	posIndex *readset.PositionIndex
	model    *pedigree.Model
	order    []string
	options  Options

	plan  *columnPlan
	table []map[string]*stateEntry

	sampleNames []string
}

// NewDP constructs a diploid phasing DP. model's table determines the
// sample set and, via Read.SampleID as an index into model.Table()'s
// sample names, which pedigree member each selected read belongs to.
func NewDP(rs *readset.ReadSet, posIndex *readset.PositionIndex, model *pedigree.Model, selection *readselect.Result, options Options) (*DP, error) {
	for _, s := range model.Samples() {
		if model.Ploidy(s) != 2 {
			return nil, phaseerr.E(phaseerr.UnsupportedOperation, "phasing.NewDP: sample "+s+" has ploidy "+strconv.Itoa(model.Ploidy(s))+", diploid DP requires ploidy 2")
		}
	}
	spans := buildSpans(rs, posIndex, selection)
	return &DP{
		rs:          rs,
		posIndex:    posIndex,
		model:       model,
		order:       topoOrder(model),
		options:     options,
		plan:        buildColumnPlan(posIndex.Len(), spans),
		sampleNames: model.Table().SampleNames,
	}, nil
}

func (dp *DP) sampleOf(readIdx int) string {
	sid := dp.rs.Get(readIdx).SampleID
	if sid < 0 || sid >= len(dp.sampleNames) {
		return ""
	}
	return dp.sampleNames[sid]
}

// columnCost is §4.5's "Cost at column i" for the default algorithm: read
// mismatch plus genotype prior (recombination is an edge cost, added by the
// caller between columns).
func (dp *DP) columnCost(colIdx int, bip bipState, gen *geneticState) float64 {
	pos := dp.posIndex.PositionAt(colIdx)
	var cost float64
	for readIdx, bit := range bip {
		a, ok := alleleAt(dp.rs.Get(readIdx), pos)
		if !ok {
			continue
		}
		sample := dp.sampleOf(readIdx)
		pair, ok := gen.pair[sample]
		if !ok {
			continue
		}
		implied := pair[boolIdx(bit)]
		if implied != a {
			entry, _ := alleleEntryAt(dp.rs.Get(readIdx), pos)
			cost += float64(entry.BaseQual)
		}
	}
	cost += genotypePriorCost(dp.model, colIdx, gen)
	return cost
}

func alleleEntryAt(r *readset.Read, pos int64) (readset.Allele, bool) {
	for _, a := range r.Alleles {
		if a.Position == pos {
			return a, true
		}
	}
	return readset.Allele{}, false
}

func (dp *DP) insertEntry(entries map[string]*stateEntry, bip bipState, gen *geneticState, cost float64, back *stateEntry) {
	key := combinedKey(bip, gen)
	if existing, ok := entries[key]; ok && existing.cost <= cost {
		return
	}
	entries[key] = &stateEntry{bip: cloneBip(bip), gen: gen, cost: cost, back: back}
}

// Run executes the full state machine: BuiltTables, then one RanForward
// pass per column (checking cancelled() at every column boundary, §5
// "Cancellation"), then Backtraced, then Emitted.
func (dp *DP) Run(cancelled func() bool) (*Result, error) {
	if dp.stage != Initialised {
		return nil, phaseerr.E(phaseerr.InvalidInput, "phasing.DP.Run: called out of lifecycle order")
	}
	if dp.options.Algorithm == Hapchat {
		return dp.runHapchat(cancelled)
	}
	dp.stage = BuiltTables
	n := dp.posIndex.Len()
	dp.table = make([]map[string]*stateEntry, n)
	for i := 0; i < n; i++ {
		if cancelled != nil && cancelled() {
			dp.table = nil
			dp.stage = Initialised
			return nil, phaseerr.E(phaseerr.Cancelled, "phasing cancelled at column "+strconv.Itoa(i))
		}
		gens, err := enumerateGeneticStates(dp.model, dp.order, i)
		if err != nil {
			return nil, err
		}
		entries := make(map[string]*stateEntry)
		if i == 0 {
			for _, g := range gens {
				for _, bip := range transitionBips(bipState{}, dp.plan.enter[0]) {
					dp.insertEntry(entries, bip, g, dp.columnCost(0, bip, g), nil)
				}
			}
		} else {
			posPrev := dp.posIndex.PositionAt(i - 1)
			posCur := dp.posIndex.PositionAt(i)
			for _, prev := range dp.table[i-1] {
				purged := purgeBip(prev.bip, dp.plan.leave[i-1])
				for _, bip := range transitionBips(purged, dp.plan.enter[i]) {
					for _, g := range gens {
						edge := recombEdgeCost(dp.model, posPrev, posCur, prev.gen, g)
						dp.insertEntry(entries, bip, g, prev.cost+edge+dp.columnCost(i, bip, g), prev)
					}
				}
			}
		}
		dp.table[i] = pruneColumn(entries, dp.options.SwitchCost)
		log.Debug.Printf("phasing.DP: column %d has %d surviving states", i, len(dp.table[i]))
	}
	dp.stage = RanForward
	result, err := dp.backtrace()
	if err != nil {
		return nil, err
	}
	dp.stage = Emitted
	return result, nil
}

// Result is the DP's output: the per-column chosen genetic state (from
// which per-sample haplotype tuples are read) and the recombination events
// detected along the optimal backtrace.
type Result struct {
	Cost         float64
	Columns      []*stateEntry
	RecombEvents []RecombEvent
}

// HaplotypePair returns the ordered (h0,h1) allele pair sample was assigned
// at column col, or ok=false if col is out of range or sample is unknown at
// that column.
func (r *Result) HaplotypePair(sample string, col int) (pair [2]uint8, ok bool) {
	if col < 0 || col >= len(r.Columns) {
		return pair, false
	}
	pair, ok = r.Columns[col].gen.pair[sample]
	return pair, ok
}

func (dp *DP) backtrace() (*Result, error) {
	dp.stage = Backtraced
	n := len(dp.table)
	if n == 0 {
		return &Result{}, nil
	}
	last := dp.table[n-1]
	if len(last) == 0 {
		return nil, phaseerr.Invalidf("phasing: no feasible state survives at the final column")
	}
	var best *stateEntry
	for _, e := range last {
		if best == nil || e.cost < best.cost {
			best = e
		}
	}
	path := make([]*stateEntry, n)
	cur := best
	for i := n - 1; i >= 0; i-- {
		if cur == nil {
			return nil, phaseerr.Invalidf("phasing: backtrace ended before column 0 (column %d)", i)
		}
		path[i] = cur
		cur = cur.back
	}
	var events []RecombEvent
	for i := 1; i < n; i++ {
		posPrev := dp.posIndex.PositionAt(i - 1)
		posCur := dp.posIndex.PositionAt(i)
		events = append(events, recombEvents(posPrev, posCur, path[i-1].gen, path[i].gen)...)
	}
	return &Result{Cost: best.cost, Columns: path, RecombEvents: events}, nil
}

// PhaseFor builds the variant.Phase for sample at column col from a
// finished Result, or nil if the sample/column is unknown or the pair is
// homozygous (a homozygous site carries no phase information to report).
func PhaseFor(result *Result, sample string, col int, blockID int64) *variant.Phase {
	pair, ok := result.HaplotypePair(sample, col)
	if !ok {
		return nil
	}
	if pair[0] == pair[1] {
		return nil
	}
	return &variant.Phase{BlockID: blockID, HaplotypeTuple: []uint8{pair[0], pair[1]}}
}
