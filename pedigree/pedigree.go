// Package pedigree implements PedigreeModel (§4.4): the trio DAG, per-sample
// genotype priors, and the genetic-map-derived recombination cost that feeds
// the phasing DP's founder-flip and trio-inheritance transitions.
//
// The genetic map's position→centiMorgan lookup is kept in an llrb.Tree
// (as component.Finder keys its position→slot arena, and
// encoding/bampair/shard_info.go keys its shard registry), interpolating
// between the floor and ceiling entries bracketing a query position rather
// than requiring exact map coverage of every variant.
package pedigree

import (
	"math"

	"github.com/biogo/store/llrb"

	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/variant"
)

// Trio is one (child, parentA, parentB) edge in the pedigree DAG.
type Trio struct {
	Child, ParentA, ParentB string
}

type mapEntry struct {
	pos int64
	cm  float64
}

// Compare implements llrb.Comparable, ordering entries by position.
func (e mapEntry) Compare(other llrb.Comparable) int {
	o := other.(mapEntry)
	switch {
	case e.pos < o.pos:
		return -1
	case e.pos > o.pos:
		return 1
	default:
		return 0
	}
}

// GeneticMap is a sorted mapping from base-pair position to centiMorgan
// distance, queried by linear interpolation between bracketing entries.
type GeneticMap struct {
	tree  llrb.Tree
	first, last mapEntry
	empty bool
}

// NewGeneticMap builds a GeneticMap from (position, centiMorgan) pairs,
// which must already be sorted by position.
func NewGeneticMap(positions []int64, centiMorgans []float64) (*GeneticMap, error) {
	if len(positions) != len(centiMorgans) {
		return nil, phaseerr.E(phaseerr.InvalidInput, "genetic map position/centiMorgan length mismatch")
	}
	gm := &GeneticMap{empty: len(positions) == 0}
	for i := 1; i < len(positions); i++ {
		if positions[i] <= positions[i-1] {
			return nil, phaseerr.E(phaseerr.InvalidInput, "genetic map positions not strictly increasing")
		}
	}
	for i, p := range positions {
		e := mapEntry{pos: p, cm: centiMorgans[i]}
		gm.tree.Insert(e)
		if i == 0 {
			gm.first = e
		}
		gm.last = e
	}
	return gm, nil
}

// CentiMorgansAt returns the interpolated centiMorgan coordinate of pos.
// Positions outside the map's range are clamped, and positions that fall
// between two map entries are linearly interpolated; with no entries
// at all it returns 0 (the caller's recombination rate override then takes
// over).
func (gm *GeneticMap) CentiMorgansAt(pos int64) float64 {
	if gm.empty {
		return 0
	}
	floor := gm.tree.Floor(mapEntry{pos: pos})
	ceil := gm.tree.Ceil(mapEntry{pos: pos})
	switch {
	case floor == nil && ceil == nil:
		return 0
	case floor == nil:
		return ceil.(mapEntry).cm
	case ceil == nil:
		return floor.(mapEntry).cm
	}
	f, c := floor.(mapEntry), ceil.(mapEntry)
	if f.pos == c.pos {
		return f.cm
	}
	frac := float64(pos-f.pos) / float64(c.pos-f.pos)
	return f.cm + frac*(c.cm-f.cm)
}

// GenotypeLikelihood is the log-likelihood of one genotype at one variant
// for one sample, used only when distrust_genotypes is enabled.
type GenotypeLikelihood struct {
	Sample      string
	VariantIdx  int
	Genotype    variant.Genotype
	LogLikelihood float64
}

// Model is the PedigreeModel: samples, the trio DAG, per-sample declared
// genotypes (the "observed" genotype each prior is centred on), optional
// likelihoods, and the genetic map used for recombination costs.
type Model struct {
	samples    []string
	ploidy     map[string]int
	trios      []Trio
	trioByChild map[string]Trio

	table              *variant.VariantTable
	distrustGenotypes  bool
	likelihoods        map[string]map[int][]likelihoodEntry // sample -> variantIdx -> candidate genotypes
	geneticMap         *GeneticMap
	recombinationRate  float64 // constant override, Morgans/bp; 0 means "use geneticMap"
}

// Config bundles Model's construction-time options (§9 EngineConfig carries
// most of these; Model accepts exactly the subset it needs).
type Config struct {
	Trios             []Trio
	Ploidy            map[string]int
	Table             *variant.VariantTable
	DistrustGenotypes bool
	Likelihoods       []GenotypeLikelihood
	GeneticMap        *GeneticMap
	RecombinationRate float64
}

// NewModel constructs a PedigreeModel over the sample set implied by
// cfg.Table's sample list plus any trio member (child or parent) named in
// cfg.Trios that is not itself in the table (samples with no variant calls
// of their own are still pedigree members).
func NewModel(cfg Config) (*Model, error) {
	if cfg.Table == nil {
		return nil, phaseerr.E(phaseerr.InvalidInput, "pedigree.NewModel: nil variant table")
	}
	m := &Model{
		trios:             cfg.Trios,
		trioByChild:       make(map[string]Trio, len(cfg.Trios)),
		table:             cfg.Table,
		distrustGenotypes: cfg.DistrustGenotypes,
		geneticMap:        cfg.GeneticMap,
		recombinationRate: cfg.RecombinationRate,
		ploidy:            make(map[string]int),
	}
	seen := make(map[string]bool)
	for _, s := range cfg.Table.SampleNames {
		if !seen[s] {
			seen[s] = true
			m.samples = append(m.samples, s)
		}
	}
	for _, t := range cfg.Trios {
		if _, dup := m.trioByChild[t.Child]; dup {
			return nil, phaseerr.E(phaseerr.InvalidInput, "pedigree: sample "+t.Child+" has more than one trio entry")
		}
		m.trioByChild[t.Child] = t
		for _, s := range []string{t.Child, t.ParentA, t.ParentB} {
			if !seen[s] {
				seen[s] = true
				m.samples = append(m.samples, s)
			}
		}
	}
	for s, p := range cfg.Ploidy {
		m.ploidy[s] = p
	}
	for _, s := range m.samples {
		if _, ok := m.ploidy[s]; !ok {
			m.ploidy[s] = 2
		}
	}
	if err := m.loadLikelihoods(cfg.Likelihoods); err != nil {
		return nil, err
	}
	return m, nil
}

type likelihoodEntry struct {
	genotype variant.Genotype
	logProb  float64
}

func (m *Model) loadLikelihoods(ls []GenotypeLikelihood) error {
	if len(ls) == 0 {
		return nil
	}
	m.likelihoods = make(map[string]map[int][]likelihoodEntry)
	for _, l := range ls {
		bySample, ok := m.likelihoods[l.Sample]
		if !ok {
			bySample = make(map[int][]likelihoodEntry)
			m.likelihoods[l.Sample] = bySample
		}
		bySample[l.VariantIdx] = append(bySample[l.VariantIdx], likelihoodEntry{genotype: l.Genotype, logProb: l.LogLikelihood})
	}
	return nil
}

// Samples returns every pedigree member, table samples first in table order,
// then any pedigree-only trio members in trio-declaration order.
func (m *Model) Samples() []string { return m.samples }

// Trios returns the pedigree's trio edges.
func (m *Model) Trios() []Trio { return m.trios }

// IsFounder reports whether sample has no parents recorded in the pedigree.
func (m *Model) IsFounder(sample string) bool {
	_, ok := m.trioByChild[sample]
	return !ok
}

// TrioFor returns the trio in which sample is the child, if any.
func (m *Model) TrioFor(sample string) (Trio, bool) {
	t, ok := m.trioByChild[sample]
	return t, ok
}

// Table returns the underlying variant table, so callers (the phasing DP)
// can walk the same position list this model's genotype priors are indexed
// against.
func (m *Model) Table() *variant.VariantTable { return m.table }

// Ploidy returns the declared ploidy for sample, defaulting to 2 (diploid)
// if never set.
func (m *Model) Ploidy(sample string) int {
	if p, ok := m.ploidy[sample]; ok {
		return p
	}
	return 2
}

// GenotypePrior returns the log-probability of sample carrying genotype at
// variant index i. Without likelihoods (distrust_genotypes off), the
// observed genotype from the variant table has log-prior 0 and every other
// genotype has prior -Inf (i.e. forbidden) — matching §4.4 "the observed
// genotype has prior 0 and alternatives +∞" in cost terms (a cost of +∞ is a
// log-probability of -∞). With distrust_genotypes, priors come from the
// supplied likelihoods; a genotype with no recorded likelihood is also
// forbidden.
func (m *Model) GenotypePrior(sample string, variantIdx int, genotype variant.Genotype) float64 {
	if m.distrustGenotypes && m.likelihoods != nil {
		if byVariant, ok := m.likelihoods[sample][variantIdx]; ok {
			for _, e := range byVariant {
				if e.genotype.Equal(genotype) {
					return e.logProb
				}
			}
			return math.Inf(-1)
		}
	}
	sampleIdx := m.table.SampleIndex(sample)
	if sampleIdx < 0 {
		return math.Inf(-1)
	}
	observed := m.table.Genotypes[sampleIdx][variantIdx]
	if observed.Equal(genotype) {
		return 0
	}
	return math.Inf(-1)
}

// CandidateGenotypes returns the genotypes with finite prior for sample at
// variant index i: under the default (trusting) model this is just the
// table's observed genotype; under distrust_genotypes it is every genotype
// named in the supplied likelihoods, observed genotype included if present
// there. The phasing DP enumerates exactly this set per column rather than
// the full allele-combination space, since every genotype outside it carries
// infinite cost and can never contribute to an optimal state.
func (m *Model) CandidateGenotypes(sample string, variantIdx int) []variant.Genotype {
	if m.distrustGenotypes && m.likelihoods != nil {
		if byVariant, ok := m.likelihoods[sample][variantIdx]; ok {
			out := make([]variant.Genotype, len(byVariant))
			for i, e := range byVariant {
				out[i] = e.genotype
			}
			return out
		}
	}
	sampleIdx := m.table.SampleIndex(sample)
	if sampleIdx < 0 {
		return nil
	}
	return []variant.Genotype{m.table.Genotypes[sampleIdx][variantIdx]}
}

// GenotypePriorCost is the cost form of GenotypePrior, the negated
// log-probability (-log p), since the DP sums costs rather than multiplying
// probabilities; infeasible genotypes carry math.Inf(+1).
func (m *Model) GenotypePriorCost(sample string, variantIdx int, genotype variant.Genotype) float64 {
	return -m.GenotypePrior(sample, variantIdx, genotype)
}

// defaultMorgansPerBP is the classic human-genome average recombination
// rate (1 centiMorgan per megabase), used when neither a genetic map nor a
// constant-rate override is supplied.
const defaultMorgansPerBP = 1e-8

// haldaneRecombFraction converts a genetic distance in Morgans to a
// recombination fraction via the Haldane map function: r = 0.5*(1-e^-2d).
// This is the standard no-interference mapping function used throughout
// classical linkage analysis.
func haldaneRecombFraction(morgans float64) float64 {
	if morgans < 0 {
		morgans = 0
	}
	return 0.5 * (1 - math.Exp(-2*morgans))
}

// RecombCost returns the non-negative phred-scaled cost of a recombination
// event occurring between the variants at positions a and b (§4.4): the
// genetic distance between them (from the genetic map, or from a constant
// recombination rate override if set) is passed through the Haldane map
// function to get a recombination fraction, then phred-scaled
// (-10*log10(r)) the same way a base-quality score expresses an error
// probability.
func (m *Model) RecombCost(a, b int64) float64 {
	var morgans float64
	switch {
	case m.recombinationRate > 0:
		morgans = m.recombinationRate * float64(b-a)
	case m.geneticMap != nil && !m.geneticMap.empty:
		morgans = (m.geneticMap.CentiMorgansAt(b) - m.geneticMap.CentiMorgansAt(a)) / 100
	default:
		// No genetic map and no rate override: fall back to the classic
		// human-genome average of 1 cM/Mb rather than treating every
		// transition as an impossible (infinite-cost) recombination.
		morgans = defaultMorgansPerBP * float64(b-a)
	}
	r := haldaneRecombFraction(morgans)
	if r <= 0 {
		return math.Inf(1)
	}
	if r >= 1 {
		return 0
	}
	return -10 * math.Log10(r)
}
