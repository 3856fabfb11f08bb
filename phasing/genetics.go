package phasing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/variant"
)

// geneticState is one column's resolution of the pedigree's haplotype
// values: an explicit orientation bit per heterozygous founder and an
// explicit (parentA-bit, parentB-bit) transmission pair per trio child,
// together with the genotype and resolved (h0,h1) pair each sample ends up
// with. Tracking the bits explicitly (rather than re-deriving them from
// resolved pairs) is what lets adjacent columns detect a transmission flip
// even when the flip happens to be unobservable in the pair values
// themselves (both parental alleles equal) — which recombination-event
// reporting (§8 scenario 3) needs.
type geneticState struct {
	orient   map[string]bool
	trans    map[string][2]bool
	genotype map[string]variant.Genotype
	pair     map[string][2]uint8
	key      string
}

func boolIdx(b bool) int {
	if b {
		return 1
	}
	return 0
}

// topoOrder returns the pedigree's samples with every child listed after
// both of its parents, so genetic-state enumeration can resolve founders
// before the children whose haplotype pairs derive from them. Pedigrees are
// required to be acyclic (§9 "Cyclic structures"); a sample whose parents
// never resolve (a cycle, or a dangling parent reference) is appended as-is
// rather than looping forever, giving a deterministic if degenerate order.
func topoOrder(model *pedigree.Model) []string {
	remaining := append([]string(nil), model.Samples()...)
	added := make(map[string]bool, len(remaining))
	var order []string
	for len(remaining) > 0 {
		var next []string
		progressed := false
		for _, s := range remaining {
			if model.IsFounder(s) {
				order = append(order, s)
				added[s] = true
				progressed = true
				continue
			}
			trio, _ := model.TrioFor(s)
			if added[trio.ParentA] && added[trio.ParentB] {
				order = append(order, s)
				added[s] = true
				progressed = true
				continue
			}
			next = append(next, s)
		}
		if !progressed {
			order = append(order, next...)
			break
		}
		remaining = next
	}
	return order
}

// enumerateGeneticStates returns every Mendelian-consistent resolution of
// the pedigree's sample genotypes and haplotype pairs at the given column
// (§4.4/§4.5: "g_i[s] drawn from the allowed genotypes for (s,i) under the
// prior" and "child genotypes must equal the multiset of one allele drawn
// from each parent's haplotype tuple").
func enumerateGeneticStates(model *pedigree.Model, order []string, columnIdx int) ([]*geneticState, error) {
	cur := &geneticState{
		orient:   make(map[string]bool),
		trans:    make(map[string][2]bool),
		genotype: make(map[string]variant.Genotype),
		pair:     make(map[string][2]uint8),
	}
	var results []*geneticState
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(order) {
			results = append(results, cloneGeneticState(cur))
			return nil
		}
		s := order[i]
		cands := model.CandidateGenotypes(s, columnIdx)
		if len(cands) == 0 {
			return phaseerr.E(phaseerr.InvalidInput, "pedigree sample "+s+" has no declared genotype for column "+strconv.Itoa(columnIdx))
		}
		if trio, isChild := model.TrioFor(s); isChild {
			pa, pok := cur.pair[trio.ParentA]
			pb, bok := cur.pair[trio.ParentB]
			if !pok || !bok {
				return phaseerr.E(phaseerr.InvalidInput, "pedigree sample "+s+": parent haplotypes not resolved before child (cyclic or malformed pedigree)")
			}
			for _, g := range cands {
				if g.Ploidy() != 2 {
					return phaseerr.E(phaseerr.UnsupportedOperation, "pedigree phasing requires diploid samples; "+s+" has ploidy "+strconv.Itoa(g.Ploidy()))
				}
				for _, bitA := range []bool{false, true} {
					for _, bitB := range []bool{false, true} {
						h0, h1 := pa[boolIdx(bitA)], pb[boolIdx(bitB)]
						if !variant.NewGenotype(h0, h1).Equal(g) {
							continue
						}
						cur.trans[s] = [2]bool{bitA, bitB}
						cur.genotype[s] = g
						cur.pair[s] = [2]uint8{h0, h1}
						if err := rec(i + 1); err != nil {
							return err
						}
					}
				}
			}
			delete(cur.trans, s)
			delete(cur.genotype, s)
			delete(cur.pair, s)
			return nil
		}
		for _, g := range cands {
			if g.Ploidy() != 2 {
				return phaseerr.E(phaseerr.UnsupportedOperation, "pedigree phasing requires diploid samples; "+s+" has ploidy "+strconv.Itoa(g.Ploidy()))
			}
			alleles := g.Alleles()
			lo, hi := alleles[0], alleles[1]
			cur.genotype[s] = g
			if lo == hi {
				cur.pair[s] = [2]uint8{lo, lo}
				if err := rec(i + 1); err != nil {
					return err
				}
			} else {
				for _, orient := range []bool{false, true} {
					cur.orient[s] = orient
					if orient {
						cur.pair[s] = [2]uint8{hi, lo}
					} else {
						cur.pair[s] = [2]uint8{lo, hi}
					}
					if err := rec(i + 1); err != nil {
						return err
					}
				}
				delete(cur.orient, s)
			}
		}
		delete(cur.genotype, s)
		delete(cur.pair, s)
		return nil
	}
	if err := rec(0); err != nil {
		return nil, err
	}
	for _, st := range results {
		st.key = geneticStateKey(order, st)
	}
	return results, nil
}

func cloneGeneticState(s *geneticState) *geneticState {
	c := &geneticState{
		orient:   make(map[string]bool, len(s.orient)),
		trans:    make(map[string][2]bool, len(s.trans)),
		genotype: make(map[string]variant.Genotype, len(s.genotype)),
		pair:     make(map[string][2]uint8, len(s.pair)),
	}
	for k, v := range s.orient {
		c.orient[k] = v
	}
	for k, v := range s.trans {
		c.trans[k] = v
	}
	for k, v := range s.genotype {
		c.genotype[k] = v
	}
	for k, v := range s.pair {
		c.pair[k] = v
	}
	return c
}

func geneticStateKey(order []string, s *geneticState) string {
	var b strings.Builder
	for _, sample := range order {
		if o, ok := s.orient[sample]; ok {
			if o {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		if t, ok := s.trans[sample]; ok {
			b.WriteByte(boolByte(t[0]))
			b.WriteByte(boolByte(t[1]))
		}
		b.WriteByte('|')
	}
	return b.String()
}

func boolByte(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

// genotypePriorCost sums GenotypePriorCost over every sample in the state.
func genotypePriorCost(model *pedigree.Model, columnIdx int, s *geneticState) float64 {
	var cost float64
	for sample, g := range s.genotype {
		cost += model.GenotypePriorCost(sample, columnIdx, g)
	}
	return cost
}

// recombEdgeCost returns the cost of transitioning from geneticState prev
// (at position posPrev) to cur (at position posCur): recomb_cost(prev,cur)
// for every heterozygous founder whose orientation bit flipped, plus the
// same cost for every trio child chromosome whose transmission bit flipped
// (§4.5 "Founder haplotype labels may flip... Child genotypes... up to
// recombination events counted as recomb transitions on the inheritance
// pattern").
func recombEdgeCost(model *pedigree.Model, posPrev, posCur int64, prev, cur *geneticState) float64 {
	var cost float64
	rc := model.RecombCost(posPrev, posCur)
	for sample, o := range cur.orient {
		if po, ok := prev.orient[sample]; ok && po != o {
			cost += rc
		}
	}
	for sample, t := range cur.trans {
		pt, ok := prev.trans[sample]
		if !ok {
			continue
		}
		if pt[0] != t[0] {
			cost += rc
		}
		if pt[1] != t[1] {
			cost += rc
		}
	}
	return cost
}

// RecombEvent is one (child, parent-index, posPrev, posCur) record, emitted
// by recombEvents where a trio child's transmission bit flipped between two
// adjacent columns — the supplemented recombination-event output (§8
// scenario 3).
type RecombEvent struct {
	Child            string
	ParentIndex      int // 0 = parentA, 1 = parentB
	PosPrev, PosCur  int64
}

func recombEvents(posPrev, posCur int64, prev, cur *geneticState) []RecombEvent {
	var out []RecombEvent
	for sample, t := range cur.trans {
		pt, ok := prev.trans[sample]
		if !ok {
			continue
		}
		if pt[0] != t[0] {
			out = append(out, RecombEvent{Child: sample, ParentIndex: 0, PosPrev: posPrev, PosCur: posCur})
		}
		if pt[1] != t[1] {
			out = append(out, RecombEvent{Child: sample, ParentIndex: 1, PosPrev: posPrev, PosCur: posCur})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Child != out[j].Child {
			return out[i].Child < out[j].Child
		}
		return out[i].ParentIndex < out[j].ParentIndex
	})
	return out
}
