package phasing

import (
	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/readset"
)

// Relation is the fixed relative orientation a block constraint asserts
// between two already-phased positions.
type Relation int

const (
	Cis Relation = iota
	Trans
)

// BlockConstraint is one "already phased" prior (§4.5 "Phased-block input
// (priors)"): positionA and positionB are on the same haplotype (Cis) or on
// opposite haplotypes (Trans).
type BlockConstraint struct {
	PosA, PosB int64
	Relation   Relation
}

// ConstraintWeight is the synthetic base-quality weight attached to the
// virtual read materialising a block constraint: high enough that the DP's
// ordinary read-mismatch cost heavily favours honouring it without using a
// literal infinity, which would make the cost model non-additive.
const ConstraintWeight = 250

// MaterializeBlockConstraints turns each constraint into a two-allele
// virtual read tying its two positions together through the exact same
// mismatch-cost machinery every real read uses. This stands in for
// literally collapsing the constrained columns into a single
// reduced-alphabet super-column (the spec's stated implementation): a
// single very-high-confidence synthetic read produces the same optimal
// bipartition without a second DP code path, and it has the useful side
// effect of forcing ComponentFinder to merge the two positions into one
// block the same way a real connecting read would.
func MaterializeBlockConstraints(sampleID, sourceID int, constraints []BlockConstraint) ([]*readset.Read, error) {
	var out []*readset.Read
	for _, c := range constraints {
		if c.PosA >= c.PosB {
			return nil, phaseerr.E(phaseerr.InvalidInput, "block constraint positions must be distinct and increasing")
		}
		second := uint8(0)
		if c.Relation == Trans {
			second = 1
		}
		r, err := readset.NewRead("block-constraint", ConstraintWeight, sampleID, sourceID, []readset.Allele{
			{Position: c.PosA, AlleleIdx: 0, BaseQual: ConstraintWeight},
			{Position: c.PosB, AlleleIdx: second, BaseQual: ConstraintWeight},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
