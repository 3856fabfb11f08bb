package phasing

import (
	"strconv"

	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/variant"
)

// runHapchat implements the restricted DP: pure read bipartition, no
// genotype-prior cost, no recombination cost. It rejects any configured
// trio outright, since hapchat mode "forbids pedigree configurations".
func (dp *DP) runHapchat(cancelled func() bool) (*Result, error) {
	if len(dp.model.Trios()) > 0 {
		return nil, phaseerr.E(phaseerr.UnsupportedOperation, "cannot do pedigree phasing under hapchat mode")
	}
	// Every covered site is assumed heterozygous with allele pair (0,1),
	// fixed for every sample and every column (§4.5 "Hapchat-mode
	// alternative"). orient/trans stay empty since hapchat tracks no
	// pedigree bits; geneticStateKey of an all-empty state is always "",
	// which is exactly the degenerate single-state behaviour this mode wants.
	gen := &geneticState{
		orient:   map[string]bool{},
		trans:    map[string][2]bool{},
		genotype: map[string]variant.Genotype{},
		pair:     map[string][2]uint8{},
	}
	for _, s := range dp.model.Samples() {
		gen.genotype[s] = variant.NewGenotype(0, 1)
		gen.pair[s] = [2]uint8{0, 1}
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
		entries := make(map[string]*stateEntry)
		if i == 0 {
			for _, bip := range transitionBips(bipState{}, dp.plan.enter[0]) {
				dp.insertEntry(entries, bip, gen, dp.hapchatColumnCost(0, bip), nil)
			}
		} else {
			for _, prev := range dp.table[i-1] {
				purged := purgeBip(prev.bip, dp.plan.leave[i-1])
				for _, bip := range transitionBips(purged, dp.plan.enter[i]) {
					dp.insertEntry(entries, bip, gen, prev.cost+dp.hapchatColumnCost(i, bip), prev)
				}
			}
		}
		dp.table[i] = pruneColumn(entries, dp.options.SwitchCost)
	}
	dp.stage = RanForward
	result, err := dp.backtrace()
	if err != nil {
		return nil, err
	}
	dp.stage = Emitted
	return result, nil
}

func (dp *DP) hapchatColumnCost(colIdx int, bip bipState) float64 {
	pos := dp.posIndex.PositionAt(colIdx)
	var cost float64
	for readIdx, bit := range bip {
		entry, ok := alleleEntryAt(dp.rs.Get(readIdx), pos)
		if !ok {
			continue
		}
		implied := boolIdx(bit)
		if int(entry.AlleleIdx) != implied {
			cost += float64(entry.BaseQual)
		}
	}
	return cost
}
