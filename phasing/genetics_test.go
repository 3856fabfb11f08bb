package phasing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/variant"
)

func trioTable(t *testing.T) *variant.VariantTable {
	variants := []variant.Variant{
		{Position: 100, RefAllele: []byte("A"), AltAllele: []byte("G")},
	}
	genotypes := [][]variant.Genotype{
		{variant.NewGenotype(0, 1)}, // dad
		{variant.NewGenotype(0, 1)}, // mom
		{variant.NewGenotype(0, 1)}, // child
	}
	phases := [][]*variant.Phase{{nil}, {nil}, {nil}}
	tab, err := variant.NewVariantTable("chr1", variants, []string{"dad", "mom", "child"}, genotypes, phases)
	require.NoError(t, err)
	return tab
}

func trioModel(t *testing.T) *pedigree.Model {
	tab := trioTable(t)
	model, err := pedigree.NewModel(pedigree.Config{
		Table: tab,
		Trios: []pedigree.Trio{{Child: "child", ParentA: "dad", ParentB: "mom"}},
	})
	require.NoError(t, err)
	return model
}

func TestTopoOrderPlacesChildAfterBothParents(t *testing.T) {
	model := trioModel(t)
	order := topoOrder(model)
	require.Len(t, order, 3)

	pos := make(map[string]int, 3)
	for i, s := range order {
		pos[s] = i
	}
	assert.Less(t, pos["dad"], pos["child"])
	assert.Less(t, pos["mom"], pos["child"])
}

func TestEnumerateGeneticStatesProducesMendelianConsistentChild(t *testing.T) {
	model := trioModel(t)
	order := topoOrder(model)
	states, err := enumerateGeneticStates(model, order, 0)
	require.NoError(t, err)
	require.NotEmpty(t, states)

	wantChildGenotype := variant.NewGenotype(0, 1)
	for _, s := range states {
		pair, ok := s.pair["child"]
		require.True(t, ok)
		got := variant.NewGenotype(pair[0], pair[1])
		assert.True(t, got.Equal(wantChildGenotype), "every enumerated state's child pair must be a permutation of the table genotype")

		// The child's resolved pair must actually be drawable one allele from
		// each parent's resolved pair (the Mendelian-transmission invariant).
		dadPair := s.pair["dad"]
		momPair := s.pair["mom"]
		trans, hasTrans := s.trans["child"]
		require.True(t, hasTrans)
		assert.Equal(t, dadPair[boolIdx(trans[0])], pair[0])
		assert.Equal(t, momPair[boolIdx(trans[1])], pair[1])
	}
}

func TestGenotypePriorCostIsZeroForObservedGenotype(t *testing.T) {
	model := trioModel(t)
	order := topoOrder(model)
	states, err := enumerateGeneticStates(model, order, 0)
	require.NoError(t, err)
	require.NotEmpty(t, states)
	for _, s := range states {
		assert.Zero(t, genotypePriorCost(model, 0, s), "every enumerated candidate has finite (here: zero) prior cost by construction")
	}
}

func TestRecombEdgeCostChargesOnFlippedBits(t *testing.T) {
	model := trioModel(t)
	prev := &geneticState{
		orient: map[string]bool{"dad": false},
		trans:  map[string][2]bool{"child": {false, false}},
	}
	sameOrientation := &geneticState{
		orient: map[string]bool{"dad": false},
		trans:  map[string][2]bool{"child": {false, false}},
	}
	flipped := &geneticState{
		orient: map[string]bool{"dad": true},
		trans:  map[string][2]bool{"child": {true, false}},
	}

	assert.Zero(t, recombEdgeCost(model, 100, 200, prev, sameOrientation))
	assert.Positive(t, recombEdgeCost(model, 100, 200, prev, flipped))
}

func TestRecombEventsReportsOnlyFlippedTransmissionBits(t *testing.T) {
	prev := &geneticState{trans: map[string][2]bool{"child": {false, false}}}
	cur := &geneticState{trans: map[string][2]bool{"child": {true, false}}}

	events := recombEvents(100, 200, prev, cur)
	require.Len(t, events, 1)
	assert.Equal(t, "child", events[0].Child)
	assert.Equal(t, 0, events[0].ParentIndex)
	assert.EqualValues(t, 100, events[0].PosPrev)
	assert.EqualValues(t, 200, events[0].PosCur)
}

func TestGeneticStateKeyDistinguishesDifferentStates(t *testing.T) {
	order := []string{"dad", "mom", "child"}
	a := &geneticState{
		orient: map[string]bool{"dad": false},
		trans:  map[string][2]bool{"child": {false, true}},
	}
	b := &geneticState{
		orient: map[string]bool{"dad": true},
		trans:  map[string][2]bool{"child": {false, true}},
	}
	assert.NotEqual(t, geneticStateKey(order, a), geneticStateKey(order, b))
}
