package phasing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wckdouglas/whatshap/component"
	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/readselect"
	"github.com/wckdouglas/whatshap/readset"
	"github.com/wckdouglas/whatshap/variant"
)

func singleSampleTable(t *testing.T, positions []int64) *variant.VariantTable {
	variants := make([]variant.Variant, len(positions))
	for i, p := range positions {
		variants[i] = variant.Variant{Position: p, RefAllele: []byte("A"), AltAllele: []byte("G")}
	}
	genotypes := [][]variant.Genotype{make([]variant.Genotype, len(positions))}
	for i := range genotypes[0] {
		genotypes[0][i] = variant.NewGenotype(0, 1)
	}
	phases := [][]*variant.Phase{make([]*variant.Phase, len(positions))}
	tab, err := variant.NewVariantTable("chr1", variants, []string{"s1"}, genotypes, phases)
	require.NoError(t, err)
	return tab
}

func mustRead(t *testing.T, name string, sampleID int, alleles []readset.Allele) *readset.Read {
	r, err := readset.NewRead(name, 30, sampleID, 0, alleles)
	require.NoError(t, err)
	return r
}

func TestDPDiploidUnrelatedSampleTwoHaplotypes(t *testing.T) {
	positions := []int64{100, 200, 300}
	tab := singleSampleTable(t, positions)
	model, err := pedigree.NewModel(pedigree.Config{Table: tab})
	require.NoError(t, err)

	rs := readset.NewReadSet()
	r0 := rs.Add(mustRead(t, "r0", 0, []readset.Allele{{Position: 100, AlleleIdx: 0, BaseQual: 30}, {Position: 200, AlleleIdx: 0, BaseQual: 30}}))
	r1 := rs.Add(mustRead(t, "r1", 0, []readset.Allele{{Position: 200, AlleleIdx: 1, BaseQual: 30}, {Position: 300, AlleleIdx: 1, BaseQual: 30}}))

	posIndex := readset.NewPositionIndex(positions)
	finder := component.NewFinder(positions)
	finder.Merge(100, 200)
	finder.Merge(200, 300)
	selection := &readselect.Result{Selected: []int{r0, r1}, Components: finder}

	dp, err := NewDP(rs, posIndex, model, selection, Options{SwitchCost: 1})
	require.NoError(t, err)
	result, err := dp.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.Cost)

	p0, ok := result.HaplotypePair("s1", 0)
	require.True(t, ok)
	p1, ok := result.HaplotypePair("s1", 1)
	require.True(t, ok)
	p2, ok := result.HaplotypePair("s1", 2)
	require.True(t, ok)

	// r0's two calls must land on the same haplotype slot, and r1's must land
	// on the other: the cost-0 solution is exactly this bipartition (up to
	// the global haplotype-label swap).
	assert.NotEqual(t, p0[0], p0[1])
	sameSlotAs := func(pair [2]uint8, allele uint8) int {
		if pair[0] == allele {
			return 0
		}
		return 1
	}
	slot0 := sameSlotAs(p0, 0)
	slot1 := sameSlotAs(p1, 0)
	slot2 := sameSlotAs(p2, 1)
	assert.Equal(t, slot0, slot1, "r0's two positions should resolve to the same haplotype slot")
	assert.Equal(t, sameSlotAs(p1, 1), slot2, "r1's shared position should resolve to the same slot as its other call")
}

func TestPhaseForHomozygousReturnsNil(t *testing.T) {
	result := &Result{Columns: []*stateEntry{{gen: &geneticState{pair: map[string][2]uint8{"s1": {0, 0}}}}}}
	assert.Nil(t, PhaseFor(result, "s1", 0, 100))
}

func TestPhaseForHeterozygousReturnsTuple(t *testing.T) {
	result := &Result{Columns: []*stateEntry{{gen: &geneticState{pair: map[string][2]uint8{"s1": {1, 0}}}}}}
	phase := PhaseFor(result, "s1", 0, 100)
	require.NotNil(t, phase)
	assert.Equal(t, []uint8{1, 0}, phase.HaplotypeTuple)
	assert.Equal(t, int64(100), phase.BlockID)
}

func trioPhasingSetup(t *testing.T) (*pedigree.Model, *readset.ReadSet, *readset.PositionIndex, []int64) {
	positions := []int64{100, 200}
	variants := []variant.Variant{
		{Position: 100, RefAllele: []byte("A"), AltAllele: []byte("G")},
		{Position: 200, RefAllele: []byte("C"), AltAllele: []byte("T")},
	}
	samples := []string{"child", "father", "mother"}
	genotypes := [][]variant.Genotype{
		{variant.NewGenotype(0, 1), variant.NewGenotype(0, 1)},
		{variant.NewGenotype(0, 1), variant.NewGenotype(0, 0)},
		{variant.NewGenotype(0, 0), variant.NewGenotype(0, 1)},
	}
	phases := [][]*variant.Phase{make([]*variant.Phase, 2), make([]*variant.Phase, 2), make([]*variant.Phase, 2)}
	tab, err := variant.NewVariantTable("chr1", variants, samples, genotypes, phases)
	require.NoError(t, err)

	model, err := pedigree.NewModel(pedigree.Config{
		Table: tab,
		Trios: []pedigree.Trio{{Child: "child", ParentA: "father", ParentB: "mother"}},
	})
	require.NoError(t, err)
	return model, readset.NewReadSet(), readset.NewPositionIndex(positions), positions
}

func TestDPTrioMendelianConsistency(t *testing.T) {
	model, rs, posIndex, positions := trioPhasingSetup(t)
	childIdx := model.Table().SampleIndex("child")
	fatherIdx := model.Table().SampleIndex("father")

	r0 := rs.Add(mustRead(t, "child-read", childIdx, []readset.Allele{{Position: 100, AlleleIdx: 0, BaseQual: 30}, {Position: 200, AlleleIdx: 1, BaseQual: 30}}))
	r1 := rs.Add(mustRead(t, "father-read", fatherIdx, []readset.Allele{{Position: 100, AlleleIdx: 1, BaseQual: 30}}))

	finder := component.NewFinder(positions)
	finder.Merge(100, 200)
	selection := &readselect.Result{Selected: []int{r0, r1}, Components: finder}

	dp, err := NewDP(rs, posIndex, model, selection, Options{SwitchCost: 1})
	require.NoError(t, err)
	result, err := dp.Run(nil)
	require.NoError(t, err)

	childPair, ok := result.HaplotypePair("child", 0)
	require.True(t, ok)
	fatherPair, ok := result.HaplotypePair("father", 0)
	require.True(t, ok)
	motherPair, ok := result.HaplotypePair("mother", 0)
	require.True(t, ok)

	// The child's resolved pair must be reconstructible as one allele from
	// each parent's pair (Mendelian consistency is enforced at enumeration
	// time, so this should hold for every surviving state).
	consistent := (childPair[0] == fatherPair[0] || childPair[0] == fatherPair[1]) &&
		(childPair[1] == motherPair[0] || childPair[1] == motherPair[1])
	reversed := (childPair[1] == fatherPair[0] || childPair[1] == fatherPair[1]) &&
		(childPair[0] == motherPair[0] || childPair[0] == motherPair[1])
	assert.True(t, consistent || reversed)
}

func TestDPRejectsNonDiploidSample(t *testing.T) {
	positions := []int64{100}
	variants := []variant.Variant{{Position: 100, RefAllele: []byte("A"), AltAllele: []byte("G")}}
	genotypes := [][]variant.Genotype{{variant.NewGenotype(0, 1, 1)}}
	phases := [][]*variant.Phase{{nil}}
	tab, err := variant.NewVariantTable("chr1", variants, []string{"poly1"}, genotypes, phases)
	require.NoError(t, err)
	model, err := pedigree.NewModel(pedigree.Config{Table: tab, Ploidy: map[string]int{"poly1": 3}})
	require.NoError(t, err)

	posIndex := readset.NewPositionIndex(positions)
	_, err = NewDP(readset.NewReadSet(), posIndex, model, &readselect.Result{Components: component.NewFinder(positions)}, Options{})
	assert.Error(t, err)
}

func TestDPCancellation(t *testing.T) {
	positions := []int64{100, 200, 300}
	tab := singleSampleTable(t, positions)
	model, err := pedigree.NewModel(pedigree.Config{Table: tab})
	require.NoError(t, err)

	rs := readset.NewReadSet()
	r0 := rs.Add(mustRead(t, "r0", 0, []readset.Allele{{Position: 100, AlleleIdx: 0, BaseQual: 30}, {Position: 200, AlleleIdx: 0, BaseQual: 30}}))
	posIndex := readset.NewPositionIndex(positions)
	finder := component.NewFinder(positions)
	selection := &readselect.Result{Selected: []int{r0}, Components: finder}

	dp, err := NewDP(rs, posIndex, model, selection, Options{SwitchCost: 1})
	require.NoError(t, err)
	_, err = dp.Run(func() bool { return true })
	require.Error(t, err)
}
