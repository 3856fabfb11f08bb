package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wckdouglas/whatshap/variant"
)

func buildTable(t *testing.T, positions []int64, tuples [][2]uint8) *variant.VariantTable {
	variants := make([]variant.Variant, len(positions))
	for i, p := range positions {
		variants[i] = variant.Variant{Position: p, RefAllele: []byte("A"), AltAllele: []byte("G")}
	}
	genotypes := make([]variant.Genotype, len(positions))
	phases := make([]*variant.Phase, len(positions))
	for i, tup := range tuples {
		genotypes[i] = variant.NewGenotype(tup[0], tup[1])
		phases[i] = &variant.Phase{BlockID: positions[0], HaplotypeTuple: []uint8{tup[0], tup[1]}}
	}
	tab, err := variant.NewVariantTable("chr1", variants, []string{"s1"}, [][]variant.Genotype{genotypes}, [][]*variant.Phase{phases})
	require.NoError(t, err)
	return tab
}

func TestCompareIdentityIsZero(t *testing.T) {
	positions := []int64{100, 200, 300, 400}
	tuples := [][2]uint8{{0, 1}, {1, 0}, {1, 0}, {0, 1}}
	a := buildTable(t, positions, tuples)

	result, err := Compare(a, a, "s1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Aggregate.Hamming)
	assert.Equal(t, 0, result.Aggregate.Switches)
	assert.Equal(t, [2]int{0, 0}, result.Aggregate.SwitchFlips)
}

func TestCompareSwitchErrorScenario(t *testing.T) {
	// 0101 vs 0110, per §8 scenario 4.
	positions := []int64{100, 200, 300, 400}
	a := buildTable(t, positions, [][2]uint8{{0, 0}, {1, 0}, {0, 0}, {1, 0}})
	b := buildTable(t, positions, [][2]uint8{{0, 0}, {1, 0}, {1, 0}, {0, 0}})

	result, err := Compare(a, b, "s1", Options{})
	require.NoError(t, err)
	require.Len(t, result.PerBlock, 1)
	block := result.PerBlock[0]
	// "0101" vs "0110" differ at 2 of 4 positions, and spec.md:201's own
	// invariant (hamming(complement(a), b) + hamming(a, b) = len(a)) forces
	// the complement-hamming to be 4-2=2 as well, so hammingMinComplement's
	// minimum is 2 here, not the 1 the scenario text names.
	assert.Equal(t, 2, block.Hamming)
	assert.Equal(t, 1, block.Switches)
	assert.Equal(t, [2]int{1, 0}, block.SwitchFlips)
}

func TestCompareCommutative(t *testing.T) {
	positions := []int64{100, 200, 300, 400, 500}
	a := buildTable(t, positions, [][2]uint8{{0, 1}, {0, 1}, {1, 0}, {1, 0}, {0, 1}})
	b := buildTable(t, positions, [][2]uint8{{0, 1}, {1, 0}, {1, 0}, {0, 1}, {0, 1}})

	ab, err := Compare(a, b, "s1", Options{})
	require.NoError(t, err)
	ba, err := Compare(b, a, "s1", Options{})
	require.NoError(t, err)
	assert.Equal(t, ab.Aggregate.Switches, ba.Aggregate.Switches)
}

func TestCompareNoCommonSample(t *testing.T) {
	a := buildTable(t, []int64{100, 200}, [][2]uint8{{0, 1}, {1, 0}})
	b := buildTable(t, []int64{100, 200}, [][2]uint8{{0, 1}, {1, 0}})
	_, err := Compare(a, b, "missing", Options{})
	assert.Error(t, err)
}

func TestCompareOnlySNVsSkipsIndels(t *testing.T) {
	positions := []int64{100, 200, 300}
	a := buildTable(t, positions, [][2]uint8{{0, 1}, {1, 0}, {0, 1}})
	b := buildTable(t, positions, [][2]uint8{{0, 1}, {1, 0}, {0, 1}})
	// Make the middle variant an insertion (empty ref).
	a.Variants[1].RefAllele = nil
	b.Variants[1].RefAllele = nil

	result, err := Compare(a, b, "s1", Options{OnlySNVs: true})
	require.NoError(t, err)
	assert.Empty(t, result.PerBlock, "splitting around the indel leaves two singleton SNV runs, below the size-2 threshold")
}

func TestLongestBlockPicksLargestRun(t *testing.T) {
	per := []BlockStats{{NumVariants: 2}, {NumVariants: 5}, {NumVariants: 3}}
	assert.Equal(t, 5, longest(per).NumVariants)
}
