package phasing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializeBlockConstraintsCis(t *testing.T) {
	reads, err := MaterializeBlockConstraints(0, 0, []BlockConstraint{{PosA: 100, PosB: 200, Relation: Cis}})
	require.NoError(t, err)
	require.Len(t, reads, 1)
	assert.Equal(t, uint8(0), reads[0].Alleles[0].AlleleIdx)
	assert.Equal(t, uint8(0), reads[0].Alleles[1].AlleleIdx)
	assert.Equal(t, uint8(ConstraintWeight), reads[0].Alleles[0].BaseQual)
}

func TestMaterializeBlockConstraintsTrans(t *testing.T) {
	reads, err := MaterializeBlockConstraints(0, 0, []BlockConstraint{{PosA: 100, PosB: 200, Relation: Trans}})
	require.NoError(t, err)
	require.Len(t, reads, 1)
	assert.Equal(t, uint8(0), reads[0].Alleles[0].AlleleIdx)
	assert.Equal(t, uint8(1), reads[0].Alleles[1].AlleleIdx)
}

func TestMaterializeBlockConstraintsRejectsOutOfOrderPositions(t *testing.T) {
	_, err := MaterializeBlockConstraints(0, 0, []BlockConstraint{{PosA: 200, PosB: 100, Relation: Cis}})
	assert.Error(t, err)
}
