package allele

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wckdouglas/whatshap/readset"
	"github.com/wckdouglas/whatshap/variant"
)

func TestDetectSNVs(t *testing.T) {
	variants := []variant.Variant{
		{Position: 100, RefAllele: []byte("A"), AltAllele: []byte("G")},
		{Position: 200, RefAllele: []byte("C"), AltAllele: []byte("T")},
		{Position: 300, RefAllele: []byte("A"), AltAllele: []byte("C")},
	}
	d := NewDetector(variants)

	seq := make([]byte, 250)
	for i := range seq {
		seq[i] = 'A'
	}
	seq[0] = 'G'   // at ref pos 100
	seq[100] = 'T' // at ref pos 200

	r := &AlignedRead{
		Name:        "read1",
		MappingQual: 60,
		RefStart:    100,
		Cigar:       sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 250)},
		Seq:         seq,
	}
	read, err := d.Detect(r)
	require.NoError(t, err)
	require.Len(t, read.Alleles, 3)
	assert.EqualValues(t, 100, read.Alleles[0].Position)
	assert.EqualValues(t, 1, read.Alleles[0].AlleleIdx)
	assert.EqualValues(t, 200, read.Alleles[1].Position)
	assert.EqualValues(t, 1, read.Alleles[1].AlleleIdx)
	assert.EqualValues(t, 300, read.Alleles[2].Position)
	assert.EqualValues(t, 0, read.Alleles[2].AlleleIdx)
}

func TestDetectSoftClipAndSkipsVariantsBeforeStart(t *testing.T) {
	variants := []variant.Variant{
		{Position: 50, RefAllele: []byte("A"), AltAllele: []byte("G")},
		{Position: 105, RefAllele: []byte("A"), AltAllele: []byte("G")},
	}
	d := NewDetector(variants)
	seq := make([]byte, 20)
	for i := range seq {
		seq[i] = 'A'
	}
	r := &AlignedRead{
		Name:     "read2",
		RefStart: 100,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarSoftClipped, 5),
			sam.NewCigarOp(sam.CigarMatch, 15),
		},
		Seq: seq,
	}
	read, err := d.Detect(r)
	require.NoError(t, err)
	require.Len(t, read.Alleles, 1)
	assert.EqualValues(t, 105, read.Alleles[0].Position)
	assert.EqualValues(t, 0, read.Alleles[0].AlleleIdx)
}

func TestDetectDeletionOverlap(t *testing.T) {
	variants := []variant.Variant{
		{Position: 100, RefAllele: []byte("AAA"), AltAllele: []byte("")},
	}
	d := NewDetector(variants)
	r := &AlignedRead{
		Name:     "read3",
		RefStart: 100,
		Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarDeletion, 3),
			sam.NewCigarOp(sam.CigarMatch, 5),
		},
		Seq: []byte("AAAAA"),
	}
	read, err := d.Detect(r)
	require.NoError(t, err)
	require.Len(t, read.Alleles, 1)
	assert.EqualValues(t, 1, read.Alleles[0].AlleleIdx)
}

func TestMergePairedEndAgreeingAndConflicting(t *testing.T) {
	a, err := readset.NewRead("frag", 60, 0, 0, []readset.Allele{
		{Position: 100, AlleleIdx: 0, BaseQual: 20},
		{Position: 200, AlleleIdx: 1, BaseQual: 30},
	})
	require.NoError(t, err)
	b, err := readset.NewRead("frag", 60, 0, 0, []readset.Allele{
		{Position: 200, AlleleIdx: 1, BaseQual: 10},
		{Position: 300, AlleleIdx: 0, BaseQual: 25},
	})
	require.NoError(t, err)
	merged, err := MergePairedEnd(a, b)
	require.NoError(t, err)
	require.Len(t, merged.Alleles, 3)
	assert.EqualValues(t, 40, merged.Alleles[1].BaseQual) // 30+10, same allele
}
