// Package allele implements AlleleDetector: walking one aligned read's CIGAR
// against a sorted variant list to emit (position, allele, quality) calls,
// and merging the two ends of a read-pair into a single fragment-level
// allele list. The CIGAR walk below is grounded on
// pileup/snp/pileup.go's alignRelevantBases, generalised from "does this
// read overlap a BED interval" to "what allele does this read support at
// each variant".
package allele

import (
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"

	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/readset"
	"github.com/wckdouglas/whatshap/variant"
)

// DefaultBaseQuality is used whenever a call is synthesised without an
// observed base quality (matches uses in indel and no-variation regions:
// §4.1 "Base quality from the read; if unavailable, use default 30").
const DefaultBaseQuality = 30

// AlignedRead is the external-interface shape of one aligned read (§6):
// everything AlleleDetector needs and nothing about the BAM/PAM encoding it
// came from.
type AlignedRead struct {
	Name         string
	MappingQual  uint8
	RefStart     int64
	Cigar        sam.Cigar
	Seq          []byte // one byte per base, upper-case ASCII
	Qual         []byte // per-base quality, same length as Seq; nil if unavailable
	ReadGroup    string
	SampleID     int
	SourceID     int
}

func (r *AlignedRead) qualAt(queryPos int) uint8 {
	if r.Qual == nil || queryPos >= len(r.Qual) {
		return DefaultBaseQuality
	}
	return r.Qual[queryPos]
}

// Detector walks aligned reads against a fixed, sorted variant list.
type Detector struct {
	variants []variant.Variant
}

// NewDetector constructs a Detector over a chromosome's sorted variant list.
func NewDetector(variants []variant.Variant) *Detector {
	return &Detector{variants: variants}
}

// Detect returns the allele calls the read supports, as a sorted-by-position
// readset.Read. Reads contributing zero calls return a Read with no alleles
// rather than an error; callers decide whether to discard it.
func (d *Detector) Detect(r *AlignedRead) (*readset.Read, error) {
	calls, err := d.detectAlleles(r)
	if err != nil {
		return nil, err
	}
	return readset.NewRead(r.Name, r.MappingQual, r.SampleID, r.SourceID, calls)
}

// detectAlleles implements the core CIGAR walk of §4.1.
func (d *Detector) detectAlleles(r *AlignedRead) ([]readset.Allele, error) {
	variants := d.variants
	refPos := r.RefStart
	queryPos := 0
	j := 0
	for j < len(variants) && variants[j].Position < refPos {
		j++
	}

	var calls []readset.Allele
	seen := make(map[int64]bool)
	emit := func(pos int64, alleleIdx uint8, qual uint8) {
		if seen[pos] {
			return
		}
		seen[pos] = true
		calls = append(calls, readset.Allele{Position: pos, AlleleIdx: alleleIdx, BaseQual: qual})
	}

	for _, co := range r.Cigar {
		length := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			end := refPos + int64(length)
			for j < len(variants) && variants[j].Position < end {
				v := variants[j]
				offset := v.Position - refPos
				switch {
				case v.IsSNV():
					base := r.Seq[queryPos+int(offset)]
					switch {
					case base == v.RefAllele[0]:
						emit(v.Position, 0, r.qualAt(queryPos+int(offset)))
					case base == v.AltAllele[0]:
						emit(v.Position, 1, r.qualAt(queryPos+int(offset)))
					}
				case v.IsInsertion():
					// Within a match region the insertion did not occur.
					emit(v.Position, 0, DefaultBaseQuality)
				case v.IsDeletion():
					delEnd := v.Position + int64(len(v.RefAllele))
					overlapped := false
					k := j + 1
					for k < len(variants) && variants[k].Position < delEnd {
						overlapped = true
						k++
					}
					if !overlapped {
						emit(v.Position, 0, DefaultBaseQuality)
					}
					j = k
					continue
				}
				j++
			}
			refPos = end
			queryPos += length
		case sam.CigarInsertion:
			if j < len(variants) && variants[j].Position == refPos && variants[j].IsInsertion() {
				v := variants[j]
				if len(v.AltAllele) == length && bytesEqual(v.AltAllele, r.Seq[queryPos:queryPos+length]) {
					emit(v.Position, 1, DefaultBaseQuality)
				}
			}
			queryPos += length
		case sam.CigarDeletion:
			if j < len(variants) && variants[j].Position == refPos && variants[j].IsDeletion() && len(variants[j].RefAllele) == length {
				v := variants[j]
				delEnd := v.Position + int64(length)
				overlapped := false
				k := j + 1
				for k < len(variants) && variants[k].Position < delEnd {
					overlapped = true
					k++
				}
				if !overlapped {
					emit(v.Position, 1, DefaultBaseQuality)
				}
			}
			refPos += int64(length)
			for j < len(variants) && variants[j].Position < refPos {
				j++
			}
		case sam.CigarSkipped:
			refPos += int64(length)
			for j < len(variants) && variants[j].Position < refPos {
				j++
			}
		case sam.CigarSoftClipped:
			queryPos += length
		case sam.CigarHardClipped, sam.CigarPadded:
			// Consumes neither coordinate.
		default:
			return nil, phaseerr.E(phaseerr.InvalidInput, "unknown alignment operator in read "+r.Name)
		}
	}
	log.Debug.Printf("allele.Detect: read %s produced %d allele calls", r.Name, len(calls))
	return calls, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MergePairedEnd combines two reads sharing a fragment name into one,
// walking both sorted allele lists in lock-step (§4.1 "Paired-end merge").
// On position ties: if alleles agree, emit one entry with summed quality
// (capped per readset.Allele.BaseQual's uint8 range); else emit the
// higher-quality call and discard the other.
func MergePairedEnd(a, b *readset.Read) (*readset.Read, error) {
	merged := make([]readset.Allele, 0, len(a.Alleles)+len(b.Alleles))
	i, j := 0, 0
	for i < len(a.Alleles) && j < len(b.Alleles) {
		ai, bj := a.Alleles[i], b.Alleles[j]
		switch {
		case ai.Position < bj.Position:
			merged = append(merged, ai)
			i++
		case ai.Position > bj.Position:
			merged = append(merged, bj)
			j++
		default:
			if ai.AlleleIdx == bj.AlleleIdx {
				merged = append(merged, readset.Allele{
					Position:  ai.Position,
					AlleleIdx: ai.AlleleIdx,
					BaseQual:  saturatingAdd(ai.BaseQual, bj.BaseQual),
				})
			} else if ai.BaseQual >= bj.BaseQual {
				merged = append(merged, ai)
			} else {
				merged = append(merged, bj)
			}
			i++
			j++
		}
	}
	merged = append(merged, a.Alleles[i:]...)
	merged = append(merged, b.Alleles[j:]...)
	return readset.NewRead(a.Name, maxUint8(a.MappingQual, b.MappingQual), a.SampleID, a.SourceID, merged)
}

func saturatingAdd(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

func maxUint8(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}
