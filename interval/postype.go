// Package interval provides the genomic-coordinate support types shared by
// the read-selection and DP packages: a common position type, and
// CoverageMonitor, a lazy segment tree over DP-column indices supporting
// O(log n) range-add / range-max queries. The PosType/search helpers below
// are adapted from grailbio/bio/interval's endpoint-index machinery.
package interval

import (
	"math"
	"sort"
)

// PosType is the integer type used for genomic positions and DP-column
// indices throughout the engine. int32 comfortably covers chromosome
// coordinates and column counts for any sequenced genome.
type PosType int32

// PosTypeMax is the maximum value representable by PosType.
const PosTypeMax = math.MaxInt32

// SearchPosTypes returns the index of x in a (sorted ascending), or the
// position where x would be inserted if absent.
func SearchPosTypes(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}
