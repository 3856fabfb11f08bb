// Package stats implements the supplemented per-block phasing statistics
// feature (§12 item 1), grounded on original_source/whatshap/cli/stats.py:
// a read-only reporting view over a phased VariantTable's PhasedBlocks,
// reporting block count, an N50-style block-length distribution, average
// heterozygous-variant count per block, and the fraction of heterozygous
// sites left unphased.
package stats

import (
	"sort"

	"github.com/wckdouglas/whatshap/variant"
)

// ChromosomeStats is one chromosome/sample's aggregated block statistics.
type ChromosomeStats struct {
	Chromosome         string
	BlockCount         int
	N50BlockLength      int64
	AverageHetPerBlock  float64
	TotalHeterozygous   int
	UnphasedHeterozygous int
	UnphasedFraction    float64
}

// Compute derives ChromosomeStats from one sample's phased blocks (as
// returned by phasing.AssembleBlocks) together with the full heterozygous
// count for that sample, needed to report the unphased fraction for sites
// BlockAssembler never grouped into any block at all (singletons excepted,
// since singletons are still "unphased" in the sense of carrying no
// relative-phase information).
func Compute(chromosome string, blocks []*variant.PhasedBlock, totalHeterozygous int) ChromosomeStats {
	s := ChromosomeStats{Chromosome: chromosome, TotalHeterozygous: totalHeterozygous}
	lengths := make([]int64, 0, len(blocks))
	phasedHet := 0
	blockCount := 0
	hetTotal := 0
	for _, b := range blocks {
		phasedHet += len(b.Phases)
		if b.HetCount() <= 1 {
			// Singleton (unphased) blocks carry no relative-phase information
			// and are excluded from block statistics, as original_source's
			// stats.py filters blocks to size > 1 before reporting.
			continue
		}
		blockCount++
		lengths = append(lengths, b.Span()+1)
		hetTotal += b.HetCount()
	}
	s.BlockCount = blockCount
	s.N50BlockLength = n50(lengths)
	if blockCount > 0 {
		s.AverageHetPerBlock = float64(hetTotal) / float64(blockCount)
	}
	s.UnphasedHeterozygous = totalHeterozygous - phasedHet
	if totalHeterozygous > 0 {
		s.UnphasedFraction = float64(s.UnphasedHeterozygous) / float64(totalHeterozygous)
	}
	return s
}

// n50 returns the classic N50 statistic over a set of block lengths: the
// length L such that the blocks of length >= L cover at least half the
// total summed length.
func n50(lengths []int64) int64 {
	if len(lengths) == 0 {
		return 0
	}
	sorted := append([]int64(nil), lengths...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
	var total int64
	for _, l := range sorted {
		total += l
	}
	half := total / 2
	var running int64
	for _, l := range sorted {
		running += l
		if running >= half {
			return l
		}
	}
	return sorted[len(sorted)-1]
}
