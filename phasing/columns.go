// Package phasing implements PhasingDP (§4.5) and BlockAssembler (§4.6): the
// core dynamic program over variant columns whose state is a bipartition
// (diploid) or set-partition (polyploid) of the active reads, together with,
// for pedigree runs, the per-sample haplotype-pair assignment implied by
// founder orientation and trio transmission bits; and the union-find pass
// that turns a DP backtrace into phased blocks.
package phasing

import (
	"sort"

	"github.com/wckdouglas/whatshap/readselect"
	"github.com/wckdouglas/whatshap/readset"
)

// readSpan is a selected read's [beginCol, endCol] activity window, computed
// once from its allele positions via the PositionIndex.
type readSpan struct {
	readIdx          int
	beginCol, endCol int
}

// buildSpans computes the per-column activity window for every read the
// selector kept (§4.5 "active reads... straddle column i").
func buildSpans(rs *readset.ReadSet, posIndex *readset.PositionIndex, result *readselect.Result) []readSpan {
	spans := make([]readSpan, 0, len(result.Selected))
	for _, idx := range result.Selected {
		r := rs.Get(idx)
		if r.Len() == 0 {
			continue
		}
		spans = append(spans, readSpan{
			readIdx:  idx,
			beginCol: posIndex.IndexOf(r.FirstPosition()),
			endCol:   posIndex.IndexOf(r.LastPosition()),
		})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].readIdx < spans[j].readIdx })
	return spans
}

// columnPlan precomputes, for every column, the reads entering (becoming
// active for the first time) and leaving (active here, not active at the
// next column), plus the full active set at this column, all in ascending
// read-index order for deterministic state enumeration.
type columnPlan struct {
	numCols int
	active  [][]int // active[i] = read indices active at column i, ascending
	enter   [][]int // enter[i] = subset of active[i] new at column i
	leave   [][]int // leave[i] = subset of active[i] absent from active[i+1]
}

func buildColumnPlan(numCols int, spans []readSpan) *columnPlan {
	p := &columnPlan{
		numCols: numCols,
		active:  make([][]int, numCols),
		enter:   make([][]int, numCols),
		leave:   make([][]int, numCols),
	}
	for _, s := range spans {
		for c := s.beginCol; c <= s.endCol; c++ {
			p.active[c] = append(p.active[c], s.readIdx)
		}
		if s.beginCol < numCols {
			p.enter[s.beginCol] = append(p.enter[s.beginCol], s.readIdx)
		}
		if s.endCol >= 0 && s.endCol < numCols {
			p.leave[s.endCol] = append(p.leave[s.endCol], s.readIdx)
		}
	}
	for c := 0; c < numCols; c++ {
		sort.Ints(p.active[c])
		sort.Ints(p.enter[c])
		sort.Ints(p.leave[c])
	}
	return p
}

// alleleAt returns the allele index a read carries at the given position,
// and whether it has one at all (a read is "active" across its whole span
// but may not have an explicit call at every column within it).
func alleleAt(r *readset.Read, pos int64) (uint8, bool) {
	// Alleles are sorted by position; linear scan is fine here since reads
	// rarely carry more than a handful of calls.
	for _, a := range r.Alleles {
		if a.Position == pos {
			return a.AlleleIdx, true
		}
	}
	return 0, false
}
