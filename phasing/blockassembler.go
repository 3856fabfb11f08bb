package phasing

import (
	"sort"

	"github.com/wckdouglas/whatshap/component"
	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/variant"
)

// AssembleBlocks groups sample's heterozygous variants into PhasedBlocks by
// union-find over positions connected through selected reads (§4.6),
// emitting block_id = the position of the leftmost variant in each block
// and filling each member variant's Phase from the DP backtrace. components
// is expected to already be scoped to the reads relevant to sample (the
// engine builds one ComponentFinder per sample's own read selection, not a
// cross-sample one — PhasingDP's columns may be shared across a pedigree,
// but block connectivity is a per-sample notion).
//
// A block holding only one heterozygous variant is still emitted, as a
// singleton (§4.6), but carries no Phase entry for it: with nothing to
// phase it relative to, there is no phase information to report (§8
// "Single-variant input: all phases null").
func AssembleBlocks(table *variant.VariantTable, sample string, components *component.Finder, result *Result) ([]*variant.PhasedBlock, error) {
	sampleIdx := table.SampleIndex(sample)
	if sampleIdx < 0 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "AssembleBlocks: unknown sample "+sample)
	}
	hetIdx := table.HeterozygousIndices(sampleIdx)
	byRep := make(map[int64][]int)
	for _, idx := range hetIdx {
		rep := components.Find(table.Variants[idx].Position)
		byRep[rep] = append(byRep[rep], idx)
	}

	blocks := make([]*variant.PhasedBlock, 0, len(byRep))
	for _, members := range byRep {
		sort.Ints(members)
		leftmost := table.Variants[members[0]]
		rightmost := table.Variants[members[len(members)-1]]
		block := &variant.PhasedBlock{
			Chromosome:       table.Chromosome,
			LeftmostVariant:  leftmost,
			RightmostVariant: rightmost,
			Phases:           make(map[int]variant.Phase),
		}
		if len(members) >= 2 {
			for _, idx := range members {
				if phase := PhaseFor(result, sample, idx, leftmost.Position); phase != nil {
					block.Phases[idx] = *phase
				}
			}
		}
		blocks = append(blocks, block)
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].LeftmostVariant.Position < blocks[j].LeftmostVariant.Position
	})
	return blocks, nil
}

// MergeGeneticallyAdjacentBlocks implements the genetic_haplotyping option
// (§4.6): consecutive blocks are merged when the genetic-map recombination
// cost spanning the gap between them falls at or below threshold; the later
// block's phases are relabelled with the earlier block's block_id.
func MergeGeneticallyAdjacentBlocks(blocks []*variant.PhasedBlock, model *pedigree.Model, threshold float64) []*variant.PhasedBlock {
	if len(blocks) < 2 {
		return blocks
	}
	merged := make([]*variant.PhasedBlock, 0, len(blocks))
	merged = append(merged, blocks[0])
	for _, b := range blocks[1:] {
		last := merged[len(merged)-1]
		cost := model.RecombCost(last.RightmostVariant.Position, b.LeftmostVariant.Position)
		if cost > threshold {
			merged = append(merged, b)
			continue
		}
		for idx, ph := range b.Phases {
			ph.BlockID = last.LeftmostVariant.Position
			last.Phases[idx] = ph
		}
		if b.RightmostVariant.Position > last.RightmostVariant.Position {
			last.RightmostVariant = b.RightmostVariant
		}
	}
	return merged
}
