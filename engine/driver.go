package engine

import (
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"

	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/variant"
)

// ChromosomeJob is one chromosome's input bundle for the multi-chromosome
// driver: its variant table, pedigree model, and accepted-or-not read list.
type ChromosomeJob struct {
	Table *variant.VariantTable
	Model *pedigree.Model
	Reads []*RawAlignedRead
}

// PhaseAll runs PhaseChromosome over every job, in parallel (§5 "different
// chromosomes are independent and may be processed in parallel"), using the
// same traverse.Each fan-out pileup/snp/pileup.go uses for its per-shard
// jobs. cancelled, if non-nil, is checked by every in-flight chromosome at
// its own DP column boundaries; a cancellation in one chromosome does not
// interrupt others already past their own check, but traverse.Each returns
// the first error encountered once every job has finished or errored.
func (e *Engine) PhaseAll(jobs []ChromosomeJob, parallelism int, cancelled func() bool) ([]*ChromosomeResult, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]*ChromosomeResult, len(jobs))
	log.Printf("engine.PhaseAll: phasing %d chromosomes at parallelism %d", len(jobs), parallelism)
	err := traverse.Each(parallelism, func(jobIdx int) error {
		job := jobs[jobIdx]
		result, err := e.PhaseChromosome(job.Table, job.Model, job.Reads, cancelled)
		if err != nil {
			return fmt.Errorf("engine.PhaseAll: chromosome %s: %w", job.Table.Chromosome, err)
		}
		results[jobIdx] = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
