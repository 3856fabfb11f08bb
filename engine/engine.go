// Package engine implements the top-level orchestration named in §9's
// EngineConfig: wiring AlleleDetector -> ReadSet -> ReadSelector ->
// PhasingDP/PolyploidDP -> BlockAssembler into one per-chromosome run, and
// a multi-chromosome parallel driver on top of it. Grounded on
// pileup/snp/pileup.go's Opts/pileupSNPOpts validate-then-run shape and its
// traverse.Each(parallelism, ...) fan-out for the multi-chromosome driver
// (§5 "different chromosomes are independent and may be processed in
// parallel").
package engine

import (
	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/log"
	"github.com/minio/highwayhash"

	"github.com/wckdouglas/whatshap/allele"
	"github.com/wckdouglas/whatshap/component"
	"github.com/wckdouglas/whatshap/pedigree"
	"github.com/wckdouglas/whatshap/phaseerr"
	"github.com/wckdouglas/whatshap/phasing"
	"github.com/wckdouglas/whatshap/readselect"
	"github.com/wckdouglas/whatshap/readset"
	"github.com/wckdouglas/whatshap/variant"
)

// Region names a genomic interval (§9 EngineConfig "regions").
// PhaseChromosome does not read EngineConfig.Regions: every read and variant
// it is given is phased, whatever the configured regions.
type Region struct {
	Chromosome string
	Start, End int64
}

// EngineConfig is §9's EngineConfig struct, the engine's sole configuration
// surface: a plain, validated-once struct with no global mutable state.
type EngineConfig struct {
	Ploidy                    int
	CoverageCap               int
	DistrustGenotypes         bool
	IncludeHomozygous         bool
	Algorithm                 phasing.Algorithm
	RecombinationRate         float64
	GeneticMap                *pedigree.GeneticMap // pre-loaded; genmap_path parsing is an external reader concern
	GeneticHaplotyping        bool
	GeneticHaplotypingThreshold float64
	Indels                    bool
	IgnoreReadGroups          bool
	Samples                   map[string]bool // nil means "all samples"
	Regions                   []Region
	TagSupplementary          bool
	ReadMerging               bool
	SwitchCost                float64
	MinMappingQual            uint8
}

// resolved is EngineConfig with defaults filled in, the way
// pileup/snp/pileup.go resolves Opts into an internal options struct before
// its main loop runs.
type resolved struct {
	cfg EngineConfig
}

// Engine runs phasing over one or more chromosomes under a fixed
// configuration.
type Engine struct {
	opts resolved
}

// NewEngine validates cfg and constructs an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Ploidy < 2 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "engine: ploidy must be >= 2")
	}
	if cfg.CoverageCap <= 0 {
		return nil, phaseerr.E(phaseerr.InvalidInput, "engine: coverage_cap must be > 0")
	}
	if cfg.MinMappingQual == 0 {
		cfg.MinMappingQual = 20 // §6 "mapping quality >= threshold (default 20)"
	}
	return &Engine{opts: resolved{cfg: cfg}}, nil
}

// BuildModel constructs the pedigree.Model for one chromosome's table,
// threading the config's recombination_rate/genmap_path and
// distrust_genotypes knobs through to pedigree.Config. Trio topology is not
// among §9's EngineConfig fields (it is supplied separately, e.g. from a PED
// file), so callers pass it explicitly here rather than carrying it on
// EngineConfig itself.
func (e *Engine) BuildModel(table *variant.VariantTable, trios []pedigree.Trio, ploidy map[string]int, likelihoods []pedigree.GenotypeLikelihood) (*pedigree.Model, error) {
	return pedigree.NewModel(pedigree.Config{
		Trios:             trios,
		Ploidy:            ploidy,
		Table:             table,
		DistrustGenotypes: e.opts.cfg.DistrustGenotypes,
		Likelihoods:       likelihoods,
		GeneticMap:        e.opts.cfg.GeneticMap,
		RecombinationRate: e.opts.cfg.RecombinationRate,
	})
}

// RawAlignedRead is §6's full external aligned-read shape, before the
// core's read-acceptance filter is applied. allele.AlignedRead already
// represents an accepted read; the flag fields live here at the boundary so
// AlleleDetector itself never has to reason about BAM flag semantics.
type RawAlignedRead struct {
	allele.AlignedRead
	Supplementary bool
	Secondary     bool
	Unmapped      bool
}

// acceptRead implements §6's read filter: supplementary-alignment flag
// unset, mapping quality >= threshold, not secondary, mapped, alignment
// operation list non-empty.
func acceptRead(r *RawAlignedRead, minMappingQual uint8) bool {
	if r.Supplementary || r.Secondary || r.Unmapped {
		return false
	}
	if r.MappingQual < minMappingQual {
		return false
	}
	if len(r.Cigar) == 0 {
		return false
	}
	return true
}

// ChromosomeResult is one chromosome's phasing output.
type ChromosomeResult struct {
	Chromosome   string
	Phases       map[string][]*variant.Phase       // per sample, aligned to table.Variants
	Blocks       map[string][]*variant.PhasedBlock // per sample
	RecombEvents []phasing.RecombEvent
	Cost         float64
}

// PhaseChromosome runs the full pipeline for one chromosome: filtering,
// allele detection (with optional paired-end merge), read selection, the
// phasing DP (diploid/pedigree-aware or polyploid depending on cfg.Ploidy),
// and block assembly.
func (e *Engine) PhaseChromosome(table *variant.VariantTable, model *pedigree.Model, reads []*RawAlignedRead, cancelled func() bool) (*ChromosomeResult, error) {
	cfg := e.opts.cfg
	accepted := make([]*RawAlignedRead, 0, len(reads))
	for _, r := range reads {
		if !acceptRead(r, cfg.MinMappingQual) {
			continue
		}
		if cfg.Samples != nil {
			name := sampleNameOf(model, r.SampleID)
			if !cfg.Samples[name] {
				continue
			}
		}
		accepted = append(accepted, r)
	}

	detector := allele.NewDetector(table.Variants)
	calledReads, err := detectAndMerge(detector, accepted, cfg.ReadMerging)
	if err != nil {
		return nil, err
	}

	positions := make([]int64, len(table.Variants))
	for i, v := range table.Variants {
		positions[i] = v.Position
	}
	posIndex := readset.NewPositionIndex(positions)

	rs := readset.NewReadSet()
	for _, r := range calledReads {
		filtered := r
		if !cfg.IncludeHomozygous {
			filtered, err = restrictToHeterozygous(table, r, posIndex)
			if err != nil {
				return nil, err
			}
		}
		if filtered.IsInformative() {
			rs.Add(filtered)
		}
	}

	selection := readselect.Select(rs, posIndex, cfg.CoverageCap, true)
	logSelectionFingerprint(selection.Selected)

	if cfg.Ploidy == 2 {
		return e.phaseDiploid(table, model, rs, posIndex, selection, cancelled)
	}
	return e.phasePolyploid(table, model, rs, posIndex, selection, cancelled)
}

func sampleNameOf(model *pedigree.Model, sampleID int) string {
	names := model.Table().SampleNames
	if sampleID < 0 || sampleID >= len(names) {
		return ""
	}
	return names[sampleID]
}

// detectAndMerge runs AlleleDetector over every accepted read, pairing
// reads that share a fragment name when read merging is enabled. Pairing
// buckets by farm.Hash64WithSeed of the read name rather than a plain
// string-keyed map, matching how the pack's fragment-grouping code
// (fusion/kmer_index.go) keys its own per-fragment maps.
func detectAndMerge(detector *allele.Detector, reads []*RawAlignedRead, merge bool) ([]*readset.Read, error) {
	if !merge {
		out := make([]*readset.Read, 0, len(reads))
		for _, r := range reads {
			called, err := detector.Detect(&r.AlignedRead)
			if err != nil {
				return nil, err
			}
			if called.Len() > 0 {
				out = append(out, called)
			}
		}
		return out, nil
	}

	type bucket struct {
		name  string
		reads []*readset.Read
	}
	buckets := make(map[uint64][]*bucket)
	for _, r := range reads {
		called, err := detector.Detect(&r.AlignedRead)
		if err != nil {
			return nil, err
		}
		if called.Len() == 0 {
			continue
		}
		h := farm.Hash64WithSeed([]byte(r.Name), 0)
		var b *bucket
		for _, existing := range buckets[h] {
			if existing.name == r.Name {
				b = existing
				break
			}
		}
		if b == nil {
			b = &bucket{name: r.Name}
			buckets[h] = append(buckets[h], b)
		}
		b.reads = append(b.reads, called)
	}

	var out []*readset.Read
	for _, bs := range buckets {
		for _, b := range bs {
			switch len(b.reads) {
			case 1:
				out = append(out, b.reads[0])
			case 2:
				merged, err := allele.MergePairedEnd(b.reads[0], b.reads[1])
				if err != nil {
					return nil, err
				}
				out = append(out, merged)
			default:
				out = append(out, b.reads...)
			}
		}
	}
	return out, nil
}

// restrictToHeterozygous drops a read's calls at positions homozygous for
// the read's owning sample, unless cfg.IncludeHomozygous overrides this.
func restrictToHeterozygous(table *variant.VariantTable, r *readset.Read, posIndex *readset.PositionIndex) (*readset.Read, error) {
	sampleIdx := r.SampleID
	if sampleIdx < 0 || sampleIdx >= len(table.Genotypes) {
		return r, nil
	}
	var kept []readset.Allele
	for _, a := range r.Alleles {
		col := posIndex.IndexOf(a.Position)
		if col < 0 {
			continue
		}
		if table.Genotypes[sampleIdx][col].IsHeterozygous() {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(r.Alleles) {
		return r, nil
	}
	return readset.NewRead(r.Name, r.MappingQual, r.SampleID, r.SourceID, kept)
}

// logSelectionFingerprint hashes the selected-read-index list for §8's
// round-trip reproducibility property ("given same selection seed"),
// logged at verbose level for debugging rather than surfaced as an output.
func logSelectionFingerprint(selected []int) {
	buf := make([]byte, 0, len(selected)*4)
	for _, idx := range selected {
		buf = append(buf, byte(idx), byte(idx>>8), byte(idx>>16), byte(idx>>24))
	}
	var seed [highwayhash.Size]byte
	sum := highwayhash.Sum(buf, seed[:])
	log.Debug.Printf("engine: selection fingerprint %x over %d reads", sum, len(selected))
}

func (e *Engine) phaseDiploid(table *variant.VariantTable, model *pedigree.Model, rs *readset.ReadSet, posIndex *readset.PositionIndex, selection *readselect.Result, cancelled func() bool) (*ChromosomeResult, error) {
	dp, err := phasing.NewDP(rs, posIndex, model, selection, phasing.Options{
		Algorithm:   e.opts.cfg.Algorithm,
		SwitchCost:  e.opts.cfg.SwitchCost,
		MaxCoverage: e.opts.cfg.CoverageCap,
	})
	if err != nil {
		return nil, err
	}
	result, err := dp.Run(cancelled)
	if err != nil {
		return nil, err
	}

	out := &ChromosomeResult{
		Chromosome:   table.Chromosome,
		Phases:       make(map[string][]*variant.Phase),
		Blocks:       make(map[string][]*variant.PhasedBlock),
		RecombEvents: result.RecombEvents,
		Cost:         result.Cost,
	}
	for _, sample := range model.Samples() {
		// Block connectivity is per sample: only this sample's selected reads
		// join its variants into blocks.
		sampleIdx := table.SampleIndex(sample)
		components := component.NewFinder(posIndex.All())
		for _, ri := range selection.Selected {
			r := rs.Get(ri)
			if r.SampleID != sampleIdx || len(r.Alleles) < 2 {
				continue
			}
			for _, a := range r.Alleles[1:] {
				components.Merge(r.Alleles[0].Position, a.Position)
			}
		}
		blocks, err := phasing.AssembleBlocks(table, sample, components, result)
		if err != nil {
			return nil, err
		}
		if e.opts.cfg.GeneticHaplotyping {
			blocks = phasing.MergeGeneticallyAdjacentBlocks(blocks, model, e.opts.cfg.GeneticHaplotypingThreshold)
		}
		out.Blocks[sample] = blocks
		out.Phases[sample] = phasesFromBlocks(len(table.Variants), blocks)
	}
	return out, nil
}

func (e *Engine) phasePolyploid(table *variant.VariantTable, model *pedigree.Model, rs *readset.ReadSet, posIndex *readset.PositionIndex, selection *readselect.Result, cancelled func() bool) (*ChromosomeResult, error) {
	if len(model.Trios()) > 0 {
		return nil, phaseerr.E(phaseerr.UnsupportedOperation, "engine: pedigree phasing is not supported above diploid ploidy")
	}
	out := &ChromosomeResult{
		Chromosome: table.Chromosome,
		Phases:     make(map[string][]*variant.Phase),
		Blocks:     make(map[string][]*variant.PhasedBlock),
	}
	for _, sample := range model.Samples() {
		dp, err := phasing.NewPolyploidDP(rs, posIndex, table, sample, selection, phasing.PolyploidOptions{
			Ploidy:     e.opts.cfg.Ploidy,
			SwitchCost: e.opts.cfg.SwitchCost,
		})
		if err != nil {
			return nil, err
		}
		result, err := dp.Run(cancelled)
		if err != nil {
			return nil, err
		}
		out.Cost += result.Cost
		phases := make([]*variant.Phase, len(table.Variants))
		for col, tuple := range result.Tuples {
			if isHomogeneousTuple(tuple) {
				continue
			}
			phases[col] = &variant.Phase{BlockID: table.Variants[col].Position, HaplotypeTuple: tuple}
		}
		out.Phases[sample] = phases
	}
	return out, nil
}

func isHomogeneousTuple(tuple []uint8) bool {
	for _, v := range tuple[1:] {
		if v != tuple[0] {
			return false
		}
	}
	return true
}

func phasesFromBlocks(numVariants int, blocks []*variant.PhasedBlock) []*variant.Phase {
	out := make([]*variant.Phase, numVariants)
	for _, b := range blocks {
		for idx, phase := range b.Phases {
			p := phase
			out[idx] = &p
		}
	}
	return out
}
