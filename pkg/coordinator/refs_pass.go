package coordinator

import (
	"context"
	"sort"

	"github.com/xrefdb/elixir/pkg/extract"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// refResult is one blob's contribution to the reference pass.
type refResult struct {
	job     job
	byIdent map[string][]xrefcore.RefRecord
	err     error
}

// runReferencePass redistributes the same jobs across the worker pool
// with the now-committed known-identifier set. It cannot begin until
// runDefinitionPass has committed for every blob of this tag and every
// prior tag. RunTag enforces that ordering by calling commitDefinitions
// before this method.
func (c *Coordinator) runReferencePass(ctx context.Context, jobs []job, known map[string]bool, defLinesByBlob map[uint32]map[string][]int) ([]refResult, []string) {
	results := fanOut(ctx, c.Workers, jobs, func(ctx context.Context, j job) refResult {
		return c.extractReferencesForBlob(ctx, j, known, defLinesByBlob[j.Blob])
	})

	var partial []string
	kept := results[:0]
	for _, r := range results {
		if r.err != nil {
			partial = append(partial, r.job.Paths...)
			continue
		}
		kept = append(kept, r)
	}
	return kept, partial
}

func (c *Coordinator) extractReferencesForBlob(ctx context.Context, j job, known map[string]bool, defLines map[string][]int) refResult {
	bytes, err := c.Adapter.BlobBytes(ctx, j.Hash)
	if err != nil {
		return refResult{job: j, err: err}
	}

	// Same reasoning as the definition pass: one extraction per blob, the
	// result fanned out over the union of families its paths classify to.
	fams := c.unionFamilies(j.Paths)

	refs, err := extract.ExtractReferences(j.Paths[0], bytes, known, defLines)
	if err != nil {
		return refResult{job: j, err: err}
	}

	linesByIdent := map[string][]int{}
	for _, r := range refs {
		linesByIdent[r.Ident] = append(linesByIdent[r.Ident], r.Line)
	}

	byIdent := map[string][]xrefcore.RefRecord{}
	for ident, lines := range linesByIdent {
		for _, fam := range fams {
			byIdent[ident] = append(byIdent[ident], xrefcore.RefRecord{Blob: j.Blob, Family: fam, Lines: lines})
		}
	}

	return refResult{job: j, byIdent: byIdent}
}

// commitReferences appends every blob's references into the refs map,
// one identifier at a time under the per-key append guard.
func (c *Coordinator) commitReferences(ctx context.Context, results []refResult) (int, error) {
	merged := map[string][]xrefcore.RefRecord{}
	for _, r := range results {
		for ident, recs := range r.byIdent {
			merged[ident] = append(merged[ident], recs...)
		}
	}

	idents := make([]string, 0, len(merged))
	for k := range merged {
		idents = append(idents, k)
	}
	sort.Strings(idents)

	added := 0
	err := xrefcore.RetryBatch(ctx, c.DB, 5, func(b *xrefcore.Batch) error {
		for _, ident := range idents {
			if err := b.Append(ctx, xrefcore.MapRefs, []byte(ident), xrefcore.EncodeRefList(merged[ident])); err != nil {
				return err
			}
			added += len(merged[ident])
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
