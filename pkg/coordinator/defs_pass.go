package coordinator

import (
	"context"
	"sort"

	"github.com/xrefdb/elixir/pkg/extract"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// runDefinitionPass distributes the definition pass across the worker
// pool. BlobMissing and ExtractorFailed are local: the blob's paths are
// reported as partial and excluded from the result set, but the pass as
// a whole continues.
func (c *Coordinator) runDefinitionPass(ctx context.Context, jobs []job) ([]defResult, []string) {
	results := fanOut(ctx, c.Workers, jobs, func(ctx context.Context, j job) defResult {
		return c.extractDefinitionsForBlob(ctx, j)
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

func (c *Coordinator) extractDefinitionsForBlob(ctx context.Context, j job) defResult {
	bytes, err := c.Adapter.BlobBytes(ctx, j.Hash)
	if err != nil {
		return defResult{job: j, err: err}
	}

	// A blob is extracted at most once regardless of how many paths it
	// appears under in this tag; any one path is representative for
	// grammar detection since the bytes are the blob's, not the path's.
	// Divergence between paths shows up only in which families the
	// resulting records get fanned out to.
	fams := c.unionFamilies(j.Paths)

	defs, docs, err := extract.ExtractDefinitions(j.Paths[0], bytes)
	if err != nil {
		return defResult{job: j, err: err}
	}

	docLines := map[string][2]int{}
	for _, d := range docs {
		docLines[d.Ident] = [2]int{d.StartLine, d.EndLine}
	}

	byIdent := map[string][]xrefcore.DefRecord{}
	docsByIdent := map[string][]xrefcore.DocRecord{}
	for _, d := range defs {
		for _, fam := range fams {
			byIdent[d.Ident] = append(byIdent[d.Ident], xrefcore.DefRecord{
				Blob: j.Blob, Line: d.Line, Kind: d.Kind, Family: fam,
			})
			if span, ok := docLines[d.Ident]; ok {
				docsByIdent[d.Ident] = append(docsByIdent[d.Ident], xrefcore.DocRecord{
					Blob: j.Blob, StartLine: span[0], EndLine: span[1], Family: fam,
				})
			}
		}
	}

	return defResult{job: j, byIdent: byIdent, docsByIdent: docsByIdent, localDefs: defs}
}

// commitDefinitions appends every blob's definitions into the defs map
// and every doc span into the docs map, one identifier's worth at a time
// under the database's per-key append guard. It commits in retried
// batches so transient DatabaseBusy contention does not abort the whole
// pass.
func (c *Coordinator) commitDefinitions(ctx context.Context, results []defResult) (int, error) {
	merged := map[string][]xrefcore.DefRecord{}
	docsMerged := map[string][]xrefcore.DocRecord{}
	for _, r := range results {
		for ident, recs := range r.byIdent {
			merged[ident] = append(merged[ident], recs...)
		}
		for ident, recs := range r.docsByIdent {
			docsMerged[ident] = append(docsMerged[ident], recs...)
		}
	}

	idents := sortedKeys(merged)
	added := 0
	err := xrefcore.RetryBatch(ctx, c.DB, 5, func(b *xrefcore.Batch) error {
		for _, ident := range idents {
			encoded, err := xrefcore.EncodeDefList(merged[ident])
			if err != nil {
				return err
			}
			if err := b.Append(ctx, xrefcore.MapDefs, []byte(ident), encoded); err != nil {
				return err
			}
			added += len(merged[ident])
		}
		for ident, recs := range docsMerged {
			if err := b.Append(ctx, xrefcore.MapDocs, []byte(ident), xrefcore.EncodeDocList(recs)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// loadKnownIdentifiers rebuilds the known-identifier set as the full key
// set of the defs map across every tag ever indexed, not just this one,
// so identifiers defined in an earlier tag are referenceable from this
// one onward. defLinesByBlob collects, per blob in this pass, the lines
// on which each identifier was defined, used for same-line reference
// suppression.
func (c *Coordinator) loadKnownIdentifiers(ctx context.Context, results []defResult) (map[string]bool, map[uint32]map[string][]int, error) {
	known := map[string]bool{}
	err := c.DB.IterPrefix(ctx, xrefcore.MapDefs, nil, func(key, _ []byte) bool {
		known[string(key)] = true
		return true
	})
	if err != nil {
		return nil, nil, err
	}

	defLinesByBlob := map[uint32]map[string][]int{}
	for _, r := range results {
		lines := map[string][]int{}
		for _, d := range r.localDefs {
			lines[d.Ident] = append(lines[d.Ident], d.Line)
		}
		defLinesByBlob[r.job.Blob] = lines
	}
	return known, defLinesByBlob, nil
}

func sortedKeys(m map[string][]xrefcore.DefRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
