// Package coordinator implements the Update Coordinator: the
// orchestration heart that drives indexing of a single tag through tree
// enumeration, a definition pass, a barrier, a reference pass, and
// finalisation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/xrefdb/elixir/pkg/blobstore"
	"github.com/xrefdb/elixir/pkg/extract"
	"github.com/xrefdb/elixir/pkg/family"
	"github.com/xrefdb/elixir/pkg/vcsadapter"
	"github.com/xrefdb/elixir/pkg/xhash"
	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// MinWorkers is the floor placed on the parallelism parameter.
const MinWorkers = 5

// DefaultWorkers is used when a caller does not specify W.
const DefaultWorkers = 10

// Coordinator drives one or more tags' index runs against a fixed
// Repo Adapter, Database, and Blob Identity Store.
type Coordinator struct {
	Adapter vcsadapter.Adapter
	DB      xrefcore.Database
	Blobs   *blobstore.Store
	Families family.Table
	Workers int
}

// New constructs a Coordinator. A workers value below MinWorkers is
// replaced by DefaultWorkers.
func New(adapter vcsadapter.Adapter, db xrefcore.Database, blobs *blobstore.Store, families family.Table, workers int) *Coordinator {
	if workers < MinWorkers {
		workers = DefaultWorkers
	}
	return &Coordinator{Adapter: adapter, DB: db, Blobs: blobs, Families: families, Workers: workers}
}

// Summary reports the outcome of one tag's index run.
type Summary struct {
	Tag            string
	Skipped        bool // already indexed
	NewBlobs       int
	PartialBlobs   []string // paths whose extraction was skipped (BlobMissing or ExtractorFailed)
	DefinitionsAdded int
	ReferencesAdded  int
}

type job struct {
	Blob  uint32
	Hash  xhash.Hash
	Paths []string
}

// defResult is one blob's contribution to the definition pass: the
// DefRecord/DocRecord tuples ready to append into (5) and the docs map,
// plus the raw per-blob Definitions (used only to build the same-line
// suppression table the reference pass consults).
type defResult struct {
	job         job
	byIdent     map[string][]xrefcore.DefRecord
	docsByIdent map[string][]xrefcore.DocRecord
	localDefs   []extract.Definition
	err         error
}

// RunTag indexes one tag, or reports Skipped if it is already indexed.
// A RepoUnavailable error from the adapter aborts immediately and
// fatally; per-blob errors are absorbed into Summary.PartialBlobs and do
// not abort the run.
func (c *Coordinator) RunTag(ctx context.Context, tag string) (Summary, error) {
	summary := Summary{Tag: tag}

	indexed, err := xrefcore.IsTagIndexed(ctx, c.DB, tag)
	if err != nil {
		return summary, err
	}
	if indexed {
		summary.Skipped = true
		return summary, nil
	}

	entries, err := c.Adapter.TagTree(ctx, tag)
	if err != nil {
		if errors.Is(err, vcsadapter.ErrRepoUnavailable) {
			return summary, fmt.Errorf("%w: %w", xrefcore.ErrRepoUnavailable, err)
		}
		return summary, err
	}

	tree, jobs, err := c.internTree(ctx, entries)
	if err != nil {
		return summary, err
	}
	summary.NewBlobs = len(jobs)

	defResults, partial := c.runDefinitionPass(ctx, jobs)
	seenPartial := map[string]bool{}
	for _, p := range partial {
		seenPartial[p] = true
		summary.PartialBlobs = append(summary.PartialBlobs, p)
	}

	defsAdded, err := c.commitDefinitions(ctx, defResults)
	if err != nil {
		return summary, err
	}
	summary.DefinitionsAdded = defsAdded

	knownIdents, defLinesByBlob, err := c.loadKnownIdentifiers(ctx, defResults)
	if err != nil {
		return summary, err
	}

	refResults, refPartial := c.runReferencePass(ctx, jobs, knownIdents, defLinesByBlob)
	for _, p := range refPartial {
		if !seenPartial[p] {
			seenPartial[p] = true
			summary.PartialBlobs = append(summary.PartialBlobs, p)
		}
	}

	refsAdded, err := c.commitReferences(ctx, refResults)
	if err != nil {
		return summary, err
	}
	summary.ReferencesAdded = refsAdded

	if err := c.finalize(ctx, tag, tree); err != nil {
		return summary, err
	}
	return summary, nil
}

// internTree allocates blob numbers for every (path, hash) pair in the
// tag's tree and returns the tree itself plus one extraction job per
// newly-observed blob, carrying every path it appeared under in this tag.
func (c *Coordinator) internTree(ctx context.Context, entries []vcsadapter.FileEntry) ([]xrefcore.TreeEntryRecord, []job, error) {
	tree := make([]xrefcore.TreeEntryRecord, 0, len(entries))
	byBlob := map[uint32]*job{}
	var order []uint32

	for _, e := range entries {
		b, isNew, err := c.Blobs.Intern(ctx, e.Hash, e.Path)
		if err != nil {
			return nil, nil, err
		}
		tree = append(tree, xrefcore.TreeEntryRecord{Blob: b, Path: e.Path})
		if j, ok := byBlob[b]; ok {
			j.Paths = append(j.Paths, e.Path)
			continue
		}
		if !isNew {
			continue
		}
		byBlob[b] = &job{Blob: b, Hash: e.Hash, Paths: []string{e.Path}}
		order = append(order, b)
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	jobs := make([]job, 0, len(order))
	for _, b := range order {
		j := byBlob[b]
		sort.Strings(j.Paths)
		jobs = append(jobs, *j)
	}
	return tree, jobs, nil
}

// unionFamilies returns the deduplicated union of families every path in
// paths classifies to. A blob interned under several paths that all map
// to the same family is extracted once, not once per path; only a path
// set that actually diverges in family produces more than one entry.
func (c *Coordinator) unionFamilies(paths []string) []family.Family {
	seen := map[family.Family]bool{}
	var fams []family.Family
	for _, p := range paths {
		for _, fam := range c.Families.Classify(p) {
			if !seen[fam] {
				seen[fam] = true
				fams = append(fams, fam)
			}
		}
	}
	return fams
}

// fanOut runs worker goroutines over jobs, calling process for each, and
// returns every result in arbitrary order. It is the shared
// shape behind both the definition and reference passes.
func fanOut[T any](ctx context.Context, workers int, jobs []job, process func(context.Context, job) T) []T {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	jobCh := make(chan job, len(jobs))
	resultCh := make(chan T, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				resultCh <- process(ctx, j)
			}
		}()
	}
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)
	wg.Wait()
	close(resultCh)

	results := make([]T, 0, len(jobs))
	for r := range resultCh {
		results = append(results, r)
	}
	return results
}
