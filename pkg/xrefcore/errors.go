package xrefcore

import "errors"

// Error kinds for the indexing and query pipeline. Callers distinguish
// them with errors.Is; every call site wraps one of these with
// fmt.Errorf("...: %w", ...) so context survives without losing the
// sentinel.
var (
	// ErrRepoUnavailable: the adapter cannot reach the store. Fatal; abort run.
	ErrRepoUnavailable = errors.New("xrefcore: repo unavailable")

	// ErrBlobMissing: hash known to a tag tree but content unretrievable.
	// Local to the affected blob; the run continues.
	ErrBlobMissing = errors.New("xrefcore: blob missing")

	// ErrExtractorFailed: the tags tool or lexer errored or timed out.
	// Local to the affected blob/pass; the run continues.
	ErrExtractorFailed = errors.New("xrefcore: extractor failed")

	// ErrDatabaseBusy: write contention or a transient store failure.
	// Retried with bounded backoff; escalates to fatal after the budget.
	ErrDatabaseBusy = errors.New("xrefcore: database busy")

	// ErrDatabaseCorrupt: an invariant violation was detected. Fatal; no
	// recovery attempted.
	ErrDatabaseCorrupt = errors.New("xrefcore: database corrupt")

	// ErrTagAborted: cancellation. The tag is left un-indexed and is
	// retriable on a later run.
	ErrTagAborted = errors.New("xrefcore: tag aborted")
)
