package coordinator

import (
	"context"

	"github.com/xrefdb/elixir/pkg/xrefcore"
)

// finalize writes the tag's tree and sets its indexed flag in a single
// batch, so a crash between the two is impossible to observe.
func (c *Coordinator) finalize(ctx context.Context, tag string, tree []xrefcore.TreeEntryRecord) error {
	return xrefcore.RetryBatch(ctx, c.DB, 5, func(b *xrefcore.Batch) error {
		if err := b.Put(ctx, xrefcore.MapTagTree, []byte(tag), xrefcore.EncodeTagTree(tree)); err != nil {
			return err
		}
		return xrefcore.MarkTagIndexed(ctx, b, tag)
	})
}
