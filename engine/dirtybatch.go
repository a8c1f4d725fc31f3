package engine

import (
	"context"
	"time"

	"github.com/joeycumines/go-microbatch"
)

// DirtyModule is one dirty-module notification: the "/"-joined path of the
// module whose parameter changed.
type DirtyModule struct {
	Path string
}

// DirtyBatcher groups a burst of per-parameter dirty notifications into
// batches handed to a single flush callback, so they can be reported
// together (the engine logs one debug line per batch). It is a diagnostic
// side channel: it does not drive dirty propagation, and duplicate paths
// in a batch are not merged.
type DirtyBatcher struct {
	batcher *microbatch.Batcher[DirtyModule]
}

// NewDirtyBatcher returns a DirtyBatcher that flushes accumulated dirty
// modules to process via onFlush, either once maxSize modules have queued
// or flushInterval has elapsed, whichever comes first.
func NewDirtyBatcher(maxSize int, flushInterval time.Duration, onFlush func(mods []DirtyModule)) *DirtyBatcher {
	b := microbatch.NewBatcher(&microbatch.BatcherConfig{
		MaxSize:        maxSize,
		FlushInterval:  flushInterval,
		MaxConcurrency: 1,
	}, func(_ context.Context, jobs []DirtyModule) error {
		onFlush(jobs)
		return nil
	})
	return &DirtyBatcher{batcher: b}
}

// MarkDirty enqueues a module path for the next batch flush.
func (d *DirtyBatcher) MarkDirty(ctx context.Context, path string) error {
	_, err := d.batcher.Submit(ctx, DirtyModule{Path: path})
	return err
}

// Close stops accepting further dirty notifications and waits for any
// in-flight flush to finish.
func (d *DirtyBatcher) Close() error {
	return d.batcher.Close()
}
