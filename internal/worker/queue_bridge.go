package worker

import (
	"context"

	"github.com/fanforge/creator-platform/internal/queue"
)

// QueueHandler returns a queue.Handler that converts consumed records into
// engine records and delegates delivery to the supplied engine. The commit
// callback flushes the consumer group offset.
func QueueHandler(engine *Engine) queue.Handler {
	return func(ctx context.Context, rec *queue.Record) {
		if engine == nil || rec == nil {
			return
		}

		wr := NewRecord(rec.Topic, rec.Partition, rec.Offset, rec.Key, rec.Value, rec.Headers, rec.Commit)
		engine.HandleRecord(ctx, wr)
	}
}
