package vault

import (
	"context"
	"time"

	"github.com/gabrielantonyxaviour/jedi-vault/interfaces"
)

// DefaultNodeTimeout bounds one node round trip within a fan-out call.
const DefaultNodeTimeout = 15 * time.Second

// fanout runs op once per node slot, all concurrently, each under its own
// deadline so one slow node never delays the others. It joins when every
// branch has settled and returns per-slot results and errors; it never aborts
// on the first failure.
func fanout[T any](
	ctx context.Context,
	nodes []interfaces.NodeBackend,
	timeout time.Duration,
	op func(ctx context.Context, slot int, node interfaces.NodeBackend) (T, error),
) ([]T, []error) {
	results := make([]T, len(nodes))
	errs := make([]error, len(nodes))

	done := make(chan int, len(nodes))
	for i, node := range nodes {
		go func(slot int, node interfaces.NodeBackend) {
			defer func() { done <- slot }()
			opCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			results[slot], errs[slot] = op(opCtx, slot, node)
		}(i, node)
	}
	for range nodes {
		<-done
	}

	return results, errs
}
