package sweep

import (
	"context"
	"time"

	"github.com/p-arndt/sweeper/internal/store"
)

// Builder compiles the solver before a sweep starts.
type Builder interface {
	Build(ctx context.Context) (output string, err error)
}

// ResultStore abstracts the results database operations the driver needs.
type ResultStore interface {
	CreateSweep(sw *store.Sweep) error
	FinishSweep(id string, status string, finishedAt time.Time) error
	RecordRun(r *store.Run) error
}
