package expand

import (
	"context"

	"github.com/p-arndt/sweeper/internal/executor"
	"github.com/p-arndt/sweeper/internal/runspec"
	"github.com/stretchr/testify/mock"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, spec runspec.Spec) (*executor.Result, error) {
	args := m.Called(ctx, spec)
	if fn, ok := args.Get(0).(func(context.Context, runspec.Spec) *executor.Result); ok {
		return fn(ctx, spec), args.Error(1)
	}
	if res := args.Get(0); res != nil {
		return res.(*executor.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

// echoResult returns a runner response that succeeds with the spec it got.
func echoResult(ctx context.Context, spec runspec.Spec) *executor.Result {
	return &executor.Result{Spec: spec}
}
