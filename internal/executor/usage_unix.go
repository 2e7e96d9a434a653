//go:build unix

package executor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ChildUsage samples getrusage(RUSAGE_CHILDREN). The reading covers every
// descendant that has been waited for, including grandchildren the solver
// itself spawned and reaped.
type ChildUsage struct{}

func (ChildUsage) Sample() (Usage, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_CHILDREN, &ru); err != nil {
		return Usage{}, fmt.Errorf("getrusage: %w", err)
	}
	return Usage{
		User:   time.Duration(unix.TimevalToNsec(ru.Utime)),
		System: time.Duration(unix.TimevalToNsec(ru.Stime)),
	}, nil
}
