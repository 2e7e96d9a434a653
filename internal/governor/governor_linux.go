//go:build linux

package governor

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

const infinity = math.MaxUint64

func setAddressSpace(limit uint64) error {
	rl := unix.Rlimit{Cur: limit, Max: limit}
	if err := unix.Setrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return fmt.Errorf("setrlimit RLIMIT_AS: %w", err)
	}
	return nil
}

func getAddressSpace() (Limit, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rl); err != nil {
		return Limit{}, fmt.Errorf("getrlimit RLIMIT_AS: %w", err)
	}
	return Limit{Soft: rl.Cur, Hard: rl.Max}, nil
}
