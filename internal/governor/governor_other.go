//go:build !linux

package governor

import (
	"errors"
	"math"
)

const infinity = math.MaxUint64

var errUnsupported = errors.New("RLIMIT_AS is only supported on linux")

func setAddressSpace(uint64) error { return errUnsupported }

func getAddressSpace() (Limit, error) { return Limit{}, errUnsupported }
