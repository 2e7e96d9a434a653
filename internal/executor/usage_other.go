//go:build !unix

package executor

import "errors"

type ChildUsage struct{}

func (ChildUsage) Sample() (Usage, error) {
	return Usage{}, errors.New("child resource usage is not available on this platform")
}
