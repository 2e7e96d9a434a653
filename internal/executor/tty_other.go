//go:build !unix

package executor

import (
	"errors"
	"io"
	"os/exec"
)

func runWithTTY(*exec.Cmd, io.Writer, io.Writer) (error, error) {
	return nil, errors.New("tty stdout is not supported on this platform")
}
