//go:build unix

package executor

import (
	"io"
	"os/exec"

	"github.com/creack/pty"
)

// runWithTTY attaches the child's stdout to a pseudo-terminal and copies
// everything it prints into out (and live, if set). Stdin and stderr are
// left as configured on cmd.
func runWithTTY(cmd *exec.Cmd, out io.Writer, live io.Writer) (waitErr, startErr error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, err
	}
	defer ptmx.Close()

	pty.Setsize(ptmx, &pty.Winsize{Rows: 40, Cols: 160})

	cmd.Stdout = tty
	if err := cmd.Start(); err != nil {
		tty.Close()
		return nil, err
	}
	// The child holds its own copy; ours must go so reads see EOF/EIO.
	tty.Close()

	dst := out
	if live != nil {
		dst = io.MultiWriter(out, live)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Linux reports EIO once the child closes its end; that is EOF here.
		io.Copy(dst, ptmx)
	}()

	waitErr = cmd.Wait()
	<-done
	return waitErr, nil
}
