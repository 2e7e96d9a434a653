package sweep

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ShellBuilder runs the configured build command through the shell.
type ShellBuilder struct {
	Shell   string
	Command string
}

func (b ShellBuilder) Build(ctx context.Context) (string, error) {
	shell := b.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	out, err := exec.CommandContext(ctx, shell, "-c", b.Command).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", b.Command, err)
	}
	return string(out), nil
}

// commitID returns the current git HEAD, or "" outside a repository.
func commitID(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// copyExecutable copies the build artifact to dst with the exec bit set.
func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	return out.Close()
}
