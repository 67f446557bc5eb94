//go:build !windows

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
)

const (
	shellOutputLimit = 64 * 1024
	shellDrainWait   = time.Second
)

// runShell runs args joined as one line under `sh -c` attached to a pty, so
// tools that check for a terminal behave as they would interactively.
// Output from a pty merges stdout and stderr.
func runShell(ctx context.Context, args []string) (Output, error) {
	line := strings.TrimSpace(strings.Join(args, " "))
	if line == "" {
		return Output{ExitCode: 2, Stderr: "usage: shell <command line>"}, nil
	}

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", line) // #nosec G204
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setctty: true, Setsid: true}

	ptm, err := pty.Start(cmd)
	if err != nil {
		return Output{}, err
	}
	defer ptm.Close()

	buf := &capWriter{limit: shellOutputLimit}
	copied := make(chan struct{})
	go func() {
		// The pty returns EIO once the child exits.
		_, _ = io.Copy(buf, ptm)
		close(copied)
	}()

	waitErr := cmd.Wait()
	select {
	case <-copied:
	case <-time.After(shellDrainWait):
		// A background child may still hold the pty open.
		_ = ptm.Close()
		<-copied
	}

	out := Output{Stdout: strings.ReplaceAll(buf.String(), "\r\n", "\n")}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			if out.ExitCode < 0 {
				out.ExitCode = exitHandlerFault
				out.Stderr = waitErr.Error()
			}
			return out, nil
		}
		return out, waitErr
	}
	return out, nil
}

// capWriter keeps the first limit bytes and discards the rest.
type capWriter struct {
	buf   bytes.Buffer
	limit int
}

func (w *capWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}

func (w *capWriter) String() string {
	return w.buf.String()
}
