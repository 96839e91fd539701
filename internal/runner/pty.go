package runner

import (
	"context"
	"io"
	"os/exec"
	"syscall"

	"github.com/creack/pty"

	"github.com/agusx1211/hatloop/internal/recording"
	"github.com/agusx1211/hatloop/internal/stream"
)

const (
	ptyRows = 24
	ptyCols = 200
)

// runPTY launches cmd under a pseudo-terminal. Stdout and stderr arrive
// merged on the PTY master; each line is ANSI-stripped before parsing.
func (r *Runner) runPTY(ctx context.Context, cmd *exec.Cmd, parser stream.Parser, rec *recording.Recorder, observe func(stream.Event)) error {
	attrs := &syscall.SysProcAttr{Setpgid: true}
	cmd.SysProcAttr = attrs

	ptmx, err := pty.StartWithAttrs(cmd, nil, attrs)
	if err != nil {
		return err
	}
	defer ptmx.Close()
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: ptyRows, Cols: ptyCols})

	kill := func() {
		if cmd.Process != nil && cmd.Process.Pid > 0 {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}
	stop := context.AfterFunc(ctx, kill)
	defer stop()

	if err := r.transition(StateRunning); err != nil {
		kill()
		_ = cmd.Wait()
		return err
	}

	var src io.Reader = ptmx
	if rec != nil {
		// The raw escape-laden bytes go on the cassette; the flag
		// tells the replayer to strip them the same way readLines
		// does here.
		rec.RecordMeta(recording.MetaPTY, "true")
		src = io.TeeReader(ptmx, rec.WrapWriter(nil, true))
	}
	r.readLines(ctx, src, parser, observe, true)

	// Reading from a closed PTY master returns EIO on Linux; the exit
	// status from Wait is authoritative.
	return cmd.Wait()
}
