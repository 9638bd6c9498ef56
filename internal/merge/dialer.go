package merge

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// ProcessDialer starts the merge helper as a child process per call and
// speaks frames over its stdin/stdout, the way a native-messaging host is
// launched. Closing the channel terminates the helper.
type ProcessDialer struct {
	Command string
	Args    []string
}

// Dial starts one helper process and returns its stdio as the channel.
func (d *ProcessDialer) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	cmd := exec.CommandContext(ctx, d.Command, d.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open helper stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start merge helper: %w", err)
	}

	return &processConn{cmd: cmd, in: stdin, out: stdout}, nil
}

type processConn struct {
	cmd *exec.Cmd
	in  io.WriteCloser
	out io.ReadCloser
}

func (c *processConn) Read(p []byte) (int, error)  { return c.out.Read(p) }
func (c *processConn) Write(p []byte) (int, error) { return c.in.Write(p) }

func (c *processConn) Close() error {
	c.in.Close()
	c.out.Close()
	if c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	return c.cmd.Wait()
}
