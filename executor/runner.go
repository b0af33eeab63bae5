package executor

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// Runner 执行外部命令并返回退出码；命令无法启动时返回 error。
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (int, error)
}

// ExecRunner 通过 os/exec 执行命令。
type ExecRunner struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
