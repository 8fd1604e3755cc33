package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run KEY -- COMMAND [ARGS...]",
		Short: "Run a command while holding the lock for KEY",
		Long: `Run acquires the lock for KEY, runs COMMAND and releases the lock when
COMMAND exits. The exit status of COMMAND is passed through. If the lock
cannot be acquired within --timeout, COMMAND does not run and dmutex exits
with status 75.`,
		Args: runArgs,
		RunE: a.runCommand,
	}
}

// runArgs requires exactly KEY before "--" and a command after it, so the
// command's own flags are never parsed as dmutex flags.
func runArgs(cmd *cobra.Command, args []string) error {
	if cmd.ArgsLenAtDash() != 1 || len(args) < 2 {
		return fmt.Errorf("usage: %s", cmd.UseLine())
	}
	return nil
}

func (a *app) runCommand(cmd *cobra.Command, args []string) error {
	key, argv := args[0], args[cmd.ArgsLenAtDash():]

	err := a.service.Run(cmd.Context(), key, func(ctx context.Context) error {
		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = a.out
		c.Stderr = a.errOut
		return c.Run()
	})

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		if code < 0 {
			return &exitError{code: 1, err: err}
		}
		return &exitError{code: code}
	case lock.IsTimeout(err):
		return &exitError{code: exitTimeout, err: err}
	default:
		return err
	}
}
