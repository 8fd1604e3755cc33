package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"time"

	"github.com/enverbisevac/dmutex/lock"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const bootTimeout = 10 * time.Second

// exitTimeout is returned when the lock could not be acquired in time
// (EX_TEMPFAIL from sysexits.h).
const exitTimeout = 75

// exitError ends the process with code. A nil err prints nothing.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}

type app struct {
	v       *viper.Viper
	out     io.Writer
	errOut  io.Writer
	log     logr.Logger
	service *lock.Service
	close   func() error
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		v:      viper.New(),
		out:    out,
		errOut: errOut,
		log:    logr.Discard(),
		close:  func() error { return nil },
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dmutex",
		Short: "distributed mutex",
		Long: `dmutex serializes work across processes and hosts.

A lock is a record in a shared store (redis, postgres or sqlite) holding the
identity of its owner. Only the owner removes it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("backend", backendRedis, "store backend (redis, postgres, sqlite)")
	flags.String("endpoints", "localhost:6379", "comma separated redis addresses")
	flags.String("dsn", "", "redis URL, postgres DSN or sqlite file path")
	flags.String("namespace", "", "prefix for every lock key")
	flags.Duration("poll-interval", lock.DefaultPollInterval, "wait between acquisition attempts")
	flags.Duration("timeout", 0, "give up acquiring after this long (0 waits forever)")
	flags.Duration("ttl", 0, "expire lock records after this long (0 never expires)")
	flags.CountP("verbose", "v", "log verbosity, repeat for more")

	root.AddCommand(a.runCmd(), a.holderCmd(), a.releaseCmd())
	return root
}

// setup connects the store before any subcommand runs. A store that cannot
// be reached fails the command.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	initConfig(a.v)
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c := loadConfig(a.v)

	stdr.SetVerbosity(c.Verbosity)
	a.log = stdr.New(stdlog.New(a.errOut, "", stdlog.LstdFlags)).WithName("dmutex")
	ctx := logr.NewContext(cmd.Context(), a.log)
	cmd.SetContext(ctx)

	bootCtx, cancel := context.WithTimeout(ctx, bootTimeout)
	defer cancel()

	store, closeStore, err := openStore(bootCtx, c)
	if err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	a.close = closeStore

	a.service = lock.New(store, c.lockOptions()...)
	if err := a.service.Ping(bootCtx); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	a.log.V(1).Info("store connected", "backend", c.Backend, "namespace", c.Namespace)
	return nil
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); cerr != nil {
		a.log.Error(cerr, "failed to close store")
	}
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.err != nil {
			fmt.Fprintln(stderr, "Error:", exit.err)
		}
		return exit.code
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}
