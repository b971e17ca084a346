// Command zlock acquires a named distributed lock, runs a subprocess while
// holding it, and releases the lock on exit — a thin wrapper around
// lock.ExclusiveLock for use as a shell utility, per the source protocol's
// "zooky" CLI surface. The hard engineering lives in package lock; this
// command only wires flags, a ZooKeeper connection, and a subprocess.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/z-division/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/lock"
)

// Exit codes distinguish "we never got the lock" from "the subprocess ran
// and failed", so a caller scripting around zlock can tell the two apart.
const (
	exitOK            = 0
	exitAcquireFailed = 2
	exitUsage         = 64
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		servers    []string
		lockRoot   string
		timeoutStr string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "zlock <lock-name> -- <command> [args...]",
		Short: "Acquire a distributed lock, run a command, release on exit.",
		Args:  cobra.MinimumNArgs(2),
	}
	flags := cmd.Flags()
	flags.StringSliceVarP(&servers, "server", "s", []string{"127.0.0.1:2181"}, "ZooKeeper server addresses")
	flags.StringVar(&lockRoot, "lock-root", "", "lock root path (defaults to the library default)")
	flags.StringVar(&timeoutStr, "timeout", "", "acquire timeout, e.g. \"30s\" (default: wait indefinitely)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	exitCode := exitOK
	cmd.RunE = func(cc *cobra.Command, args []string) error {
		lockName := args[0]
		subArgs := args[1:]

		logger := newLogger(verbose)
		defer logger.Sync() //nolint:errcheck

		var timeout *time.Duration
		if timeoutStr != "" {
			d, err := time.ParseDuration(timeoutStr)
			if err != nil {
				return fmt.Errorf("invalid --timeout %q: %w", timeoutStr, err)
			}
			timeout = &d
		}

		conn, events, err := zk.Connect(servers, 10*time.Second)
		if err != nil {
			return fmt.Errorf("connect to zookeeper: %w", err)
		}
		defer conn.Close()
		go drainEvents(events, logger)

		client := zkclient.New(conn, logger)
		l := lock.NewExclusiveLock(client, lockRoot, lockName, lock.WithLogger(logger))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		ok, err := l.Acquire(ctx, timeout)
		if err != nil {
			exitCode = exitAcquireFailed
			return fmt.Errorf("acquire %q: %w", lockName, err)
		}
		if !ok {
			exitCode = exitAcquireFailed
			return fmt.Errorf("acquire %q: timed out", lockName)
		}
		defer func() {
			if _, err := l.Release(context.Background()); err != nil {
				logger.Warn("release failed", zap.Error(err))
			}
		}()

		sub := exec.Command(subArgs[0], subArgs[1:]...)
		sub.Stdin = os.Stdin
		sub.Stdout = os.Stdout
		sub.Stderr = os.Stderr
		if err := sub.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
				return nil
			}
			exitCode = 1
			return err
		}
		exitCode = exitOK
		return nil
	}

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zlock:", err)
		if exitCode == exitOK {
			exitCode = exitUsage
		}
	}
	return exitCode
}

func drainEvents(events <-chan zk.Event, logger *zap.Logger) {
	for evt := range events {
		logger.Debug("zk session event", zap.String("state", evt.State.String()))
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
