/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/wiltonlazary/jdwpcore/internal/dapevents"
	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
	"github.com/wiltonlazary/jdwpcore/internal/simvm"
	"github.com/wiltonlazary/jdwpcore/internal/telemetry"
)

const (
	lineBreakpointRequestID      = 1
	exceptionBreakpointRequestID = 2

	dialTimeout     = 30 * time.Second
	metricsInterval = 10 * time.Second
)

var errInvalidFlag = errors.New("invalid flag value")

type runFlags struct {
	agent          string
	threads        int
	iterations     int
	line           int
	steps          int
	exceptions     bool
	suspendPolicy  string
	resumeDelay    time.Duration
	statementDelay time.Duration
	metrics        bool
}

func NewRunCommand(log logr.Logger) *cobra.Command {
	flags := &runFlags{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the simulated program and reports debugger events",
		Long: `Runs the simulated program and reports debugger events.

	With server=y in the agent options, events are written to standard output as Debug Adapter Protocol messages.
	With server=n, jdwpsim connects to the debugger front end listening at the agent address.
	With suspend=y, every thread stops before running any guest code.`,
		RunE: runSimulation(log, flags),
		Args: cobra.NoArgs,
	}

	fs := runCmd.Flags()
	fs.StringVar(&flags.agent, "agent", "", "JDWP agent options, e.g. 'transport=dt_socket,server=y,suspend=n,address=8000'")
	fs.IntVar(&flags.threads, "threads", 2, "Number of guest threads")
	fs.IntVar(&flags.iterations, "iterations", 3, "Number of times each thread runs the program; zero or less runs until interrupted")
	fs.IntVar(&flags.line, "line", 31, "Line of "+demoSource+" to set a breakpoint at; zero or less sets no line breakpoint")
	fs.IntVar(&flags.steps, "steps", 0, "Number of lines to step over after each breakpoint hit")
	fs.BoolVar(&flags.exceptions, "exceptions", false, "Stop when a RuntimeException is thrown")
	fs.StringVar(&flags.suspendPolicy, "suspend-policy", "thread", "Suspend policy of the breakpoints: 'none', 'thread', or 'all'")
	fs.DurationVar(&flags.resumeDelay, "resume-delay", 500*time.Millisecond, "How long a stopped thread stays suspended")
	fs.DurationVar(&flags.statementDelay, "statement-delay", 0, "How long it takes to execute one line")
	fs.BoolVar(&flags.metrics, "metrics", false, "Write debugger metrics to standard error")

	return runCmd
}

func runSimulation(log logr.Logger, flags *runFlags) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		log = log.WithName("run")

		opts, err := jdwp.ParseOptions(flags.agent)
		if err != nil {
			return err
		}
		policy, err := parseSuspendPolicy(flags.suspendPolicy)
		if err != nil {
			return err
		}
		if flags.threads < 1 {
			return fmt.Errorf("%w: at least one thread is required", errInvalidFlag)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		var metricsOut io.Writer
		if flags.metrics {
			metricsOut = cmd.ErrOrStderr()
		}
		metricsSystem, err := telemetry.NewMetricsSystem(metricsOut, metricsInterval)
		if err != nil {
			return fmt.Errorf("could not set up metrics: %w", err)
		}
		defer func() {
			_ = metricsSystem.Shutdown(context.Background())
		}()

		transport, err := openTransport(ctx, cmd, opts, log)
		if err != nil {
			return err
		}
		listener := dapevents.NewListener(ctx, transport, log.WithName("dap"))
		defer func() {
			_ = listener.Close()
		}()

		var ctrl *jdwp.Controller
		var resumer *autoResumer

		vmConfig := simvm.Config{
			Logger:         log.WithName("vm"),
			StatementDelay: flags.statementDelay,
		}
		if opts.Suspend {
			vmConfig.ThreadStarted = func(threadCtx context.Context, t *simvm.Thread) {
				entryErr := ctrl.ImmediateSuspend(threadCtx, t, jdwp.SuspendPolicyEventThread, func() error {
					return resumer.ThreadEntry(t)
				})
				if entryErr != nil {
					log.Error(entryErr, "Could not suspend thread on entry", "Thread", t.Name())
				}
			}
		}
		vm := simvm.New(vmConfig)
		program := defineDemoProgram(vm)

		resumer = newAutoResumer(ctx, listener, vm, flags.resumeDelay, flags.steps, log.WithName("resume"))
		ctrl, err = jdwp.NewController(ctx, jdwp.Config{
			Engine:   vm,
			Listener: resumer,
			Options:  opts,
			Logger:   log.WithName("jdwp"),
			Meter:    metricsSystem.Meter(),
			FatalErrorHandler: func(fatalErr error) {
				if dapevents.IsConnectionError(fatalErr) {
					log.Info("Debugger front end is gone, stopping", "Reason", fatalErr.Error())
				} else {
					log.Error(fatalErr, "Debugging session failed")
				}
				cancel()
			},
		})
		if err != nil {
			return err
		}
		resumer.attach(ctrl)
		vm.SetSuspendedCallback(ctrl.OnSuspend)

		if err = submitBreakpoints(ctrl, program, flags, policy); err != nil {
			return err
		}

		log.Info("Starting simulated program", "Agent", opts.String(), "Threads", flags.threads, "SessionID", ctrl.SessionID())
		for i := range flags.threads {
			vm.StartThread(ctx, fmt.Sprintf("worker-%d", i+1), program.main, flags.iterations)
		}

		finished := make(chan struct{})
		go func() {
			vm.Wait()
			close(finished)
		}()
		select {
		case <-finished:
			log.Info("Simulated program finished")
		case <-ctx.Done():
			log.Info("Simulated program interrupted")
		}

		<-ctrl.DisposeDebugger(false)
		cancel()
		<-finished

		return listener.Close()
	}
}

func submitBreakpoints(ctrl *jdwp.Controller, program demoProgram, flags *runFlags, policy jdwp.SuspendPolicy) error {
	if flags.line > 0 {
		info := jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(lineBreakpointRequestID), jdwp.LineBreakpoint, policy)
		ctrl.SubmitLineBreakpoint(jdwp.DebuggerCommand{
			Kind:           jdwp.SubmitLineBreakpoint,
			SourceLocation: jdwp.SourceLocation{Source: demoSource, Line: flags.line},
			Info:           info,
		})
		if len(info.Breakpoints()) == 0 {
			return fmt.Errorf("%w: there is no line %d in %s", errInvalidFlag, flags.line, demoSource)
		}
	}

	if flags.exceptions {
		info := jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(exceptionBreakpointRequestID), jdwp.ExceptionBreakpoint, policy)
		info.Klass = program.runtimeException
		info.Caught = true
		info.Uncaught = true
		ctrl.SubmitExceptionBreakpoint(jdwp.DebuggerCommand{Kind: jdwp.SubmitExceptionBreakpoint, Info: info})
	}

	return nil
}

func openTransport(ctx context.Context, cmd *cobra.Command, opts jdwp.Options, log logr.Logger) (dapevents.Transport, error) {
	if opts.Server {
		return dapevents.NewStdioTransport(asReadCloser(cmd.InOrStdin()), asWriteCloser(cmd.OutOrStdout())), nil
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()
	return dapevents.Dial(dialCtx, opts.Address(), log)
}

func parseSuspendPolicy(value string) (jdwp.SuspendPolicy, error) {
	switch strings.ToLower(value) {
	case "none":
		return jdwp.SuspendPolicyNone, nil
	case "thread":
		return jdwp.SuspendPolicyEventThread, nil
	case "all":
		return jdwp.SuspendPolicyAll, nil
	default:
		return jdwp.SuspendPolicyNone, fmt.Errorf("%w: unknown suspend policy '%s'", errInvalidFlag, value)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

func asReadCloser(r io.Reader) io.ReadCloser {
	if rc, isReadCloser := r.(io.ReadCloser); isReadCloser {
		return rc
	}
	return io.NopCloser(r)
}

func asWriteCloser(w io.Writer) io.WriteCloser {
	if wc, isWriteCloser := w.(io.WriteCloser); isWriteCloser {
		return wc
	}
	return nopWriteCloser{w}
}
