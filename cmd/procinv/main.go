// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/procinv/lib/config"
	"github.com/bureau-foundation/procinv/lib/process"
	"github.com/bureau-foundation/procinv/lib/service"
	"github.com/bureau-foundation/procinv/lib/version"
)

const binaryName = "procinv"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := app.run(ctx, os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// app holds the streams and the resolved client of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	client *service.Client
}

// command is one subcommand of the CLI.
type command struct {
	name    string
	summary string
	usage   string

	// flags registers the command's flags. Nil means no flags.
	flags func(*pflag.FlagSet)

	run func(ctx context.Context, args []string) error
}

func (a *app) commands() []*command {
	return []*command{
		a.trackCommand(),
		a.updateCommand(),
		a.terminateCommand(),
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	var (
		configPath  string
		address     string
		showVersion bool
	)
	global := pflag.NewFlagSet(binaryName, pflag.ContinueOnError)
	global.SetOutput(io.Discard)
	global.SetInterspersed(false)
	global.StringVar(&configPath, "config", "", "path to YAML config file (default: $"+config.EnvConfig+")")
	global.StringVar(&address, "address", "", "server host:port (default: client.address, then server.listen_address)")
	global.BoolVar(&showVersion, "version", false, "print version information and exit")
	global.BoolP("help", "h", false, "show help")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			a.printHelp(global)
			return nil
		}
		return usageError("%v", err)
	}
	if showVersion {
		version.Print(binaryName)
		return nil
	}
	if help, _ := global.GetBool("help"); help || global.NArg() == 0 {
		a.printHelp(global)
		if global.NArg() == 0 && !help {
			return usageError("command required")
		}
		return nil
	}

	name := global.Arg(0)
	var selected *command
	for _, candidate := range a.commands() {
		if candidate.name == name {
			selected = candidate
			break
		}
	}
	if selected == nil {
		return usageError("unknown command %q\n\nRun '%s --help' for usage.", name, binaryName)
	}

	flagSet := pflag.NewFlagSet(binaryName+" "+selected.name, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	if selected.flags != nil {
		selected.flags(flagSet)
	}
	if err := flagSet.Parse(global.Args()[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			a.printCommandHelp(selected, flagSet)
			return nil
		}
		return usageError("%s: %v\n\nUsage: %s", selected.name, err, selected.usage)
	}

	if configPath == "" {
		configPath = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if address == "" {
		address = cfg.ClientAddress()
	}
	a.client = service.NewClient(address, version.Description(cfg.Client.Description, binaryName))

	return selected.run(ctx, flagSet.Args())
}

func usageError(format string, args ...any) error {
	return &process.ExitError{Code: 2, Err: fmt.Errorf(format, args...)}
}

func (a *app) printHelp(global *pflag.FlagSet) {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%s talks to a process inventory server.\n\nUsage:\n  %s [global flags] <command> [flags] [args]\n\nCommands:\n", binaryName, binaryName)
	for _, entry := range a.commands() {
		fmt.Fprintf(&builder, "  %-10s %s\n", entry.name, entry.summary)
	}
	builder.WriteString("\nGlobal flags:\n")
	builder.WriteString(global.FlagUsages())
	io.WriteString(a.stderr, builder.String())
}

func (a *app) printCommandHelp(selected *command, flagSet *pflag.FlagSet) {
	fmt.Fprintf(a.stderr, "%s\n\nUsage:\n  %s\n", selected.summary, selected.usage)
	if usages := flagSet.FlagUsages(); usages != "" {
		fmt.Fprintf(a.stderr, "\nFlags:\n%s", usages)
	}
}
