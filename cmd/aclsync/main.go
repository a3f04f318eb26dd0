// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/aclsync/lib/process"
	"github.com/bureau-foundation/aclsync/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &app{ctx: ctx, stdout: os.Stdout, stderr: os.Stderr}
	return cli.root().Execute(args, os.Stderr)
}

// app carries what every command needs: the process context and the
// output streams. Tests substitute buffers.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

func (a *app) root() *Command {
	return &Command{
		Name:    "aclsync",
		Summary: "Grant, revoke, and check permissions across an aclsync cluster",
		Subcommands: []*Command{
			a.changeCommand("grant"),
			a.changeCommand("revoke"),
			a.checkCommand(),
			a.versionsCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(a.stdout, "aclsync %s\n", version.Info())
					return nil
				},
			},
		},
	}
}
