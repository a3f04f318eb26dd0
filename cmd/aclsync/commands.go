// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/aclsync/lib/acl"
	"github.com/bureau-foundation/aclsync/lib/aclsync"
	"github.com/bureau-foundation/aclsync/lib/cluster"
	"github.com/bureau-foundation/aclsync/lib/config"
	"github.com/bureau-foundation/aclsync/lib/converge"
	"github.com/bureau-foundation/aclsync/lib/process"
	"github.com/bureau-foundation/aclsync/lib/service"
	"github.com/bureau-foundation/aclsync/lib/verdict"
)

// connectionFlags are shared by every command that talks to the
// cluster.
type connectionFlags struct {
	configPath string
	user       string
	logLevel   string
	timeout    time.Duration
}

func (f *connectionFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "path to aclsync.yaml (default: $"+config.EnvVar+")")
	flagSet.StringVar(&f.user, "user", os.Getenv("USER"), "principal the calls are made as")
	flagSet.StringVar(&f.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, or error")
	flagSet.DurationVar(&f.timeout, "timeout", 0, "convergence timeout (default: from config)")
}

// scopeFlags select the scope of a change or check. No flags means
// the global scope.
type scopeFlags struct {
	namespace string
	table     string
	family    string
	qualifier string
}

func (f *scopeFlags) register(flagSet *pflag.FlagSet, withNamespace bool) {
	if withNamespace {
		flagSet.StringVar(&f.namespace, "namespace", "", "namespace scope")
	}
	flagSet.StringVar(&f.table, "table", "", "table scope")
	flagSet.StringVar(&f.family, "family", "", "column family within --table")
	flagSet.StringVar(&f.qualifier, "qualifier", "", "column qualifier within --family")
}

func (f *scopeFlags) scope() (acl.Scope, error) {
	switch {
	case f.namespace != "" && f.table != "":
		return acl.Scope{}, fmt.Errorf("--namespace and --table are mutually exclusive")
	case f.table == "" && (f.family != "" || f.qualifier != ""):
		return acl.Scope{}, fmt.Errorf("--family and --qualifier require --table")
	case f.namespace != "":
		return acl.NamespaceScope(f.namespace), nil
	case f.table != "":
		return acl.TableScope(f.table, f.family, f.qualifier), nil
	}
	return acl.GlobalScope(), nil
}

func (a *app) connect(flags *connectionFlags) (*aclsync.Coordinator, error) {
	if flags.user == "" {
		return nil, fmt.Errorf("--user is required")
	}

	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := process.NewLogger(a.stderr, flags.logLevel)
	if err != nil {
		return nil, err
	}

	options := converge.Options{
		Timeout:      cfg.Convergence.Timeout,
		PollInterval: cfg.Convergence.PollInterval,
		NodeTimeout:  cfg.Convergence.NodeTimeout,
	}
	if flags.timeout > 0 {
		options.Timeout = flags.timeout
	}

	directory := cluster.NewDirectory(cfg.Cluster.ACLNode, cfg.Members()...)
	return aclsync.New(aclsync.Config{
		Invoker:     service.NewInvoker(service.NewSocketProvider(directory), flags.user, logger),
		Locator:     directory,
		Membership:  directory.Membership(),
		Convergence: options,
		Logger:      logger,
	}), nil
}

func (a *app) changeCommand(name string) *Command {
	kind := aclsync.ChangeGrant
	summary := "Grant actions to a principal and wait for every node to apply it"
	if name == "revoke" {
		kind = aclsync.ChangeRevoke
		summary = "Revoke actions from a principal and wait for every node to apply it"
	}

	var (
		connection connectionFlags
		scope      scopeFlags
		principal  string
	)
	return &Command{
		Name:    name,
		Summary: summary,
		Usage:   "aclsync " + name + " --principal P [--namespace N | --table T [--family F] [--qualifier Q]] ACTION...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			connection.register(flagSet)
			scope.register(flagSet, true)
			flagSet.StringVar(&principal, "principal", "", "user or @group receiving the change (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if principal == "" {
				return fmt.Errorf("--principal is required")
			}
			target, err := scope.scope()
			if err != nil {
				return err
			}
			actions, err := acl.ParseActions(args)
			if err != nil {
				return err
			}
			coordinator, err := a.connect(&connection)
			if err != nil {
				return err
			}
			request := acl.PermissionChangeRequest{Principal: principal, Scope: target, Actions: actions}
			if err := coordinator.Apply(a.ctx, kind, request); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s on %s: converged\n", kind, principal, target)
			return nil
		},
	}
}

func (a *app) checkCommand() *Command {
	var (
		connection connectionFlags
		scope      scopeFlags
		principal  string
	)
	return &Command{
		Name:    "check",
		Summary: "Check whether a principal holds actions on the global scope or a table",
		Usage:   "aclsync check [--principal P] [--table T [--family F] [--qualifier Q]] ACTION...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			connection.register(flagSet)
			scope.register(flagSet, false)
			flagSet.StringVar(&principal, "principal", "", "principal to check as (default: --user)")
			return flagSet
		},
		Run: func(args []string) error {
			if _, err := scope.scope(); err != nil {
				return err
			}
			actions, err := acl.ParseActions(args)
			if err != nil {
				return err
			}
			if principal != "" {
				connection.user = principal
			}
			coordinator, err := a.connect(&connection)
			if err != nil {
				return err
			}

			if scope.table != "" {
				err = coordinator.CheckTablePermissions(a.ctx, scope.table, scope.family, scope.qualifier, actions...)
			} else {
				err = coordinator.CheckGlobalPermissions(a.ctx, actions...)
			}
			outcome, unexpected := verdict.Classify(nil, err, verdict.Options{})
			if unexpected != nil {
				return unexpected
			}
			if outcome == verdict.Denied {
				return fmt.Errorf("%s: %w", outcome, err)
			}
			fmt.Fprintln(a.stdout, outcome)
			return nil
		},
	}
}

func (a *app) versionsCommand() *Command {
	var connection connectionFlags
	return &Command{
		Name:    "versions",
		Summary: "Print every node's policy version and digest",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("versions", pflag.ContinueOnError)
			connection.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			coordinator, err := a.connect(&connection)
			if err != nil {
				return err
			}
			statuses, err := coordinator.Status(a.ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "NODE\tVERSION\tDIGEST")
			for _, status := range statuses {
				if status.Err != nil {
					fmt.Fprintf(tw, "%s\t-\t%v\n", status.Node, status.Err)
					continue
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", status.Node, status.Version, status.Digest.Short())
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if !aclsync.Agree(statuses) {
				return fmt.Errorf("nodes disagree on the policy")
			}
			return nil
		},
	}
}
