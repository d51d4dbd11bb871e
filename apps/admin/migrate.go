package main

import (
	"context"
	"errors"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/trezcool/tayari/fs"
)

var (
	gooseRunFunc = goose.RunContext // mockable

	errNoSQLDatabase = errors.New("migrations need the postgres engine")
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate COMMAND [ARGS...]",
		Short:              "Run goose migration commands (up, down, status, ...)",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(cmd.Context(), args)
		},
	}
}

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errNoSQLDatabase
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(ctx, args[0], cli.db, appfs.MigrationsDir, arguments...)
}
