package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/readiness"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf         *core.Config
	db           *sql.DB // nil with the memory engine
	learnerSvc   *learner.Service
	readinessSvc *readiness.Service
	validate     *validator.Validate
	out          io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Tayari administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(cli.migrateCmd())
	root.AddCommand(cli.addLearnerCmd())
	root.AddCommand(cli.tokenCmd())
	root.AddCommand(cli.readinessCmd())
	return root
}

// run expects the program name as first argument, like os.Args.
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.Execute()
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
