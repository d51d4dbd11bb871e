package main

import (
	"context"

	"github.com/spf13/cobra"
)

func (cli *commandLine) readinessCmd() *cobra.Command {
	var team bool
	cmd := &cobra.Command{
		Use:   "readiness LEARNER_ID",
		Short: "Print a learner's readiness, or their team's with --team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if team {
				report, err := cli.readinessSvc.TeamReport(ctx, args[0])
				if err != nil {
					return err
				}
				return cli.printJSON(report)
			}
			snap, err := cli.readinessSvc.ComputeForLearner(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.printJSON(snap)
		},
	}
	cmd.Flags().BoolVar(&team, "team", false, "report on the learner's direct reports")
	return cmd
}
