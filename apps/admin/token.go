package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	echoapi "github.com/trezcool/tayari/apps/api/echo"
)

func (cli *commandLine) tokenCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an API token for a learner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := cli.token(cmd.Context(), email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cli.out, tok)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the learner")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) token(ctx context.Context, email string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := cli.learnerSvc.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if !l.IsActive {
		return "", fmt.Errorf("learner %s is inactive", l.Email)
	}
	return echoapi.GenerateToken(echoapi.GetLearnerClaims(l, cli.conf), cli.conf.SecretKey)
}
