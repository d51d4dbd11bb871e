package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
)

func (cli *commandLine) addLearnerCmd() *cobra.Command {
	var name, email, role, managerID string
	cmd := &cobra.Command{
		Use:   "addlearner",
		Short: "Create a learner, or reactivate and update the one with this email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cli.addLearner(cmd.Context(), name, email, role, managerID)
			if err != nil {
				return err
			}
			return cli.printJSON(l)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", learner.RoleAdmin, "one of admin, manager, instructor, learner")
	cmd.Flags().StringVar(&managerID, "manager", "", "id of the learner's manager")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addLearner updates or creates a learner.Learner.
func (cli *commandLine) addLearner(ctx context.Context, name, email, role, managerID string) (learner.Learner, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	nl := learner.NewLearner{Name: name, Email: email, Role: role, ManagerID: managerID}
	if nl.Name == "" {
		nl.Name = email
	}
	if err := nl.Validate(cli.validate); err != nil {
		return learner.Learner{}, err
	}

	existing, err := cli.learnerSvc.GetByEmail(ctx, nl.Email)
	if err != nil {
		if errors.Cause(err) != learner.ErrNotFound {
			return learner.Learner{}, err
		}
		return cli.learnerSvc.Create(ctx, nl)
	}

	active := true
	ul := learner.UpdateLearner{Role: nl.Role, IsActive: &active}
	if name != "" {
		ul.Name = nl.Name
	}
	if managerID != "" {
		mid := core.CleanString(managerID)
		ul.ManagerID = &mid
	}
	return cli.learnerSvc.Update(ctx, existing.ID, ul)
}
