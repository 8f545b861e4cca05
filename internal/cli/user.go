package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"postflow/internal/model"
	"postflow/internal/service"
)

func newUserCommand(e *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Aliases: []string{"users"},
		Short:   "Manage accounts",
	}
	cmd.AddCommand(newUserListCommand(e), newUserApproveCommand(e), newUserRoleCommand(e, "promote", model.RoleAdmin), newUserRoleCommand(e, "demote", model.RoleUser))
	return cmd
}

// withAccounts opens the account service for the duration of fn.
func withAccounts(cmd *cobra.Command, e *Env, fn func(svc service.AuthService) error) error {
	svc, closeFn, err := e.Accounts(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}

func newUserListCommand(e *Env) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List accounts, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, e, func(svc service.AuthService) error {
				res, err := svc.ListUsers(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tVERIFIED\tAPPROVED")
				for _, u := range res.Items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n", u.ID, u.Email, u.Name, u.Role, u.EmailVerified, u.Approved)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(res.Items), res.Total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "page size (max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func newUserApproveCommand(e *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <user-id>",
		Short: "Approve an account so it can upload posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, e, func(svc service.AuthService) error {
				u, err := svc.ApproveUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "approved %s <%s>\n", u.Name, u.Email)
				return nil
			})
		},
	}
}

func newUserRoleCommand(e *Env, use string, role model.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: fmt.Sprintf("Set an account's role to %s", role),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, e, func(svc service.AuthService) error {
				u, err := svc.SetRole(cmd.Context(), args[0], role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> is now %s\n", u.Name, u.Email, u.Role)
				return nil
			})
		},
	}
}
