package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"facilitysync/internal/auth"
	"facilitysync/internal/rbac"
)

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed API token",
		Long:  `Sign a bearer token with the API's SYNC_TOKEN_SECRET. Operators and admins may start sync jobs; viewers may not.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("token secret is required (--secret or SYNC_TOKEN_SECRET)")
			}
			if subject == "" {
				return errors.New("--subject is required")
			}
			if normalized := rbac.Normalize(role); string(normalized) != role {
				return errors.New("--role must be one of viewer, operator, admin")
			}
			token, err := auth.Issue([]byte(secret), subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("SYNC_TOKEN_SECRET"), "signing secret")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&role, "role", string(rbac.RoleOperator), "viewer, operator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
