package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	url   string
	token string
}

// NewRootCmd builds the syncctl command tree. SYNC_API_URL and SYNC_TOKEN
// supply flag defaults.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "syncctl",
		Short: "syncctl drives PASS synchronization jobs on a facilitysync API",
		Long: `syncctl is the command-line interface for facilitysync.

Common workflows:

  Issue an operator token:
    syncctl token --subject ops --role operator

  Sync every cycle of a facility and wait for the job:
    syncctl sync cycles nsls2 --wait

  Check a job:
    syncctl status <job-id>`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.url, "url", envOr("SYNC_API_URL", "http://localhost:8080"), "facilitysync API URL")
	root.PersistentFlags().StringVarP(&opts.token, "token", "t", os.Getenv("SYNC_TOKEN"), "bearer token for sync endpoints")

	root.AddCommand(newTokenCmd())
	root.AddCommand(newSyncCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	return root
}

func (o *rootOptions) client() *APIClient {
	return NewAPIClient(o.url, o.token)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
