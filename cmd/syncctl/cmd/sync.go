package cmd

import (
	"net/url"

	"github.com/spf13/cobra"
)

type syncOptions struct {
	facility string
	cycle    string
	wait     bool
}

func newSyncCmd(root *rootOptions) *cobra.Command {
	opts := &syncOptions{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Start a sync job",
	}
	cmd.PersistentFlags().BoolVar(&opts.wait, "wait", false, "poll until the job finishes")

	proposal := &cobra.Command{
		Use:   "proposal <proposal_id>",
		Short: "Sync one proposal with its safety forms and users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if opts.facility != "" {
				query.Set("facility", opts.facility)
			}
			return startJob(cmd, root, opts, "/sync/proposal/"+url.PathEscape(args[0]), query)
		},
	}
	proposal.Flags().StringVar(&opts.facility, "facility", "", "facility id (API default when empty)")

	proposalTypes := &cobra.Command{
		Use:   "proposal-types <facility>",
		Short: "Sync the proposal type catalogue of a facility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startJob(cmd, root, opts, "/sync/proposal/types/"+url.PathEscape(args[0]), nil)
		},
	}

	cycles := &cobra.Command{
		Use:   "cycles <facility>",
		Short: "Sync every cycle of a facility and its allocated proposals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startJob(cmd, root, opts, "/sync/cycles/"+url.PathEscape(args[0]), nil)
		},
	}

	cycleProposals := &cobra.Command{
		Use:   "cycle-proposals <cycle>",
		Short: "Sync every proposal of a cycle, commissioning included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return startJob(cmd, root, opts, "/sync/proposals/cycle/"+url.PathEscape(args[0]), nil)
		},
	}

	updateCycles := &cobra.Command{
		Use:   "update-cycles <facility>",
		Short: "Link stored proposals to the cycles that allocate them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if opts.cycle != "" {
				query.Set("cycle", opts.cycle)
			}
			return startJob(cmd, root, opts, "/sync/update-cycles/"+url.PathEscape(args[0]), query)
		},
	}
	updateCycles.Flags().StringVar(&opts.cycle, "cycle", "", "limit to one cycle")

	cmd.AddCommand(proposal, proposalTypes, cycles, cycleProposals, updateCycles)
	return cmd
}

func startJob(cmd *cobra.Command, root *rootOptions, opts *syncOptions, path string, query url.Values) error {
	client := root.client()
	job, err := client.Sync(cmd.Context(), path, query)
	if err != nil {
		return err
	}
	printJob(cmd, job)
	if !opts.wait {
		return nil
	}
	status, err := waitForJob(cmd.Context(), client, job.ID, defaultPollInterval)
	if err != nil {
		return err
	}
	return printStatus(cmd, status)
}
