package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const defaultPollInterval = 2 * time.Second

func newStatusCmd(root *rootOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show the processing status of a sync job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := root.client()
			var (
				status StatusResponse
				err    error
			)
			if wait {
				status, err = waitForJob(cmd.Context(), client, args[0], defaultPollInterval)
			} else {
				status, err = client.Status(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return printStatus(cmd, status)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the job finishes")
	return cmd
}

// waitForJob polls until the job is succeeded or failed.
func waitForJob(ctx context.Context, client *APIClient, jobID string, interval time.Duration) (StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := client.Status(ctx, jobID)
		if err != nil {
			return StatusResponse{}, err
		}
		if status.Status == "succeeded" || status.Status == "failed" {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printJob(cmd *cobra.Command, job JobResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:     %s\n", job.ID)
	fmt.Fprintf(out, "Action:  %s\n", job.Action)
	fmt.Fprintf(out, "Status:  %s\n", job.Status)
}

// printStatus returns an error for failed jobs so the exit code reflects it.
func printStatus(cmd *cobra.Command, status StatusResponse) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:     %s\n", status.JobID)
	fmt.Fprintf(out, "Status:  %s\n", status.Status)
	if status.Error != "" {
		fmt.Fprintf(out, "Error:   %s\n", status.Error)
	}
	if status.Status == "failed" {
		return fmt.Errorf("job %s failed", status.JobID)
	}
	return nil
}
