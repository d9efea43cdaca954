package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/videoforge/videoforge/pkg/models"
)

var (
	jobKind   string
	jobUser   string
	jobPrompt string
	jobLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage dispatch jobs",
	Long:  `Commands for submitting, listing and cancelling jobs on a running videoforge server.`,
}

var jobsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new job",
	RunE:  runJobsSubmit,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Get job status",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsSubmitCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsCancelCmd)

	jobsSubmitCmd.Flags().StringVar(&jobKind, "kind", "generate-images",
		"job kind: generate-images, upscale-image, super-resolve-video")
	jobsSubmitCmd.Flags().StringVar(&jobUser, "user", "", "submitting user")
	jobsSubmitCmd.Flags().StringVar(&jobPrompt, "prompt", "", "generation prompt (generate-images only)")

	jobsListCmd.Flags().IntVar(&jobLimit, "limit", 20, "maximum jobs to list")
}

func runJobsSubmit(cmd *cobra.Command, args []string) error {
	req := models.JobRequest{
		Kind: models.JobKind(jobKind),
		User: jobUser,
	}
	if jobPrompt != "" {
		req.Parameters = &models.JobPayload{
			Generate: &models.GenerateParams{Prompt: jobPrompt},
		}
	}

	var resp map[string]interface{}
	if err := apiPost("/jobs", req, &resp, http.StatusCreated); err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(resp)
	}
	fmt.Printf("Job submitted: %v\n", resp["job_id"])
	return nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	var jobs []models.Job
	if err := apiGet(fmt.Sprintf("/jobs?limit=%d", jobLimit), &jobs); err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(jobs)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Kind", "Status", "User", "Duration", "Created")
	for _, job := range jobs {
		duration := "-"
		if job.Duration > 0 {
			duration = fmt.Sprintf("%.1fs", job.Duration)
		}
		table.Append(job.ID, string(job.Kind), string(job.Status), job.User,
			duration, job.CreatedAt.Format(time.RFC3339))
	}
	table.Render()
	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	var job models.Job
	if err := apiGet("/jobs/"+args[0], &job); err != nil {
		return err
	}

	if isJSONOutput() {
		return printJSON(job)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("ID", job.ID)
	table.Append("Kind", string(job.Kind))
	table.Append("Status", string(job.Status))
	if job.User != "" {
		table.Append("User", job.User)
	}
	table.Append("Created", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		table.Append("Started", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		table.Append("Completed", job.CompletedAt.Format(time.RFC3339))
		table.Append("Duration", fmt.Sprintf("%.1fs", job.Duration))
	}
	if job.Error != "" {
		table.Append("Error", job.Error)
	}
	table.Render()
	return nil
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	var resp map[string]interface{}
	if err := apiPost("/jobs/"+args[0]+"/cancel", nil, &resp, http.StatusOK); err != nil {
		return err
	}
	if isJSONOutput() {
		return printJSON(resp)
	}
	fmt.Printf("Job %s cancelled\n", args[0])
	return nil
}
