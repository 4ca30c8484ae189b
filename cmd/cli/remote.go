package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/linkgrab/linkgrab/internal/domain"
)

// remoteJob is a job as returned by the server, with its raw result
type remoteJob struct {
	domain.Job
	Result json.RawMessage `json:"result,omitempty"`
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Queue a discovery or download job on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		category, _ := cmd.Flags().GetString("category")
		download, _ := cmd.Flags().GetBool("download")
		dest, _ := cmd.Flags().GetString("dest")
		extList, _ := cmd.Flags().GetString("ext")
		workers, _ := cmd.Flags().GetInt("workers")
		watch, _ := cmd.Flags().GetBool("watch")

		var job domain.Job
		var err error
		if download {
			err = apiRequest(http.MethodPost, "/api/v1/jobs/download", map[string]interface{}{
				"page_url":    args[0],
				"category":    category,
				"extensions":  splitExtensions(extList),
				"destination": dest,
				"workers":     workers,
			}, &job)
		} else {
			err = apiRequest(http.MethodPost, "/api/v1/jobs/discover", map[string]string{
				"url":      args[0],
				"category": category,
			}, &job)
		}
		if err != nil {
			return err
		}

		fmt.Printf("Job submitted successfully!\n")
		fmt.Printf("ID:     %s\n", job.ID)
		fmt.Printf("Kind:   %s\n", job.Kind)
		fmt.Printf("Status: %s\n", job.Status)

		if watch {
			return watchJob(job.ID)
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List server jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		status, _ := cmd.Flags().GetString("status")
		kind, _ := cmd.Flags().GetString("kind")

		query := url.Values{}
		if status != "" {
			query.Set("status", status)
		}
		if kind != "" {
			query.Set("kind", kind)
		}
		path := "/api/v1/jobs"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var jobs []domain.Job
		if err := apiRequest(http.MethodGet, path, nil, &jobs); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tSTATUS\tPROGRESS\tURL\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
				truncate(j.ID, 8),
				j.Kind,
				j.Status,
				j.Processed, j.Total,
				truncate(j.PageURL, 40),
				j.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var jobCmd = &cobra.Command{
	Use:   "job [id]",
	Short: "Show job details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		watch, _ := cmd.Flags().GetBool("watch")
		if watch {
			return watchJob(args[0])
		}

		var job remoteJob
		if err := apiRequest(http.MethodGet, "/api/v1/jobs/"+args[0], nil, &job); err != nil {
			return err
		}
		printJob(&job)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := apiRequest(http.MethodPost, "/api/v1/jobs/"+args[0]+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Cancellation requested")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a finished job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := apiRequest(http.MethodDelete, "/api/v1/jobs/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("Job deleted")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var stats domain.JobStats
		if err := apiRequest(http.MethodGet, "/api/v1/jobs/stats", nil, &stats); err != nil {
			return err
		}

		fmt.Println("Job Statistics:")
		fmt.Printf("  Total:     %d\n", stats.Total)
		fmt.Printf("  Queued:    %d\n", stats.Queued)
		fmt.Printf("  Running:   %d\n", stats.Running)
		fmt.Printf("  Completed: %d\n", stats.Completed)
		fmt.Printf("  Failed:    %d\n", stats.Failed)
		fmt.Printf("  Cancelled: %d\n", stats.Cancelled)
		return nil
	},
}

func printJob(job *remoteJob) {
	fmt.Printf("Job Details:\n")
	fmt.Printf("  ID:        %s\n", job.ID)
	fmt.Printf("  Kind:      %s\n", job.Kind)
	fmt.Printf("  Status:    %s\n", job.Status)
	if job.PageURL != "" {
		fmt.Printf("  URL:       %s\n", job.PageURL)
	}
	if job.Category != "" {
		fmt.Printf("  Category:  %s\n", job.Category)
	}
	if job.DestinationDir != "" {
		fmt.Printf("  Dest:      %s\n", job.DestinationDir)
	}
	fmt.Printf("  Progress:  %d/%d (succeeded %d, failed %d)\n", job.Processed, job.Total, job.Succeeded, job.Failed)
	fmt.Printf("  Created:   %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.ErrorMessage != "" {
		fmt.Printf("  Error:     %s\n", job.ErrorMessage)
	}

	if len(job.Result) == 0 {
		return
	}
	switch job.Kind {
	case domain.JobKindDiscovery:
		var result domain.DiscoveryResult
		if json.Unmarshal(job.Result, &result) == nil {
			fmt.Printf("  Files:     %d found, %d selected\n", len(result.Files), len(domain.SelectedFiles(result.Files)))
			for _, f := range domain.SelectedFiles(result.Files) {
				fmt.Printf("    %s\n", f.URL)
			}
		}
	case domain.JobKindDownload:
		var result domain.SessionResult
		if json.Unmarshal(job.Result, &result) == nil {
			for _, o := range result.Outcomes {
				fmt.Printf("    %-9s %s\n", o.Status, o.URL)
			}
		}
	}
}

// watchJob prints the job's event stream until the server closes it
func watchJob(id string) error {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/v1/jobs/" + id + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("job %s not found", id)
		}
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer conn.Close()

	for {
		var ev domain.JobEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		switch ev.Type {
		case domain.JobEventSnapshot:
			fmt.Printf("[%s] %d/%d\n", ev.Status, ev.Processed, ev.Total)
		default:
			if ev.Message != "" {
				fmt.Println(ev.Message)
			}
		}
	}
}

func init() {
	submitCmd.Flags().StringP("category", "c", "", "Category (default from server config)")
	submitCmd.Flags().Bool("download", false, "Download the selected files instead of only discovering")
	submitCmd.Flags().StringP("dest", "d", "", "Destination directory under the server's download.base_dir")
	submitCmd.Flags().StringP("ext", "e", "", "Only these extensions, comma separated")
	submitCmd.Flags().IntP("workers", "w", 0, "Parallel downloads")
	submitCmd.Flags().Bool("watch", false, "Stream job events until it finishes")

	jobsCmd.Flags().StringP("status", "s", "", "Filter by status")
	jobsCmd.Flags().StringP("kind", "k", "", "Filter by kind (discovery, download)")

	jobCmd.Flags().Bool("watch", false, "Stream job events until it finishes")
}
