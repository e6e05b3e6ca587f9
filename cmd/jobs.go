package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lodgeleads/enrich/internal/model"
)

var jobsServerURL string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := &http.Client{Timeout: 10 * time.Second}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, jobsServerURL+"/api/jobs", nil)
		if err != nil {
			return eris.Wrap(err, "jobs: build request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return eris.Wrap(err, "jobs: query server")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return eris.Errorf("jobs: server returned %d", resp.StatusCode)
		}

		var body struct {
			Jobs []model.Job `json:"jobs"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return eris.Wrap(err, "jobs: decode response")
		}

		if len(body.Jobs) == 0 {
			fmt.Println("no jobs")
			return nil
		}
		for _, j := range body.Jobs {
			fmt.Printf("%s  %-17s %-9s  %d/%d done, %d found, %d errors\n",
				j.ID, j.Type, j.Status,
				j.Counters.Done, j.Counters.Total, j.Counters.Found, j.Counters.Errors)
		}
		return nil
	},
}

func init() {
	jobsCmd.Flags().StringVar(&jobsServerURL, "server", "http://localhost:8080", "base URL of the running server")
	rootCmd.AddCommand(jobsCmd)
}
