package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// healthcheckCmd probes the local server; used by the distroless image.
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check the local server's /health endpoint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8888"
		}
		return runHealthcheck(fmt.Sprintf("http://127.0.0.1:%s/health", port))
	},
}

// runHealthcheck performs a health check against url
func runHealthcheck(url string) error {
	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health endpoint returned status: %d", resp.StatusCode)
	}

	return nil
}
