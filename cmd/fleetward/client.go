package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/telkar/fleetward"
)

// statusClient queries a running daemon's read API.
type statusClient struct {
	baseURL string
	http    *http.Client
}

func newStatusClient(baseURL string, timeout time.Duration) *statusClient {
	return &statusClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *statusClient) hostStatus(hostname string) (fleetward.Record, error) {
	var rec fleetward.Record
	resp, err := c.http.Get(c.baseURL + "/status/" + hostname)
	if err != nil {
		return rec, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rec, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return rec, fmt.Errorf("host %q not known to the daemon", hostname)
	}
	if resp.StatusCode != http.StatusOK {
		return rec, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("decode response: %w", err)
	}
	return rec, nil
}

func createStatusCommand(sf *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <hostname>",
		Short: "Query one host's last record from a running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newStatusClient(sf.APIUrl, sf.APITimeout)
			rec, err := client.hostStatus(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&sf.APIUrl, "api-url", "http://127.0.0.1:8080", "base URL of the running daemon")
	cmd.Flags().DurationVar(&sf.APITimeout, "api-timeout", 5*time.Second, "HTTP client timeout")
	return cmd
}
