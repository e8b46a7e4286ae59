package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// connectionView mirrors the admin API's JSON connection representation.
type connectionView struct {
	Peer      string `json:"peer"`
	State     string `json:"state"`
	SessionID uint16 `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// errRequestFailed wraps any non-2xx response from the admin API.
var errRequestFailed = errors.New("admin API request failed")

func connectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Inspect reludpd connections",
	}

	cmd.AddCommand(connectionsListCmd())
	cmd.AddCommand(connectionsShowCmd())
	cmd.AddCommand(connectionsWatchCmd())

	return cmd
}

// --- connections list ---

func connectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all known connections",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			views, err := fetchConnections()
			if err != nil {
				return err
			}

			out, err := formatConnections(views, outputFormat)
			if err != nil {
				return fmt.Errorf("format connections: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- connections show ---

func connectionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <peer-address>",
		Short: "Show a single connection by peer address (ip:port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			view, err := fetchConnection(args[0])
			if err != nil {
				return err
			}

			out, err := formatConnection(view, outputFormat)
			if err != nil {
				return fmt.Errorf("format connection: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- connections watch ---

func connectionsWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll and print the connection table until interrupted (Ctrl+C)",
		Long:  "Polls the admin API's connection list at --interval and reprints the table each time.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for {
				views, err := fetchConnections()
				if err != nil {
					return err
				}

				out, err := formatConnections(views, outputFormat)
				if err != nil {
					return fmt.Errorf("format connections: %w", err)
				}

				fmt.Print(out)

				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval")

	return cmd
}

// --- HTTP client ---

func fetchConnections() ([]connectionView, error) {
	resp, err := httpClient.Get(baseURL() + "/v1/connections")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: list connections: status %d", errRequestFailed, resp.StatusCode)
	}

	var views []connectionView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return nil, fmt.Errorf("decode connections: %w", err)
	}

	return views, nil
}

func fetchConnection(addr string) (connectionView, error) {
	resp, err := httpClient.Get(baseURL() + "/v1/connections/" + addr)
	if err != nil {
		return connectionView{}, fmt.Errorf("get connection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return connectionView{}, fmt.Errorf("%w: get connection: %s", errRequestFailed, errResp.Error)
		}
		return connectionView{}, fmt.Errorf("%w: get connection: status %d", errRequestFailed, resp.StatusCode)
	}

	var view connectionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return connectionView{}, fmt.Errorf("decode connection: %w", err)
	}

	return view, nil
}
