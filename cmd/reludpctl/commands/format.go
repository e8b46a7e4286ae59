package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatConnections renders a slice of connections in the requested format.
func formatConnections(views []connectionView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal connections to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		return formatConnectionsTable(views), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatConnection renders a single connection in the requested format.
func formatConnection(view connectionView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal connection to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		return formatConnectionDetail(view), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatConnectionsTable(views []connectionView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tSTATE\tSESSION-ID")

	for _, v := range views {
		fmt.Fprintf(w, "%s\t%s\t%d\n", v.Peer, v.State, v.SessionID)
	}

	// Flush errors on a strings.Builder target cannot occur; ignored
	// deliberately to keep this a one-line render call at every call site.
	_ = w.Flush()

	return buf.String()
}

func formatConnectionDetail(v connectionView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Peer:\t%s\n", v.Peer)
	fmt.Fprintf(w, "State:\t%s\n", v.State)
	fmt.Fprintf(w, "Session ID:\t%d\n", v.SessionID)

	_ = w.Flush()

	return buf.String()
}
