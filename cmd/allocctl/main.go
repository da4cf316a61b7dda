// Command allocctl is a command-line client for the allocation API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "allocctl:", err)
		cancel()
		os.Exit(1)
	}
}

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *Client {
	return NewClient(o.server, o.timeout)
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "allocctl",
		Short:         "Drive exam room allocation from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("ALLOCCTL_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVarP(&opts.server, "server", "s", server, "API base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")

	cmd.AddCommand(
		newRunCommand(opts),
		newPlaceCommand(opts),
		newUnplaceCommand(opts),
		newClearCommand(opts),
		newAssignmentsCommand(opts),
		newProgressCommand(opts),
		newStrategiesCommand(opts),
	)
	return cmd
}

// printJSON writes raw indented; an empty result prints nothing.
func printJSON(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
