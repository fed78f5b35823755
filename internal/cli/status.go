package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the connection to the server",
		Long:  "Shows the configured server URL and whether its health check answers.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, out io.Writer) error {
	serverURL := getServerURL()
	_, _ = fmt.Fprintf(out, "Server:  %s\n", serverURL)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := newAPIClient().Health(ctx); err != nil {
		_, _ = fmt.Fprintf(out, "Status:  ✗ cannot reach server (%v)\n", err)
		return nil
	}
	_, _ = fmt.Fprintln(out, "Status:  ✓ connected")
	return nil
}
