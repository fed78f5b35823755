package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the number of comments per blog post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := newAPIClient().CommentCounts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, counts)
			}
			return printCountTable(out, counts)
		},
	}
}

func newPagesCmd() *cobra.Command {
	var pageSize int

	cmd := &cobra.Command{
		Use:   "pages <blog>",
		Short: "Show how many comment pages a blog post has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blogID, err := parseBlogID(args[0])
			if err != nil {
				return err
			}

			pages, err := newAPIClient().PageCount(cmd.Context(), blogID, pageSize)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if isJSON() {
				return printJSON(out, map[string]int{"pages": pages})
			}
			_, _ = fmt.Fprintf(out, "Blog post %d has %d pages of %d comments.\n", blogID, pages, pageSize)
			return nil
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 3, "comments per page")

	return cmd
}
