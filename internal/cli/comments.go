package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCommentsCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "comments <blog>",
		Short: "List comments for a blog post",
		Long:  "List one page of a blog post's comments, newest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blogID, err := parseBlogID(args[0])
			if err != nil {
				return err
			}
			return runComments(cmd, blogID, page, pageSize)
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 3, "comments per page")

	return cmd
}

func runComments(cmd *cobra.Command, blogID, page, pageSize int) error {
	comments, err := newAPIClient().ListComments(cmd.Context(), blogID, pageSize, page)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, comments)
	}

	_, _ = fmt.Fprintf(out, "Comments for blog post %d (page %d):\n\n", blogID, page)
	printCommentList(out, comments)
	return nil
}
