package cli

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/blogcomments/internal/comment"
)

// uploadServlet is the servlet path comment uploads are forwarded to.
const uploadServlet = "/new-comment"

func newCommentCmd() *cobra.Command {
	var name, imagePath string

	cmd := &cobra.Command{
		Use:   `comment <blog> "text"`,
		Short: "Add a comment to a blog post",
		Long:  "Add a comment to a blog post. With --image the picture is uploaded through a one-time upload URL.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			blogID, err := parseBlogID(args[0])
			if err != nil {
				return err
			}
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" {
				return fmt.Errorf("comment text is required")
			}
			return runComment(cmd, comment.Submission{BlogID: blogID, Name: name, Content: text}, imagePath)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "your name (required)")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to an image to attach")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runComment(cmd *cobra.Command, sub comment.Submission, imagePath string) error {
	c := newAPIClient()
	ctx := cmd.Context()

	var (
		created *comment.Comment
		err     error
	)
	if imagePath != "" {
		sub.Image, err = readImage(imagePath)
		if err != nil {
			return err
		}
		uploadURL, uerr := c.UploadURL(ctx, uploadServlet)
		if uerr != nil {
			return uerr
		}
		created, err = c.UploadComment(ctx, uploadURL, sub)
	} else {
		created, err = c.AddComment(ctx, sub)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if isJSON() {
		return printJSON(out, created)
	}
	printCommentSingle(out, created)
	return nil
}

// readImage loads an image file for upload.
func readImage(path string) (*comment.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return &comment.Image{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

// parseBlogID parses a blog post number argument.
func parseBlogID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid blog number: %s", s)
	}
	return id, nil
}
