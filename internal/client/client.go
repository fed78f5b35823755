// Package client provides an HTTP client for the blog comment API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/blogcomments/internal/comment"
)

// Result kinds carried in every API response.
const (
	KindOK    = "ok"
	KindError = "error"
)

// envelope is the response body of every API endpoint:
// {"kind":"ok","data":...} or {"kind":"error","message":"..."}.
type envelope struct {
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// APIError is an error reported by the server inside an error envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client is an HTTP client for the blog comment API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// ListComments returns one page of a blog post's comments.
func (c *Client) ListComments(ctx context.Context, blogID, pageSize, page int) ([]*comment.Comment, error) {
	q := url.Values{}
	q.Set("num-comments", strconv.Itoa(pageSize))
	q.Set("page-number", strconv.Itoa(page))
	q.Set("blog-number", strconv.Itoa(blogID))

	var comments []*comment.Comment
	if err := c.get(ctx, "/list-comments?"+q.Encode(), &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// PageCount returns the highest page number of a blog post at pageSize.
func (c *Client) PageCount(ctx context.Context, blogID, pageSize int) (int, error) {
	q := url.Values{}
	q.Set("num-comments", strconv.Itoa(pageSize))
	q.Set("blog-number", strconv.Itoa(blogID))

	var pages int
	if err := c.get(ctx, "/pagination-comment?"+q.Encode(), &pages); err != nil {
		return 0, err
	}
	return pages, nil
}

// UploadURL asks for a one-time URL that forwards an upload to servletPath.
func (c *Client) UploadURL(ctx context.Context, servletPath string) (string, error) {
	q := url.Values{}
	q.Set("servlet-url", servletPath)

	var u string
	if err := c.get(ctx, "/blobstore-upload-url?"+q.Encode(), &u); err != nil {
		return "", err
	}
	return u, nil
}

// AddComment posts a submission to /new-comment. Submissions with an image
// go as multipart; plain ones as a URL-encoded form.
func (c *Client) AddComment(ctx context.Context, sub comment.Submission) (*comment.Comment, error) {
	if sub.Image != nil {
		return c.postMultipart(ctx, c.baseURL+"/new-comment", sub)
	}

	form := url.Values{}
	form.Set("blog-number", strconv.Itoa(sub.BlogID))
	form.Set("name", sub.Name)
	form.Set("comment", sub.Content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/new-comment", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var created comment.Comment
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UploadComment posts a submission as multipart directly to an upload URL
// obtained from UploadURL.
func (c *Client) UploadComment(ctx context.Context, uploadURL string, sub comment.Submission) (*comment.Comment, error) {
	return c.postMultipart(ctx, uploadURL, sub)
}

// DeleteComments removes all comments of a blog post and returns how many were removed.
func (c *Client) DeleteComments(ctx context.Context, blogID int) (int64, error) {
	q := url.Values{}
	q.Set("blog-number", strconv.Itoa(blogID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/delete-comment?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	var n int64
	if err := c.do(req, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// CommentCounts returns the comment count of every blog post with comments.
func (c *Client) CommentCounts(ctx context.Context) ([]comment.BlogCount, error) {
	var counts []comment.BlogCount
	if err := c.get(ctx, "/num-comments", &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Printf("warning: closing response body: %v\n", cerr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: %s", http.StatusText(resp.StatusCode))
	}
	return nil
}

// postMultipart sends a submission, image included, as multipart/form-data.
func (c *Client) postMultipart(ctx context.Context, target string, sub comment.Submission) (*comment.Comment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"blog-number", strconv.Itoa(sub.BlogID)},
		{"name", sub.Name},
		{"comment", sub.Content},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("writing field %s: %w", f[0], err)
		}
	}

	if sub.Image != nil {
		fw, err := mw.CreateFormFile("image", sub.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("creating image part: %w", err)
		}
		if _, err := fw.Write(sub.Image.Data); err != nil {
			return nil, fmt.Errorf("writing image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var created comment.Comment
	if err := c.do(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// get performs a GET request and decodes the envelope's data into result.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, result)
}

// do executes an HTTP request and decodes the response envelope. Error
// envelopes become *APIError; anything else that is not an ok envelope is
// reported as a protocol error.
func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			fmt.Printf("warning: closing response body: %v\n", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decoding response: %w", err)
	}

	switch {
	case env.Kind == KindError:
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	case env.Kind != KindOK:
		return fmt.Errorf("decoding response: unknown result kind %q", env.Kind)
	case resp.StatusCode != http.StatusOK:
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
		}
	}

	return nil
}
