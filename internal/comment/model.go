// Package comment provides the comment domain model and data access.
package comment

import (
	"encoding/json"
	"fmt"
	"time"
)

// Comment is a single entry in a blog post's comment section.
type Comment struct {
	ID        int64     `json:"id"`
	BlogID    int       `json:"blog_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageURL,omitempty"`
	ImageKey  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is an uploaded picture attached to a submission.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Submission is a new comment as entered in a comment form.
type Submission struct {
	BlogID  int
	Name    string `validate:"required,max=50"`
	Content string `validate:"required,max=264"`
	Image   *Image
}

// BlogCount pairs a blog post with its number of comments.
// It travels as a two-element JSON array: [blogId, count].
type BlogCount struct {
	BlogID int
	Count  int
}

// MarshalJSON encodes the pair as [blogId, count].
func (b BlogCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{b.BlogID, b.Count})
}

// UnmarshalJSON decodes a [blogId, count] pair.
func (b *BlogCount) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding blog count: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("blog count must have 2 elements, got %d", len(pair))
	}
	b.BlogID, b.Count = pair[0], pair[1]
	return nil
}

// Limits bounds the values the comment API accepts.
type Limits struct {
	MaxBlogs        int
	MaxPageSize     int
	DefaultPageSize int
	// CommentLimit caps how many of a post's most recent comments are paginated.
	CommentLimit  int
	MaxImageBytes int64
}

// DefaultLimits returns the limits used by the portfolio blog.
func DefaultLimits() Limits {
	return Limits{
		MaxBlogs:        5,
		MaxPageSize:     5,
		DefaultPageSize: 3,
		CommentLimit:    30,
		MaxImageBytes:   5 << 20,
	}
}

// PageCount returns how many pages of pageSize comments total comments fill,
// counting only the most recent CommentLimit of them.
func (l Limits) PageCount(total, pageSize int) int {
	if pageSize < 1 {
		return 0
	}
	if l.CommentLimit > 0 && total > l.CommentLimit {
		total = l.CommentLimit
	}
	return (total + pageSize - 1) / pageSize
}
