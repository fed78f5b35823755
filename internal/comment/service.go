package comment

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ImageStore persists comment images.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Service provides comment business logic on top of the repository.
type Service struct {
	repo   *Repository
	images ImageStore
	limits Limits
}

// NewService creates a comment service. images may be nil, in which case
// submissions carrying an image are rejected.
func NewService(repo *Repository, images ImageStore, limits Limits) *Service {
	return &Service{repo: repo, images: images, limits: limits}
}

// Limits returns the limits the service validates against.
func (s *Service) Limits() Limits {
	return s.limits
}

// List returns one page of a blog post's comments, newest first.
// A post without comments yields an empty page for any page number.
func (s *Service) List(blogID, pageSize, page int) ([]*Comment, error) {
	total, err := s.repo.Count(blogID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []*Comment{}, nil
	}

	pages := s.limits.PageCount(total, pageSize)
	if page < 1 || page > pages {
		return nil, fmt.Errorf("%w: please enter an integer between 1 to %d for page-number", ErrInvalid, pages)
	}

	offset := (page - 1) * pageSize
	limit := pageSize
	if s.limits.CommentLimit > 0 && offset+limit > s.limits.CommentLimit {
		limit = s.limits.CommentLimit - offset
	}

	comments, err := s.repo.ListRecent(blogID, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		c.ImageURL = ImageURL(c.ImageKey)
	}
	return comments, nil
}

// PageCount returns the highest page number for a blog post at pageSize.
func (s *Service) PageCount(blogID, pageSize int) (int, error) {
	total, err := s.repo.Count(blogID)
	if err != nil {
		return 0, err
	}
	return s.limits.PageCount(total, pageSize), nil
}

// Create validates a submission, stores its image if any and saves the comment.
func (s *Service) Create(ctx context.Context, sub Submission) (*Comment, error) {
	if err := ValidateSubmission(&sub, s.limits); err != nil {
		return nil, err
	}

	var key string
	if sub.Image != nil {
		if s.images == nil {
			return nil, fmt.Errorf("%w: image uploads are not enabled", ErrInvalid)
		}
		key = imageKey(sub.BlogID, sub.Image.Filename)
		if err := s.images.Put(ctx, key, sub.Image.Data, sub.Image.ContentType); err != nil {
			return nil, fmt.Errorf("storing image: %w", err)
		}
	}

	c, err := s.repo.Add(sub.BlogID, sub.Name, sub.Content, key)
	if err != nil {
		if key != "" {
			if delErr := s.images.Delete(ctx, key); delErr != nil {
				slog.Warn("removing orphaned image", "key", key, "error", delErr)
			}
		}
		return nil, err
	}
	c.ImageURL = ImageURL(c.ImageKey)

	slog.Info("comment created", "blog", c.BlogID, "id", c.ID, "image", key != "")
	return c, nil
}

// DeleteAll removes every comment of a blog post along with its images.
func (s *Service) DeleteAll(ctx context.Context, blogID int) (int64, error) {
	keys, err := s.repo.ImageKeys(blogID)
	if err != nil {
		return 0, err
	}

	n, err := s.repo.DeleteByBlog(blogID)
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		if s.images == nil {
			break
		}
		if err := s.images.Delete(ctx, key); err != nil {
			slog.Warn("removing comment image", "key", key, "error", err)
		}
	}

	slog.Info("comments deleted", "blog", blogID, "count", n)
	return n, nil
}

// Counts returns the number of comments per blog post.
func (s *Service) Counts() ([]BlogCount, error) {
	return s.repo.CountsByBlog()
}

// ImageURL returns the path an image key is served from, or "" for no image.
func ImageURL(key string) string {
	if key == "" {
		return ""
	}
	return "/images/" + key
}

// imageKey builds a unique blob key that keeps the upload's extension.
func imageKey(blogID int, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, "/\\") {
		ext = ""
	}
	return fmt.Sprintf("blog-%d/%s%s", blogID, uuid.NewString(), ext)
}
