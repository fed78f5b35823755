package comment

import (
	"database/sql"
	"fmt"
)

// Repository provides data access for comments.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a comment repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add stores a new comment on a blog post.
func (r *Repository) Add(blogID int, name, content, imageKey string) (*Comment, error) {
	if content == "" {
		return nil, fmt.Errorf("comment content is required")
	}

	result, err := r.db.Exec(
		"INSERT INTO comments (blog_id, name, content, image_key) VALUES (?, ?, ?, ?)",
		blogID, name, content, imageKey,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting insert id: %w", err)
	}

	var c Comment
	err = r.db.QueryRow(
		"SELECT id, blog_id, name, content, image_key, created_at FROM comments WHERE id = ?", id,
	).Scan(&c.ID, &c.BlogID, &c.Name, &c.Content, &c.ImageKey, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("reading back comment: %w", err)
	}

	return &c, nil
}

// ListRecent returns up to limit comments for a blog post, newest first,
// skipping the first offset.
func (r *Repository) ListRecent(blogID, limit, offset int) ([]*Comment, error) {
	rows, err := r.db.Query(
		`SELECT id, blog_id, name, content, image_key, created_at FROM comments
		 WHERE blog_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		blogID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	comments := []*Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.BlogID, &c.Name, &c.Content, &c.ImageKey, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}

	return comments, nil
}

// Count returns the number of comments on a blog post.
func (r *Repository) Count(blogID int) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM comments WHERE blog_id = ?", blogID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting comments: %w", err)
	}
	return n, nil
}

// CountsByBlog returns the comment count of every blog post that has
// comments, ordered by blog id.
func (r *Repository) CountsByBlog() ([]BlogCount, error) {
	rows, err := r.db.Query("SELECT blog_id, COUNT(*) FROM comments GROUP BY blog_id ORDER BY blog_id")
	if err != nil {
		return nil, fmt.Errorf("counting comments by blog: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	counts := []BlogCount{}
	for rows.Next() {
		var bc BlogCount
		if err := rows.Scan(&bc.BlogID, &bc.Count); err != nil {
			return nil, fmt.Errorf("scanning blog count: %w", err)
		}
		counts = append(counts, bc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating blog counts: %w", err)
	}

	return counts, nil
}

// ImageKeys returns the blob keys of every image attached to a blog post's comments.
func (r *Repository) ImageKeys(blogID int) ([]string, error) {
	rows, err := r.db.Query("SELECT image_key FROM comments WHERE blog_id = ? AND image_key != ''", blogID)
	if err != nil {
		return nil, fmt.Errorf("listing image keys: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = fmt.Errorf("closing rows: %w", closeErr)
		}
	}()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning image key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating image keys: %w", err)
	}

	return keys, nil
}

// DeleteByBlog removes every comment on a blog post and returns how many were removed.
func (r *Repository) DeleteByBlog(blogID int) (int64, error) {
	result, err := r.db.Exec("DELETE FROM comments WHERE blog_id = ?", blogID)
	if err != nil {
		return 0, fmt.Errorf("deleting comments: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return n, nil
}
