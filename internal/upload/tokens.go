package upload

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrTokenInvalid is returned for unknown upload tokens.
	ErrTokenInvalid = errors.New("invalid upload token")
	// ErrTokenUsed is returned when an upload token is redeemed twice.
	ErrTokenUsed = errors.New("upload token already used")
	// ErrTokenExpired is returned for upload tokens past their expiry.
	ErrTokenExpired = errors.New("upload token expired")
)

// TokenStore hands out single-use tokens bound to a servlet path.
type TokenStore interface {
	Create(ctx context.Context, servletPath string, ttl time.Duration) (string, error)
	// Redeem returns the token's servlet path and invalidates the token.
	Redeem(ctx context.Context, token string) (string, error)
}

// SQLiteTokens stores upload tokens in SQLite.
type SQLiteTokens struct {
	db *sql.DB
}

// NewSQLiteTokens creates a token store.
func NewSQLiteTokens(db *sql.DB) *SQLiteTokens {
	return &SQLiteTokens{db: db}
}

// Create generates a new upload token for servletPath.
func (s *SQLiteTokens) Create(_ context.Context, servletPath string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := s.db.Exec(
		"INSERT INTO upload_tokens (token, servlet_path, expires_at) VALUES (?, ?, ?)",
		token, servletPath, time.Now().Add(ttl),
	); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}

	return token, nil
}

// Redeem checks a token and marks it as used.
func (s *SQLiteTokens) Redeem(_ context.Context, token string) (string, error) {
	var servletPath string
	var used int
	var expiresAt time.Time

	err := s.db.QueryRow(
		"SELECT servlet_path, used, expires_at FROM upload_tokens WHERE token = ?",
		token,
	).Scan(&servletPath, &used, &expiresAt)
	if err == sql.ErrNoRows {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("querying token: %w", err)
	}

	if used != 0 {
		return "", ErrTokenUsed
	}

	if time.Now().After(expiresAt) {
		return "", ErrTokenExpired
	}

	// The used = 0 guard makes concurrent redemptions race safely.
	res, err := s.db.Exec("UPDATE upload_tokens SET used = 1 WHERE token = ? AND used = 0", token)
	if err != nil {
		return "", fmt.Errorf("marking token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return "", ErrTokenUsed
	}

	return servletPath, nil
}

// Cleanup removes expired tokens.
func (s *SQLiteTokens) Cleanup() error {
	if _, err := s.db.Exec(
		"DELETE FROM upload_tokens WHERE expires_at < ?",
		time.Now(),
	); err != nil {
		return fmt.Errorf("cleaning up tokens: %w", err)
	}
	return nil
}

// RedisTokens stores upload tokens in Redis, letting several server
// instances share them. Expiry is left to Redis key TTLs.
type RedisTokens struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisTokens connects to addr and verifies the connection.
func NewRedisTokens(ctx context.Context, addr string) (*RedisTokens, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cerr := rdb.Close(); cerr != nil {
			return nil, fmt.Errorf("connecting to redis: %w (also failed to close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisTokens{rdb: rdb, prefix: "blogc:upload:"}, nil
}

// Create stores a new token with the given time to live.
func (s *RedisTokens) Create(ctx context.Context, servletPath string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	if err := s.rdb.Set(ctx, s.prefix+token, servletPath, ttl).Err(); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return token, nil
}

// Redeem atomically reads and deletes the token. Used and expired tokens
// are indistinguishable once Redis has dropped them.
func (s *RedisTokens) Redeem(ctx context.Context, token string) (string, error) {
	servletPath, err := s.rdb.GetDel(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("redeeming token: %w", err)
	}
	return servletPath, nil
}

// Close releases the Redis connection pool.
func (s *RedisTokens) Close() error {
	return s.rdb.Close()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
