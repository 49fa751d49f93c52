// Package session tracks refresh-token records in a shared key-value store
// with per-key expiry. A refresh token is only honored while an identical
// value sits under its user's key, which is what makes revocation work.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound - 키가 없거나 만료됨
	ErrNotFound = errors.New("session: not found")
	// ErrUnavailable - 저장소 장애. 부재(ErrNotFound)와 절대 혼동하면 안 된다.
	// 장애를 부재로 취급하면 유효한 세션이 조용히 끊긴다.
	ErrUnavailable = errors.New("session: store unavailable")
)

// Store is the capability-level contract for refresh-token bookkeeping.
// Implementations must keep Get/Put/Delete safe for concurrent use and
// must surface store outages as ErrUnavailable, never as ErrNotFound.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// RefreshKey returns the store key holding a user's refresh token.
func RefreshKey(userID string) string {
	return "user:refresh:" + userID
}

// VerifyKey returns the store key holding a pending email-verification code.
func VerifyKey(email string) string {
	return "email:verify:" + email
}
