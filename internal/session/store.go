package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Storage keys. They match the keys the browser extension persists so a
// copied profile keeps working.
const (
	KeySession      = "session"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyFlag         = "flag"
)

// Onboarding stages stored under KeyFlag.
const (
	FlagNew      = 0
	FlagSignedIn = 1
)

// ErrNoSession is returned when no session blob is stored.
var ErrNoSession = errors.New("no active session")

// User is the identity attached to a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the persisted session blob.
type Session struct {
	AccessToken          string `json:"access_token"`
	RefreshToken         string `json:"refresh_token"`
	TokenType            string `json:"token_type,omitempty"`
	ExpiresAt            int64  `json:"expires_at,omitempty"`
	ProviderToken        string `json:"provider_token,omitempty"`
	ProviderRefreshToken string `json:"provider_refresh_token,omitempty"`
	User                 User   `json:"user"`
}

// Expiry returns the access token expiry, or the zero time when unknown.
func (s Session) Expiry() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// TokenPair is an access/refresh token pair returned by a refresh exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Store gives typed access to the session keys of a KV.
type Store struct {
	kv KV
}

// NewStore wraps kv.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Save persists the blob and both token keys.
func (s *Store) Save(ctx context.Context, sess Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(ctx, KeySession, string(blob)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyAccessToken, sess.AccessToken); err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyRefreshToken, sess.RefreshToken)
}

// Load returns the stored session or ErrNoSession.
func (s *Store) Load(ctx context.Context) (Session, error) {
	raw, err := s.kv.Get(ctx, KeySession)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return sess, nil
}

// Tokens returns the stored access and refresh tokens. Missing tokens are
// returned as empty strings.
func (s *Store) Tokens(ctx context.Context) (access, refresh string, err error) {
	access, err = s.optional(ctx, KeyAccessToken)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.optional(ctx, KeyRefreshToken)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ApplyRefresh overwrites both token keys and, when a blob exists, the
// tokens inside it. Provider tokens and the user are kept.
func (s *Store) ApplyRefresh(ctx context.Context, pair TokenPair) error {
	sess, err := s.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		if err := s.kv.Set(ctx, KeyAccessToken, pair.AccessToken); err != nil {
			return err
		}
		return s.kv.Set(ctx, KeyRefreshToken, pair.RefreshToken)
	case err != nil:
		return err
	}

	sess.AccessToken = pair.AccessToken
	sess.RefreshToken = pair.RefreshToken
	if pair.ExpiresAt != 0 {
		sess.ExpiresAt = pair.ExpiresAt
	}
	return s.Save(ctx, sess)
}

// Flag returns the onboarding stage, FlagNew when unset.
func (s *Store) Flag(ctx context.Context) (int, error) {
	raw, err := s.optional(ctx, KeyFlag)
	if err != nil || raw == "" {
		return FlagNew, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return FlagNew, fmt.Errorf("invalid flag value %q: %w", raw, err)
	}
	return n, nil
}

// SetFlag stores the onboarding stage.
func (s *Store) SetFlag(ctx context.Context, flag int) error {
	return s.kv.Set(ctx, KeyFlag, strconv.Itoa(flag))
}

// Clear destroys the session. The onboarding flag survives sign-out.
func (s *Store) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, KeySession, KeyAccessToken, KeyRefreshToken)
}

func (s *Store) optional(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
