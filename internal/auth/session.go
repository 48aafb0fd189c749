package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"blog/internal/clock"
	"blog/internal/db"
	"blog/internal/models"
)

const (
	DefaultCookieName = "session_id"
	DefaultTTL        = 24 * time.Hour
	flashCookieName   = "flash"
)

// Options tune a Manager. Zero values fall back to the defaults above.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	Clock      clock.Clock
}

// Manager tracks which user a request belongs to. Sessions live in the
// sessions table; the cookie carries the session id signed with the
// configured secret.
type Manager struct {
	store      *db.DB
	codec      *securecookie.SecureCookie
	cookieName string
	ttl        time.Duration
	secure     bool
	clock      clock.Clock
}

func NewManager(store *db.DB, secret []byte, opts Options) *Manager {
	m := &Manager{
		store:      store,
		codec:      securecookie.New(secret, nil),
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		clock:      opts.Clock,
	}
	if m.cookieName == "" {
		m.cookieName = DefaultCookieName
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.clock == nil {
		m.clock = clock.Real{}
	}
	m.codec.MaxAge(int(m.ttl.Seconds()))
	return m
}

func (m *Manager) CookieName() string { return m.cookieName }

// Resolve loads a user by id.
func (m *Manager) Resolve(ctx context.Context, id int) (*models.User, error) {
	return models.GetUserByID(ctx, m.store, id)
}

// Issue records a new session for u through q and returns the cookie that
// identifies it. The cookie should be set only after q's transaction commits.
func (m *Manager) Issue(ctx context.Context, q db.Querier, u *models.User) (*http.Cookie, error) {
	now := m.clock.Now()
	s := &models.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := models.CreateSession(ctx, q, s); err != nil {
		return nil, err
	}
	value, err := m.codec.Encode(m.cookieName, s.ID)
	if err != nil {
		return nil, fmt.Errorf("encoding session cookie: %w", err)
	}
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Establish makes u the identity of the client behind w.
func (m *Manager) Establish(ctx context.Context, w http.ResponseWriter, u *models.User) error {
	cookie, err := m.Issue(ctx, m.store, u)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}

// Teardown revokes the request's session, if any, and clears the cookie.
func (m *Manager) Teardown(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, ok := m.sessionID(r)
	http.SetCookie(w, &http.Cookie{Name: m.cookieName, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if !ok {
		return nil
	}
	return models.RevokeSession(ctx, m.store, id, m.clock.Now())
}

// Current returns the user behind the request, or nil for an anonymous one.
// An error is returned only when the store fails.
func (m *Manager) Current(ctx context.Context, r *http.Request) (*models.User, error) {
	id, ok := m.sessionID(r)
	if !ok {
		return nil, nil
	}
	s, err := models.GetSession(ctx, m.store, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.Active(m.clock.Now()) {
		return nil, nil
	}
	u, err := m.Resolve(ctx, s.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	var id string
	if err := m.codec.Decode(m.cookieName, cookie.Value, &id); err != nil {
		return "", false
	}
	return id, true
}

// SetFlash stores a one-shot message shown on the next rendered page.
func (m *Manager) SetFlash(w http.ResponseWriter, msg string) {
	value, err := m.codec.Encode(flashCookieName, msg)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: value, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// PopFlash returns the pending flash message and clears it.
func (m *Manager) PopFlash(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})
	var msg string
	if err := m.codec.Decode(flashCookieName, cookie.Value, &msg); err != nil {
		return ""
	}
	return msg
}
