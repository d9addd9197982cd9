package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/textshr/internal/common"
	"github.com/dmitrijs2005/textshr/internal/logging"
	"github.com/dmitrijs2005/textshr/internal/server/auth"
	"github.com/dmitrijs2005/textshr/internal/server/models"
	"github.com/dmitrijs2005/textshr/internal/server/repositories/sessions"
)

// SessionService issues anonymous browser sessions and resolves the
// session token back to the caller identity used for record ownership.
// Sessions slide: every resolved request pushes the expiry forward.
type SessionService struct {
	repo   sessions.Repository
	logger logging.Logger
	secret []byte
	ttl    time.Duration
}

func NewSessionService(repo sessions.Repository, logger logging.Logger, secret []byte, ttl time.Duration) *SessionService {
	return &SessionService{repo: repo, logger: logger, secret: secret, ttl: ttl}
}

// Start creates a fresh session and returns its signed token.
func (s *SessionService) Start(ctx context.Context) (string, error) {
	now := time.Now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}

	token, err := auth.GenerateToken(sess.ID, s.secret, s.ttl)
	if err != nil {
		return "", fmt.Errorf("start session: sign token: %w", err)
	}

	s.logger.Debug(ctx, "session started", "session_id", sess.ID)
	return token, nil
}

// Resolve verifies token, slides the session expiry and returns the
// session ID. A valid token over a session the store no longer knows
// yields ErrSessionExpired.
func (s *SessionService) Resolve(ctx context.Context, token string) (string, error) {
	id, err := auth.GetSessionIDFromToken(token, s.secret)
	if err != nil {
		return "", err
	}

	ok, err := s.repo.Refresh(ctx, id, time.Now().Add(s.ttl))
	if err != nil {
		return "", fmt.Errorf("resolve session: %w", err)
	}
	if !ok {
		return "", common.ErrSessionExpired
	}

	return id, nil
}

// ResolveOrStart resolves token when possible and falls back to a fresh
// session otherwise, returning the caller ID and, when a new session was
// minted, its token.
func (s *SessionService) ResolveOrStart(ctx context.Context, token string) (id, newToken string, err error) {
	if token != "" {
		id, err = s.Resolve(ctx, token)
		if err == nil {
			return id, "", nil
		}
		if !errors.Is(err, common.ErrInvalidToken) && !errors.Is(err, common.ErrSessionExpired) {
			return "", "", err
		}
	}

	newToken, err = s.Start(ctx)
	if err != nil {
		return "", "", err
	}
	id, err = auth.GetSessionIDFromToken(newToken, s.secret)
	if err != nil {
		return "", "", err
	}
	return id, newToken, nil
}
