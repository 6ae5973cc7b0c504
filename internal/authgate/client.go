package authgate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"catalog-admin/internal/core/auth"
	"catalog-admin/internal/domain"
)

// Authenticator is the remote side of a client session; pkg/sdk implements it over HTTP.
type Authenticator interface {
	SignIn(ctx context.Context, in Credentials) (Session, error)
	SignUp(ctx context.Context, in SignUpInput) (Session, error)
	SignOut(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in ResetPasswordInput) error
}

type Phase string

const (
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseError          Phase = "error"
)

type State struct {
	Phase   Phase
	User    *domain.User
	Loading bool
	Error   string
}

var ErrInProgress = domain.AuthFailed("authentication already in progress")

// ClientSession is the client-side auth state machine. Sign-in and sign-up are exclusive:
// a second attempt while one is in flight is rejected, not queued.
type ClientSession struct {
	auth     Authenticator
	slot     TokenSlot
	log      *zap.Logger
	inflight *semaphore.Weighted

	mu    sync.Mutex
	state State
	token string
}

func NewClientSession(a Authenticator, slot TokenSlot, log *zap.Logger) *ClientSession {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientSession{
		auth:     a,
		slot:     slot,
		log:      log,
		inflight: semaphore.NewWeighted(1),
		state:    State{Phase: PhaseAnonymous, Loading: true},
	}
}

func (s *ClientSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *ClientSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *ClientSession) set(st State, token string) {
	s.mu.Lock()
	s.state = st
	s.token = token
	s.mu.Unlock()
}

func (s *ClientSession) setLoading(v bool) {
	s.mu.Lock()
	s.state.Loading = v
	s.mu.Unlock()
}

func (s *ClientSession) fail(err error) error {
	s.set(State{Phase: PhaseError, Error: message(err)}, "")
	return err
}

func message(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// Start reads the token slot once. A stored token means authenticated; the profile is read
// from the token's claims without asking the server.
func (s *ClientSession) Start(ctx context.Context) error {
	token, ok, err := s.slot.Load(ctx)
	if err != nil {
		s.log.Warn("read token slot", zap.Error(err))
		return s.fail(domain.AuthFailed("failed to verify authentication"))
	}
	if !ok {
		s.set(State{Phase: PhaseAnonymous}, "")
		return nil
	}
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		s.log.Warn("decode stored token", zap.Error(err))
		return s.fail(domain.AuthFailed("failed to verify authentication"))
	}
	u := userFromClaims(claims)
	s.set(State{Phase: PhaseAuthenticated, User: &u}, token)
	return nil
}

func userFromClaims(c *auth.Claims) domain.User {
	u := domain.User{ID: c.UID, Name: c.Name, Email: c.Email, Role: domain.Role(c.Role), Status: domain.StatusActive}
	if c.IssuedAt != nil {
		u.CreatedAt = c.IssuedAt.Time
	}
	return u
}

func (s *ClientSession) SignIn(ctx context.Context, in Credentials) error {
	return s.authenticate(ctx, func() (Session, error) { return s.auth.SignIn(ctx, in) })
}

func (s *ClientSession) SignUp(ctx context.Context, in SignUpInput) error {
	return s.authenticate(ctx, func() (Session, error) {
		if in.Password != in.ConfirmPassword {
			return Session{}, domain.AuthFailed("passwords do not match")
		}
		return s.auth.SignUp(ctx, in)
	})
}

func (s *ClientSession) authenticate(ctx context.Context, call func() (Session, error)) error {
	if !s.inflight.TryAcquire(1) {
		return ErrInProgress
	}
	defer s.inflight.Release(1)

	s.set(State{Phase: PhaseAuthenticating, Loading: true}, "")
	sess, err := call()
	if err != nil {
		return s.fail(err)
	}
	if err := s.slot.Save(ctx, sess.Token); err != nil {
		s.log.Warn("persist session token", zap.Error(err))
		return s.fail(err)
	}
	u := sess.User
	s.set(State{Phase: PhaseAuthenticated, User: &u}, sess.Token)
	return nil
}

// SignOut always ends up anonymous; a failed server-side revoke is only logged.
func (s *ClientSession) SignOut(ctx context.Context) error {
	if token := s.Token(); token != "" {
		if err := s.auth.SignOut(ctx, token); err != nil {
			s.log.Warn("server sign-out", zap.Error(err))
		}
	}
	err := s.slot.Clear(ctx)
	s.set(State{Phase: PhaseAnonymous}, "")
	return err
}

// ForgotPassword and ResetPassword only toggle Loading; the phase is left alone.
func (s *ClientSession) ForgotPassword(ctx context.Context, email string) error {
	s.setLoading(true)
	defer s.setLoading(false)
	return s.auth.ForgotPassword(ctx, email)
}

func (s *ClientSession) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	s.setLoading(true)
	defer s.setLoading(false)
	if in.Password != in.ConfirmPassword {
		return domain.Validation("confirmPassword", "passwords do not match")
	}
	return s.auth.ResetPassword(ctx, in)
}

func (s *ClientSession) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Error = ""
	if s.state.Phase == PhaseError {
		s.state.Phase = PhaseAnonymous
	}
}
