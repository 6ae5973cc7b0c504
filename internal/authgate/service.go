// Package authgate implements sign-in, sign-up, sign-out and the password reset flow,
// both as a server-side service and as a client-side session state machine.
package authgate

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/auth"
	"catalog-admin/internal/core/metrics"
	"catalog-admin/internal/domain"
	"catalog-admin/pkg/utils"
)

type Credentials struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	IPAddress string `json:"-"`
}

type SignUpInput struct {
	Name            string `json:"name" binding:"required,max=64"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	IPAddress       string `json:"-"`
}

type ResetPasswordInput struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	IPAddress       string `json:"-"`
}

// Session is what a successful sign-in or sign-up hands back to the client.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

// Principal is the verified caller of an authenticated request.
type Principal struct {
	UserID    string
	Name      string
	Email     string
	Role      domain.Role
	SessionID string
}

func (p Principal) Actor(ip string) domain.Actor {
	return domain.Actor{UserID: p.UserID, UserName: p.Name, IPAddress: ip}
}

// ResetNotifier delivers password reset tokens to their owner.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, u domain.User, token string, expires time.Time) error
}

// logNotifier stands in for a mailer. The token itself is only written when reveal is set.
type logNotifier struct {
	log    *zap.Logger
	reveal bool
}

func (n logNotifier) NotifyReset(_ context.Context, u domain.User, token string, expires time.Time) error {
	fields := []zap.Field{
		zap.String("user_id", u.ID),
		zap.String("email", u.Email),
		zap.Time("expires_at", expires),
	}
	if n.reveal {
		fields = append(fields, zap.String("reset_token", token))
	}
	n.log.Info("password reset requested", fields...)
	return nil
}

type Config struct {
	SessionTimeout   time.Duration
	MaxLoginAttempts int
	ResetTokenTTL    time.Duration
}

type Options struct {
	Config   Config
	JWT      *auth.JWTer
	Registry SessionRegistry
	Notifier ResetNotifier
	// LogResetTokens lets the fallback notifier log tokens. Ignored when Notifier is set.
	LogResetTokens bool
	Clock          func() time.Time
	NewID          func() string
	Logger         *zap.Logger
}

type resetToken struct {
	userID  string
	expires time.Time
}

type Service struct {
	store    *catalog.Store
	cfg      Config
	jwt      *auth.JWTer
	registry SessionRegistry
	notifier ResetNotifier
	clock    func() time.Time
	newID    func() string
	log      *zap.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	resets   map[string]resetToken // sha256(token) -> owner
}

func NewService(store *catalog.Store, opts Options) *Service {
	cfg := opts.Config
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = time.Hour
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = 5
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = utils.NewID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = NewMemoryRegistry(cfg.SessionTimeout)
	}
	if opts.Notifier == nil {
		opts.Notifier = logNotifier{log: opts.Logger, reveal: opts.LogResetTokens}
	}
	return &Service{
		store:    store,
		cfg:      cfg,
		jwt:      opts.JWT,
		registry: opts.Registry,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		newID:    opts.NewID,
		log:      opts.Logger,
		limiters: map[string]*rate.Limiter{},
		resets:   map[string]resetToken{},
	}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// limiter allows MaxLoginAttempts failures per session-timeout window for one email.
func (s *Service) limiter(email string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[email]
	if !ok {
		every := s.cfg.SessionTimeout / time.Duration(s.cfg.MaxLoginAttempts)
		l = rate.NewLimiter(rate.Every(every), s.cfg.MaxLoginAttempts)
		s.limiters[email] = l
	}
	return l
}

func (s *Service) forgetLimiter(email string) {
	s.mu.Lock()
	delete(s.limiters, email)
	s.mu.Unlock()
}

func (s *Service) SignIn(ctx context.Context, in Credentials) (Session, error) {
	email := normEmail(in.Email)
	lim := s.limiter(email)
	now := s.clock()
	if lim.TokensAt(now) < 1 {
		metrics.AuthAttempts.WithLabelValues("sign_in", "throttled").Inc()
		return Session{}, domain.AuthFailed("too many failed sign-in attempts, try again later")
	}

	u, ok := s.store.FindUserByEmail(email)
	if !ok || !utils.CheckPassword(in.Password, u.PasswordHash) {
		lim.AllowN(now, 1)
		metrics.AuthAttempts.WithLabelValues("sign_in", "failure").Inc()
		s.log.Info("sign-in failed", zap.String("email", email), zap.String("ip", in.IPAddress))
		return Session{}, domain.AuthFailed("invalid email or password")
	}
	if u.Status != domain.StatusActive {
		metrics.AuthAttempts.WithLabelValues("sign_in", "failure").Inc()
		return Session{}, domain.AuthFailed("account is disabled")
	}
	s.forgetLimiter(email)

	sess, err := s.open(ctx, u)
	if err != nil {
		return Session{}, err
	}
	metrics.AuthAttempts.WithLabelValues("sign_in", "success").Inc()
	s.log.Info("signed in", zap.String("user_id", u.ID), zap.String("ip", in.IPAddress))
	return sess, nil
}

// open refreshes LastLogin, registers a session and issues its token.
func (s *Service) open(ctx context.Context, u domain.User) (Session, error) {
	u, err := s.store.TouchLastLogin(ctx, u.ID)
	if err != nil {
		return Session{}, err
	}
	sid := s.newID()
	token, exp, err := s.jwt.Issue(auth.Identity{UID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}, sid)
	if err != nil {
		return Session{}, err
	}
	if err := s.registry.Add(ctx, sid, u.ID, s.clock()); err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	if in.Password != in.ConfirmPassword {
		metrics.AuthAttempts.WithLabelValues("sign_up", "failure").Inc()
		return Session{}, domain.AuthFailed("passwords do not match")
	}
	email := normEmail(in.Email)
	if _, exists := s.store.FindUserByEmail(email); exists {
		metrics.AuthAttempts.WithLabelValues("sign_up", "failure").Inc()
		return Session{}, domain.AuthFailed("user with this email already exists")
	}
	hash, err := utils.HashPassword(in.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return Session{}, domain.Validation("password", err.Error())
	}
	if err != nil {
		return Session{}, err
	}

	actor := domain.Actor{UserID: domain.SystemActor.UserID, UserName: strings.TrimSpace(in.Name), IPAddress: in.IPAddress}
	u, err := s.store.CreateUser(ctx, actor, domain.CreateUserInput{
		Name:         in.Name,
		Email:        email,
		Role:         domain.DefaultRole,
		Status:       domain.StatusActive,
		PasswordHash: hash,
	})
	if errors.Is(err, domain.ErrConflict) {
		metrics.AuthAttempts.WithLabelValues("sign_up", "failure").Inc()
		return Session{}, domain.AuthFailed("user with this email already exists")
	}
	if err != nil {
		return Session{}, err
	}

	sess, err := s.open(ctx, u)
	if err != nil {
		return Session{}, err
	}
	metrics.AuthAttempts.WithLabelValues("sign_up", "success").Inc()
	s.log.Info("signed up", zap.String("user_id", u.ID))
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return domain.AuthFailed("invalid token")
	}
	return s.registry.Remove(ctx, claims.SessionID())
}

// ForgotPassword never reveals whether the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, ok := s.store.FindUserByEmail(email)
	if !ok || u.Status != domain.StatusActive {
		s.log.Debug("password reset for unknown or disabled account", zap.String("email", normEmail(email)))
		return nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return err
	}
	token := hex.EncodeToString(buf)
	expires := s.clock().Add(s.cfg.ResetTokenTTL)

	s.mu.Lock()
	for k, rt := range s.resets {
		if rt.userID == u.ID {
			delete(s.resets, k)
		}
	}
	s.resets[hashToken(token)] = resetToken{userID: u.ID, expires: expires}
	s.mu.Unlock()

	if err := s.notifier.NotifyReset(ctx, u, token, expires); err != nil {
		s.log.Warn("deliver reset token", zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if in.Password != in.ConfirmPassword {
		return domain.Validation("confirmPassword", "passwords do not match")
	}
	hash, err := utils.HashPassword(in.Password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return domain.Validation("password", err.Error())
	}
	if err != nil {
		return err
	}

	key := hashToken(in.Token)
	s.mu.Lock()
	rt, ok := s.resets[key]
	delete(s.resets, key)
	s.mu.Unlock()
	if !ok || s.clock().After(rt.expires) {
		return domain.AuthFailed("reset token is invalid or expired")
	}

	u, err := s.store.GetUser(rt.userID)
	if err != nil {
		return domain.AuthFailed("reset token is invalid or expired")
	}
	actor := domain.Actor{UserID: u.ID, UserName: u.Name, IPAddress: in.IPAddress}
	if err := s.store.SetPassword(ctx, actor, u.ID, hash); err != nil {
		return err
	}
	if err := s.registry.RemoveUser(ctx, u.ID); err != nil {
		s.log.Warn("revoke sessions after password reset", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.log.Info("password reset", zap.String("user_id", u.ID))
	return nil
}

// Verify checks the token signature and expiry, then the server-side session. Role and
// status come from the store, so changes apply to existing sessions.
func (s *Service) Verify(ctx context.Context, token string) (Principal, error) {
	claims, err := s.jwt.Parse(token)
	if err != nil {
		return Principal{}, domain.AuthFailed("invalid token")
	}
	uid, ok, err := s.registry.Touch(ctx, claims.SessionID(), s.clock())
	if err != nil {
		return Principal{}, err
	}
	if !ok || uid != claims.UID {
		return Principal{}, domain.AuthFailed("session expired or revoked")
	}
	u, err := s.store.GetUser(uid)
	if err != nil || u.Status != domain.StatusActive {
		return Principal{}, domain.AuthFailed("account is disabled")
	}
	return Principal{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, SessionID: claims.SessionID()}, nil
}

// SweepIdle drops sessions idle for longer than the session timeout, together with
// expired reset tokens and idle login limiters.
func (s *Service) SweepIdle(ctx context.Context) error {
	now := s.clock()
	removed, remaining, err := s.registry.Sweep(ctx, now)
	if err != nil {
		return err
	}
	metrics.ActiveSessions.Set(float64(remaining))

	s.mu.Lock()
	for k, rt := range s.resets {
		if now.After(rt.expires) {
			delete(s.resets, k)
		}
	}
	for email, l := range s.limiters {
		if l.TokensAt(now) >= float64(s.cfg.MaxLoginAttempts) {
			delete(s.limiters, email)
		}
	}
	s.mu.Unlock()

	s.log.Debug("session sweep", zap.Int("removed", removed), zap.Int("remaining", remaining))
	return nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
