package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"scooter-shop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCredentials is returned for a wrong login/password pair
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned when a request carries no live admin session
	ErrUnauthorized = errors.New("not authorized")
)

// Credentials is the single admin login/password pair
type Credentials struct {
	Login    string
	Password string
}

// Options configures session lifetime and the cookie carrying the token
type Options struct {
	TTL          time.Duration
	CookieName   string
	CookieSecure bool
}

// Gate authenticates the admin and guards protected routes
type Gate struct {
	sessions SessionStore
	creds    Credentials
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

// NewGate creates a gate backed by sessions
func NewGate(sessions SessionStore, creds Credentials, opts Options) *Gate {
	if opts.TTL <= 0 {
		opts.TTL = 4 * time.Hour
	}
	if opts.CookieName == "" {
		opts.CookieName = "shop_session"
	}
	return &Gate{
		sessions: sessions,
		creds:    creds,
		opts:     opts,
		now:      time.Now,
		logger:   util.ComponentLogger("auth"),
	}
}

// Authenticate checks the credential pair and opens a new admin session
func (g *Gate) Authenticate(ctx context.Context, login, password string) (*Session, error) {
	ctx, span := util.StartSpan(ctx, "Gate.Authenticate")
	defer span.End()

	loginOK := subtle.ConstantTimeCompare([]byte(login), []byte(g.creds.Login)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(g.creds.Password)) == 1
	if !loginOK || !passwordOK {
		util.LoginAttemptsTotal.WithLabelValues("rejected").Inc()
		g.logger.Warn("Rejected admin login", zap.String("login", login))
		return nil, ErrInvalidCredentials
	}

	session := &Session{
		Token:         uuid.NewString(),
		Authenticated: true,
		ExpiresAt:     g.now().Add(g.opts.TTL),
	}
	if err := g.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	util.LoginAttemptsTotal.WithLabelValues("accepted").Inc()
	g.logger.Info("Admin logged in", zap.Time("expires_at", session.ExpiresAt))
	return session, nil
}

// Check returns ErrUnauthorized unless token maps to an active session
func (g *Gate) Check(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}
	session, err := g.sessions.Get(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if !session.Active(g.now()) {
		return ErrUnauthorized
	}
	return nil
}

// Logout drops the session behind token; unknown tokens are ignored
func (g *Gate) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return g.sessions.Delete(ctx, token)
}

// Token reads the session token from the request cookie
func (g *Gate) Token(c *gin.Context) string {
	token, err := c.Cookie(g.opts.CookieName)
	if err != nil {
		return ""
	}
	return token
}

// SetCookie hands the session token to the client
func (g *Gate) SetCookie(c *gin.Context, session *Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.opts.CookieName, session.Token, int(g.opts.TTL.Seconds()), "/", "", g.opts.CookieSecure, true)
}

// ClearCookie expires the session cookie on the client
func (g *Gate) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(g.opts.CookieName, "", -1, "/", "", g.opts.CookieSecure, true)
}

// RequireAuth rejects requests without an active admin session
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := g.Check(c.Request.Context(), g.Token(c))
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authorized"})
		default:
			g.logger.Error("Session lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session_error"})
		}
	}
}
