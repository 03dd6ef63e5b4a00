package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// SessionCookie is the cookie the auth provider stores its session token in.
const SessionCookie = "__session"

// Identity is the signed-in user behind a request.
type Identity struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Token  string `json:"-"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type contextKey struct{}

var ErrNoIdentity = errors.New("not signed in")

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}

var ErrNoSecret = errors.New("no signing secret configured")

// Verifier turns session tokens into identities. Tokens are only decoded
// without a signature check when unverified is set; otherwise an empty secret
// rejects every token.
type Verifier struct {
	secret     []byte
	unverified bool
	parser     *jwt.Parser
}

func NewVerifier(secret string, unverified bool, log *logrus.Entry) *Verifier {
	switch {
	case secret == "" && unverified:
		log.Warn("AUTH_INSECURE_DEV set: session tokens are decoded without verification")
	case secret == "":
		log.Warn("JWT_SECRET not set: every caller is anonymous")
	}
	return &Verifier{
		secret:     []byte(secret),
		unverified: unverified && secret == "",
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

func (v *Verifier) Identify(token string) (Identity, error) {
	var c claims
	switch {
	case len(v.secret) == 0 && !v.unverified:
		return Identity{}, ErrNoSecret
	case v.unverified:
		if _, _, err := v.parser.ParseUnverified(token, &c); err != nil {
			return Identity{}, err
		}
	default:
		_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
			return v.secret, nil
		})
		if err != nil {
			return Identity{}, err
		}
	}
	if c.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{UserID: c.Subject, Email: c.Email, Token: token}, nil
}

// bearerToken reads the token from the Authorization header or the session
// cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware resolves the caller's identity. Requests without a usable token
// continue anonymously.
func Middleware(v *Verifier, log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			c.Next()
			return
		}
		id, err := v.Identify(token)
		if err != nil {
			log.WithError(err).Debug("ignoring unusable session token")
			c.Next()
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireIdentity rejects anonymous callers.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := FromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrNoIdentity.Error()})
			return
		}
		c.Next()
	}
}

// RequestTokens hands the caller's session token to the backend client.
type RequestTokens struct{}

func (RequestTokens) Token(ctx context.Context) (string, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return "", nil
	}
	if id.Token == "" {
		return "", ErrNoIdentity
	}
	return id.Token, nil
}
