package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const sessionKey contextKey = "session"

// Claims is the portal's bearer token payload. The subject is the user id;
// for doctors it is also their doctor id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
	Name  string   `json:"name,omitempty"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey switches to HS256 verification. Development and tests only.
	SigningKey []byte
}

func (cfg JWTConfig) keyfunc() jwt.Keyfunc {
	if len(cfg.SigningKey) > 0 {
		return func(*jwt.Token) (interface{}, error) { return cfg.SigningKey, nil }
	}
	url := cfg.JWKSURL
	if url == "" && cfg.Issuer != "" {
		if discovered, err := discoverJWKSURL(cfg.Issuer); err == nil {
			url = discovered
		}
	}
	return NewKeyCache(url, defaultJWKSCacheTTL).Keyfunc
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	keyfunc := cfg.keyfunc()
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, keyfunc, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			setSession(c, Session{UserID: claims.Subject, Roles: claims.Roles})
			return next(c)
		}
	}
}

// DevAuthMiddleware trusts X-Dev-User and X-Dev-Roles headers and falls back
// to an admin session. Never mount it outside development.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := Session{UserID: "dev-user", Roles: []string{RoleAdmin}}
			if u := c.Request().Header.Get("X-Dev-User"); u != "" {
				sess.UserID = u
			}
			if r := c.Request().Header.Get("X-Dev-Roles"); r != "" {
				sess.Roles = strings.Split(r, ",")
			}
			setSession(c, sess)
			return next(c)
		}
	}
}

func setSession(c echo.Context, sess Session) {
	ctx := WithSession(c.Request().Context(), sess)
	c.SetRequest(c.Request().WithContext(ctx))
}

func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the caller's session; ok is false for
// anonymous requests.
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}

func UserIDFromContext(ctx context.Context) string {
	sess, _ := SessionFromContext(ctx)
	return sess.UserID
}

func RolesFromContext(ctx context.Context) []string {
	sess, _ := SessionFromContext(ctx)
	return sess.Roles
}
