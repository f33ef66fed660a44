package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"blogpage/internal/cache"
	"blogpage/internal/middleware"
	"blogpage/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionCookie = "session"
	tokenIssuer   = "blogpage"
	tokenAudience = "blogpage-web"
	sessionTTL    = 7 * 24 * time.Hour

	localsUserID = "userID"
	localsUser   = "currentUser"
	localsJTI    = "sessionJTI"
	localsExp    = "sessionExp"
)

var errInvalidSession = errors.New("invalid session token")

// sessionClaims is the part of a session token the server acts on.
type sessionClaims struct {
	UserID    uint
	JTI       string
	ExpiresAt time.Time
}

// generateToken issues a signed session token for userID.
func (s *Server) generateToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": now.Add(sessionTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8]),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// parseToken validates signature, expiry, issuer and audience.
func (s *Server) parseToken(raw string) (*sessionClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidSession
	}
	if issuer, ok := claims["iss"].(string); !ok || issuer != tokenIssuer {
		return nil, errInvalidSession
	}
	if audience, ok := claims["aud"].(string); !ok || audience != tokenAudience {
		return nil, errInvalidSession
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, errInvalidSession
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, errInvalidSession
	}

	out := &sessionClaims{UserID: uint(userID)}
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

// tokenFromRequest reads the session cookie, falling back to a Bearer header.
func tokenFromRequest(c *fiber.Ctx) string {
	if v := c.Cookies(sessionCookie); v != "" {
		return v
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
}

func clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

// login issues a fresh session for user.
func (s *Server) login(c *fiber.Ctx, user *models.User) error {
	token, err := s.generateToken(user.ID)
	if err != nil {
		return models.NewInternalError(err)
	}
	s.setSessionCookie(c, token)
	return nil
}

// revokeSession blacklists the token carried by this request until it expires.
func (s *Server) revokeSession(c *fiber.Ctx) {
	jti, _ := c.Locals(localsJTI).(string)
	if jti == "" || s.redis == nil {
		return
	}
	exp, _ := c.Locals(localsExp).(time.Time)
	ttl := time.Until(exp)
	if exp.IsZero() || ttl <= 0 {
		ttl = sessionTTL
	}
	if err := cache.RevokeToken(c.UserContext(), s.redis, jti, ttl); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "failed to revoke session",
			slog.String("error", err.Error()))
	}
}

// LoadSession resolves the session token, when present, to the acting user.
// Anonymous requests pass through untouched.
func (s *Server) LoadSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return c.Next()
		}

		claims, err := s.parseToken(raw)
		if err != nil {
			clearSessionCookie(c)
			return c.Next()
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := cache.IsTokenRevoked(c.UserContext(), s.redis, claims.JTI)
			if err != nil {
				middleware.Logger.WarnContext(c.UserContext(), "token revocation check failed",
					slog.String("error", err.Error()))
			} else if revoked {
				clearSessionCookie(c)
				return c.Next()
			}
		}

		user, err := s.userService.GetUser(c.UserContext(), claims.UserID)
		if err != nil {
			if models.IsNotFound(err) {
				clearSessionCookie(c)
				return c.Next()
			}
			return err
		}

		c.Locals(localsUserID, user.ID)
		c.Locals(localsUser, user)
		c.Locals(localsJTI, claims.JTI)
		c.Locals(localsExp, claims.ExpiresAt)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), user.ID))
		return c.Next()
	}
}

// AuthRequired sends anonymous visitors to the login page, remembering where
// they were headed. The JSON admin surface answers 401 instead.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if currentUser(c) != nil {
			return c.Next()
		}
		if wantsJSON(c) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication required"))
		}
		return c.Redirect(loginURL(c.OriginalURL()), fiber.StatusFound)
	}
}

// StaffRequired rejects non-staff users with 403.
// Must be placed after AuthRequired.
func (s *Server) StaffRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if user == nil || !user.IsStaff {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Staff access required"))
		}
		return c.Next()
	}
}

// currentUser returns the authenticated user, or nil for anonymous requests.
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localsUser).(*models.User)
	return user
}

// actorID returns the authenticated user's id, or 0.
func actorID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localsUserID).(uint)
	return id
}
