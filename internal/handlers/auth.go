package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/proctoring-service/internal/config"
	"github.com/SAP-F-2025/proctoring-service/internal/services"
	"github.com/SAP-F-2025/proctoring-service/internal/utils"
)

const identityKey = "identity"

// Identity is the authenticated caller taken from a bearer token.
type Identity struct {
	ID    string
	Name  string
	Email string
	Admin bool
}

// Subject is the most stable identifier available.
func (i *Identity) Subject() string {
	if i.ID != "" {
		return i.ID
	}
	return i.Name
}

// Matches reports whether studentID names this identity.
func (i *Identity) Matches(studentID string) bool {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return false
	}
	for _, candidate := range []string{i.ID, i.Name, i.Email} {
		if candidate != "" && strings.EqualFold(candidate, studentID) {
			return true
		}
	}
	return false
}

// TokenParser validates a bearer token and returns its identity.
type TokenParser func(token string) (*Identity, error)

// NewCasdoorTokenParser configures the Casdoor SDK and verifies tokens
// against the configured certificate.
func NewCasdoorTokenParser(cfg config.AuthConfig) TokenParser {
	casdoorsdk.InitConfig(cfg.Endpoint, cfg.ClientID, cfg.ClientSecret, cfg.Certificate, cfg.OrganizationName, cfg.ApplicationName)
	return func(token string) (*Identity, error) {
		claims, err := casdoorsdk.ParseJwtToken(token)
		if err != nil {
			return nil, err
		}
		return &Identity{
			ID:    claims.Id,
			Name:  claims.Name,
			Email: claims.Email,
			Admin: claims.IsAdmin,
		}, nil
	}
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(parse TokenParser, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
				Code:    CodeUnauthorized,
			})
			return
		}

		identity, err := parse(strings.TrimSpace(token))
		if err != nil {
			logger.Warn("Rejected bearer token", "error", err, "request_id", utils.RequestID(c))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid bearer token",
				Code:    CodeUnauthorized,
			})
			return
		}

		c.Set(identityKey, identity)
		c.Set("user_id", identity.Subject())
		c.Next()
	}
}

// RequireReviewer admits administrators and the configured reviewer
// identities. It is a no-op when auth is off.
func RequireReviewer(reviewers []string, logger utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFromContext(c)
		if identity == nil || identity.Admin {
			c.Next()
			return
		}
		for _, reviewer := range reviewers {
			if identity.Matches(reviewer) {
				c.Next()
				return
			}
		}

		logger.Warn("Rejected review from non-reviewer", "subject", identity.Subject(), "request_id", utils.RequestID(c))
		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Reviewer role required",
			Code:    CodeForbidden,
		})
	}
}

// IdentityFromContext returns the authenticated caller, or nil when auth is off.
func IdentityFromContext(c *gin.Context) *Identity {
	if v, exists := c.Get(identityKey); exists {
		if identity, ok := v.(*Identity); ok {
			return identity
		}
	}
	return nil
}

// authorizeStudent binds the request's studentId to the token identity.
func authorizeStudent(c *gin.Context, studentID string) error {
	identity := IdentityFromContext(c)
	if identity == nil || identity.Matches(studentID) {
		return nil
	}
	return &services.IdentityMismatchError{Authenticated: identity.Subject(), Requested: studentID}
}
