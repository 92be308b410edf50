package services

import (
	"strings"
	"time"

	"github.com/sharpline/sharpline-go/internal/domain/user"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/security"
)

// AuthConfig holds the secrets the auth service signs and checks with.
type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string
	AdminTokenTTL     time.Duration
	ViewerTokenTTL    time.Duration
}

// AuthService handles viewer identity and admin authentication.
type AuthService struct {
	config AuthConfig
	logger *logging.ChanneledLogger
}

// NewAuthService creates a new authentication service
func NewAuthService(cfg AuthConfig, logger *logging.ChanneledLogger) *AuthService {
	if cfg.AdminTokenTTL <= 0 {
		cfg.AdminTokenTTL = 24 * time.Hour
	}
	if cfg.ViewerTokenTTL <= 0 {
		cfg.ViewerTokenTTL = 24 * time.Hour
	}
	return &AuthService{config: cfg, logger: logger}
}

// AuthResult holds authentication result data
type AuthResult struct {
	Token   string `json:"token,omitempty"`
	Role    string `json:"role,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ResolveViewer maps a bearer token to a viewer. A missing, malformed or
// expired token is an anonymous viewer, not an error.
func (a *AuthService) ResolveViewer(bearer string, viewportWidth int) user.Viewer {
	viewer := user.Anonymous()
	viewer.ViewportWidth = viewportWidth

	token := strings.TrimSpace(strings.TrimPrefix(bearer, "Bearer "))
	if token == "" {
		return viewer
	}

	claims, err := security.ValidateJWT(token, a.config.JWTSecret)
	if err != nil {
		a.logger.Auth().Debug("Viewer token rejected", "error", err.Error())
		return viewer
	}
	if tokenType, _ := claims["type"].(string); tokenType == security.TokenTypeAdmin {
		return viewer
	}

	userID := security.SubjectFromClaims(claims)
	if userID == "" {
		return viewer
	}
	viewer.UserID = userID
	viewer.Authenticated = true
	return viewer
}

// AuthenticateAdmin checks password against the configured bcrypt hash
// and issues an admin token.
func (a *AuthService) AuthenticateAdmin(password string) *AuthResult {
	if !security.CheckPassword(a.config.AdminPasswordHash, password) {
		a.logger.LogAuthOperation("admin_login", "admin", false)
		return &AuthResult{Success: false, Error: "Invalid credentials"}
	}

	token, err := security.GenerateAdminToken(a.config.JWTSecret, a.config.AdminTokenTTL)
	if err != nil {
		a.logger.Auth().Error("Admin token generation failed", "error", err.Error())
		return &AuthResult{Success: false, Error: "Token generation failed"}
	}

	a.logger.LogAuthOperation("admin_login", "admin", true)
	return &AuthResult{Token: token, Role: security.RoleAdmin, Success: true}
}

// ValidateAdminToken checks if a token belongs to an admin user
func (a *AuthService) ValidateAdminToken(tokenString string) bool {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	claims, err := security.ValidateJWT(tokenString, a.config.JWTSecret)
	if err != nil {
		return false
	}
	tokenType, _ := claims["type"].(string)
	return tokenType == security.TokenTypeAdmin && security.RoleFromClaims(claims) == security.RoleAdmin
}

// IssueViewerToken signs a viewer token for userID. The hosted auth
// platform issues these in production; this is for local tooling and tests.
func (a *AuthService) IssueViewerToken(userID string) (string, error) {
	return security.GenerateViewerToken(userID, a.config.JWTSecret, a.config.ViewerTokenTTL)
}
