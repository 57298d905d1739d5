package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/wordtrail/wordtrail/domain/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AuthModule provides authentication and session lifecycle services.
type AuthModule struct {
	db      *gorm.DB
	service *AuthService
	dbPath  string
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule() *AuthModule {
	dbPath := os.Getenv("WORDTRAIL_DB_PATH")
	if dbPath == "" {
		dbPath = "wordtrail.db"
	}
	return &AuthModule{
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start initializes the auth module.
func (m *AuthModule) Start(ctx context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.User{}, &domain.Session{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	hasher := NewPasswordHasher()
	signer := NewTokenSigner(loadTokenConfig())

	m.service = NewAuthService(users, sessions, hasher, signer)

	if reaped, err := m.service.ReapExpiredSessions(ctx); err == nil && reaped > 0 {
		log.Printf("[auth] reaped %d expired sessions", reaped)
	}

	log.Printf("[auth] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"register",
		json.Unmarshal,
		json.Marshal,
		m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"login",
		json.Unmarshal,
		json.Marshal,
		m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"refresh-token",
		json.Unmarshal,
		json.Marshal,
		m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register refresh-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"logout",
		json.Unmarshal,
		json.Marshal,
		m.handleLogout,
	); err != nil {
		return fmt.Errorf("failed to register logout service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"validate-token",
		json.Unmarshal,
		json.Marshal,
		m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"whoami",
		json.Unmarshal,
		json.Marshal,
		m.handleWhoAmI,
	); err != nil {
		return fmt.Errorf("failed to register whoami service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		"delete-account",
		json.Unmarshal,
		json.Marshal,
		m.handleDeleteAccount,
	); err != nil {
		return fmt.Errorf("failed to register delete-account service: %w", err)
	}

	log.Printf("[auth] Registered services: register, login, refresh-token, logout, validate-token, whoami, delete-account")
	return nil
}

// handleRegister handles user registration.
func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (SessionResponse, error) {
	result, err := m.service.Register(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return SessionResponse{}, err
	}
	return sessionResponse(result), nil
}

// handleLogin handles user login.
func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	result, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		return SessionResponse{}, err
	}
	return sessionResponse(result), nil
}

// handleRefresh handles session rotation.
func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (SessionResponse, error) {
	result, err := m.service.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return SessionResponse{}, err
	}
	return sessionResponse(result), nil
}

// handleLogout handles session invalidation. It never fails.
func (m *AuthModule) handleLogout(ctx context.Context, req LogoutRequest, _ *mono.Msg) (LogoutResponse, error) {
	_ = m.service.Logout(ctx, req.RefreshToken)
	return LogoutResponse{LoggedOut: true}, nil
}

// handleValidateToken handles access-token validation for the gateway.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.signer.Verify(TokenKindAccess, req.Token)
	if err != nil {
		// The external error stays generic; only logs distinguish the cause.
		if errors.Is(err, ErrExpiredToken) {
			log.Printf("[auth] rejected expired access token")
		} else {
			log.Printf("[auth] rejected invalid access token")
		}
		return ValidateTokenResponse{
			Valid: false,
			Error: "invalid token",
		}, nil // Return response, not error, for validation failures
	}

	return ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
	}, nil
}

// handleWhoAmI restores identity from an access token.
func (m *AuthModule) handleWhoAmI(ctx context.Context, req WhoAmIRequest, _ *mono.Msg) (UserPayload, error) {
	profile, err := m.service.WhoAmI(ctx, req.AccessToken)
	if err != nil {
		return UserPayload{}, err
	}
	return userPayload(*profile), nil
}

// handleDeleteAccount soft-deletes the caller's account and revokes its
// sessions.
func (m *AuthModule) handleDeleteAccount(ctx context.Context, req DeleteAccountRequest, _ *mono.Msg) (DeleteAccountResponse, error) {
	if err := m.service.DeleteAccount(ctx, req.AccessToken); err != nil {
		return DeleteAccountResponse{}, err
	}
	return DeleteAccountResponse{Deleted: true}, nil
}

func sessionResponse(result *AuthResult) SessionResponse {
	return SessionResponse{
		User:         userPayload(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresIn:    result.Tokens.ExpiresIn,
		TokenType:    result.Tokens.TokenType,
	}
}

func userPayload(p domain.Profile) UserPayload {
	return UserPayload{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt,
	}
}

// loadTokenConfig loads token signer configuration from environment variables.
func loadTokenConfig() TokenConfig {
	config := DefaultTokenConfig()

	if secret := os.Getenv("JWT_ACCESS_SECRET"); secret != "" {
		config.AccessSecret = secret
	}
	if secret := os.Getenv("JWT_REFRESH_SECRET"); secret != "" {
		config.RefreshSecret = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		config.Issuer = issuer
	}
	if ttl := os.Getenv("JWT_ACCESS_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.AccessTTL = d
		}
	}
	if ttl := os.Getenv("JWT_REFRESH_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.RefreshTTL = d
		}
	}

	return config
}
