package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/groupsplit/internal/auth"
	"github.com/mmynk/groupsplit/internal/metrics"
	"github.com/mmynk/groupsplit/internal/storage"
	"github.com/mmynk/groupsplit/pkg/api"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	metrics       *metrics.Metrics
	cookieSecure  bool
	logger        *slog.Logger
}

var _ api.AuthServiceHandler = (*AuthService)(nil)

// NewAuthService creates a new authentication service.
func NewAuthService(
	authenticator auth.Authenticator,
	jwtManager *auth.JWTManager,
	users storage.UserStore,
	m *metrics.Metrics,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		metrics:       m,
		cookieSecure:  cookieSecure,
		logger:        logger,
	}
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	s.logger.Info("Register request", "username", req.Msg.Username, "email", req.Msg.Email)

	user, err := s.authenticator.Register(ctx, auth.RegistrationInput{
		Username:  req.Msg.Username,
		FirstName: req.Msg.FirstName,
		LastName:  req.Msg.LastName,
		Email:     req.Msg.Email,
		Password:  req.Msg.Password,
		Password1: req.Msg.Password1,
	})
	if err != nil {
		s.logger.Warn("Registration failed", "username", req.Msg.Username, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "username", user.Username)
	return connect.NewResponse(&api.RegisterResponse{
		Message: "User registered successfully.",
		User:    toAPIUser(user),
	}), nil
}

// Login authenticates a user, returns an access token and sets the refresh cookie.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	s.logger.Info("Login request", "email", req.Msg.Email)

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	access, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errInternal)
	}
	refresh, err := s.jwtManager.GenerateRefresh(user)
	if err != nil {
		s.logger.Error("Failed to generate refresh token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errInternal)
	}

	resp := connect.NewResponse(&api.LoginResponse{
		Message: "User login successfully",
		Success: true,
		Access:  access,
		Refresh: refresh,
		User:    toAPIUser(user),
	})
	resp.Header().Add("Set-Cookie", auth.RefreshCookie(refresh, s.cookieSecure).String())

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return resp, nil
}

// Refresh exchanges a refresh token, from the body or the refresh cookie,
// for a new access token.
func (s *AuthService) Refresh(ctx context.Context, req *connect.Request[api.RefreshRequest]) (*connect.Response[api.RefreshResponse], error) {
	token := req.Msg.Refresh
	if token == "" {
		token = auth.RefreshTokenFromHeader(req.Header())
	}

	claims, err := s.jwtManager.ValidateRefresh(token)
	if err != nil {
		s.logger.Warn("Refresh rejected", "error", err)
		return nil, toConnectError(s.metrics, err)
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
	}
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}

	access, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errInternal)
	}

	s.logger.Debug("Access token refreshed", "user_id", user.ID)
	return connect.NewResponse(&api.RefreshResponse{Access: access}), nil
}

// Logout clears the refresh cookie. Access tokens are stateless and simply expire.
func (s *AuthService) Logout(ctx context.Context, req *connect.Request[api.LogoutRequest]) (*connect.Response[api.LogoutResponse], error) {
	s.logger.Info("Logout request")
	resp := connect.NewResponse(&api.LogoutResponse{Message: "Logged out."})
	resp.Header().Add("Set-Cookie", auth.ClearRefreshCookie(s.cookieSecure).String())
	return resp, nil
}

// GetCurrentUser returns the currently authenticated user's information.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, p.UserID)
	if err != nil {
		return nil, toConnectError(s.metrics, err)
	}

	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}
