package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/ledgersync/internal/auth"
	"github.com/mmynk/ledgersync/internal/remote"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

var _ remote.AuthServiceHandler = (*AuthService)(nil)

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Register creates a new owner.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[remote.RegisterRequest]) (*connect.Response[remote.RegisterResponse], error) {
	s.logger.Info("Register request", "owner_id", req.Msg.OwnerID)

	owner, err := s.authenticator.Register(ctx, req.Msg.OwnerID, req.Msg.Password)
	if err != nil {
		s.logger.Error("Registration failed", "owner_id", req.Msg.OwnerID, "error", err)
		switch {
		case errors.Is(err, auth.ErrOwnerExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingOwner):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	token, err := s.jwtManager.Generate(owner.ID)
	if err != nil {
		s.logger.Error("Failed to generate token", "owner_id", owner.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Owner registered successfully", "owner_id", owner.ID)
	return connect.NewResponse(&remote.RegisterResponse{OwnerID: owner.ID, Token: token}), nil
}

// Login authenticates an owner and returns a JWT token together with the
// stored password hash, which the device uses to open its ledger.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[remote.LoginRequest]) (*connect.Response[remote.LoginResponse], error) {
	s.logger.Info("Login request", "owner_id", req.Msg.OwnerID)

	if req.Msg.OwnerID == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	owner, err := s.authenticator.Authenticate(ctx, req.Msg.OwnerID, req.Msg.Password)
	if err != nil {
		s.logger.Warn("Login failed", "owner_id", req.Msg.OwnerID, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, err := s.jwtManager.Generate(owner.ID)
	if err != nil {
		s.logger.Error("Failed to generate token", "owner_id", owner.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	s.logger.Info("Owner logged in successfully", "owner_id", owner.ID)
	return connect.NewResponse(&remote.LoginResponse{
		OwnerID:      owner.ID,
		Token:        token,
		PasswordHash: owner.PasswordHash,
	}), nil
}
