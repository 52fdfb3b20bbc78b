package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/auth"
	"github.com/dmitrijs2005/medreport/internal/server/config"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Session is what a successful register or login hands back.
type Session struct {
	User  *models.User
	Token string
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginCredentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserDocuments removes every archived document of a user.
type UserDocuments interface {
	DeleteUser(ctx context.Context, userID string) (int, error)
}

// UserService handles accounts:
// - Register: create a user and issue a token
// - Login: verify credentials and issue a token
// - DeleteUser: remove the account with all of its reports
type UserService struct {
	repomanager repomanager.RepositoryManager
	documents   UserDocuments
	audit       auditor
	logger      logging.Logger

	jwtSecret  []byte
	tokenTTL   time.Duration
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserService constructs a UserService. documents may be nil when no
// archive is configured.
func NewUserService(m repomanager.RepositoryManager, cfg *config.Config, rec audit.Recorder, documents UserDocuments, logger logging.Logger) *UserService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	logger = logger.With("module", "users")
	return &UserService{
		repomanager: m,
		documents:   documents,
		audit:       newAuditor(rec, logger),
		logger:      logger,
		jwtSecret:   []byte(cfg.JWTSecret),
		tokenTTL:    cfg.TokenTTL,
		bcryptCost:  cost,
	}
}

// Register creates an account for email. A taken email yields
// common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string) (*Session, error) {
	if err := validateStruct(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	user := &models.User{
		ID:           id.String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	err = s.repomanager.Update(ctx, func(ctx context.Context, r repomanager.Repos) error {
		_, err := r.Users().Create(ctx, user)
		return err
	})
	if err != nil {
		s.audit.user(ctx, "", audit.ActionUserRegister, "", err)
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	s.audit.user(ctx, user.ID, audit.ActionUserRegister, user.ID, nil)

	return s.session(user)
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both yield common.ErrorInvalidCredentials after a bcrypt
// comparison of similar cost.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if err := validateStruct(loginCredentials{Email: email, Password: password}); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.repomanager.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		u, err := r.Users().GetUserByEmail(ctx, email)
		user = u
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		s.audit.user(ctx, "", audit.ActionUserLoginFailed, "", common.ErrorInvalidCredentials)
		return nil, common.ErrorInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.audit.user(ctx, user.ID, audit.ActionUserLoginFailed, user.ID, common.ErrorInvalidCredentials)
		return nil, common.ErrorInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.audit.user(ctx, user.ID, audit.ActionUserLogin, user.ID, nil)
	return s.session(user)
}

// DeleteUser removes the account and every report it owns in one store
// transaction, then best-effort removes archived documents.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	err := s.repomanager.Update(ctx, func(ctx context.Context, r repomanager.Repos) error {
		if _, err := r.Users().GetUserByID(ctx, userID); err != nil {
			return err
		}
		if _, err := r.Reports().DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return r.Users().Delete(ctx, userID)
	})
	s.audit.user(ctx, userID, audit.ActionUserDelete, userID, err)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}

	if s.documents != nil {
		n, derr := s.documents.DeleteUser(ctx, userID)
		if derr != nil {
			s.logger.Error(ctx, "archived documents not removed", "user", userID, "deleted", n, "error", derr)
		} else if n > 0 {
			s.logger.Info(ctx, "archived documents removed", "user", userID, "deleted", n)
		}
	}
	return nil
}

// --- helpers below ---

func (s *UserService) session(user *models.User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &Session{User: user, Token: token}, nil
}

// dummy returns a hash that no password matches, computed once at the
// service's cost.
func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword(common.GenerateRandByteArray(32), s.bcryptCost)
	})
	return s.dummyHash
}
