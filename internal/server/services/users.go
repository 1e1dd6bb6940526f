package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/groupledger/internal/common"
	"github.com/dmitrijs2005/groupledger/internal/dbx"
	"github.com/dmitrijs2005/groupledger/internal/server/auth"
	"github.com/dmitrijs2005/groupledger/internal/server/config"
	"github.com/dmitrijs2005/groupledger/internal/server/models"
	"github.com/dmitrijs2005/groupledger/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var (
	hashPassword = func(password string) (string, error) {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
		return string(h), err
	}
	comparePassword = func(hash, password string) bool {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
)

var errBadCredentials = common.NewError(common.ErrorUnauthenticated, "invalid email or password")

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User   *models.User
	Tokens *TokenPair
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	issuer                       auth.Issuer
	refreshTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		issuer:                       auth.NewJWT(cfg.SecretKey, cfg.AccessTokenValidityDuration),
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", invalid("invalid email address")
	}
	if len(email) > 255 {
		return "", invalid("email must be at most 255 characters")
	}
	return email, nil
}

func validateCredentials(email, password, name string) (string, string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", "", err
	}
	if n := len([]rune(password)); n < 8 || n > 128 {
		return "", "", invalid("password must be between 8 and 128 characters")
	}
	name, err = requireText("name", name, 1, 50)
	if err != nil {
		return "", "", err
	}
	return email, name, nil
}

func (s *UserService) createUser(ctx context.Context, db dbx.DBTX, email, password, name string) (*models.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	user, err := s.repomanager.Users(db).Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// CreateUser registers an account without issuing tokens.
func (s *UserService) CreateUser(ctx context.Context, email, password, name string) (*models.User, error) {
	email, name, err := validateCredentials(email, password, name)
	if err != nil {
		return nil, err
	}
	return s.createUser(ctx, s.db, email, password, name)
}

// Register creates the account and its first token pair in one transaction.
func (s *UserService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email, name, err := validateCredentials(email, password, name)
	if err != nil {
		return nil, err
	}

	var res AuthResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.createUser(ctx, tx, email, password, name)
		if err != nil {
			return err
		}
		pair, err := s.generateTokenPair(ctx, tx, user)
		if err != nil {
			return err
		}
		res = AuthResult{User: user, Tokens: pair}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid("email and password are required")
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if !comparePassword(user.PasswordHash, password) {
		return nil, errBadCredentials
	}

	pair, err := s.generateTokenPair(ctx, s.db, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: pair}, nil
}

// RefreshToken rotates refreshToken: the old token is deleted and a new pair
// is issued in the same transaction.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, invalid("refresh token is required")
	}

	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		token, err := repo.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewError(common.ErrorUnauthenticated, "invalid refresh token")
			}
			return fmt.Errorf("error searching refresh token: %w", err)
		}

		if token.Expired(timeNow()) {
			return fmt.Errorf("%w: %w", common.NewError(common.ErrorUnauthenticated, "refresh token expired"), common.ErrRefreshTokenExpired)
		}

		if err := repo.Delete(ctx, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.NewError(common.ErrorUnauthenticated, "invalid refresh token")
			}
			return fmt.Errorf("error loading user: %w", err)
		}

		pair, err = s.generateTokenPair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	return pair, nil
}

// Logout forgets the refresh token. Unknown tokens are not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

func (s *UserService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewError(common.ErrorNotFound, "user not found")
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

// PurgeExpiredRefreshTokens deletes refresh tokens past their expiry.
func (s *UserService) PurgeExpiredRefreshTokens(ctx context.Context) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, timeNow())
	if err != nil {
		return 0, fmt.Errorf("error purging refresh tokens: %w", err)
	}
	return n, nil
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) generateTokenPair(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	accessToken, err := s.issuer.Issue(auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, fmt.Errorf("%w: signing access token: %v", common.ErrorInternal, err)
	}

	refreshToken, err := s.generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: generating refresh token: %v", common.ErrorInternal, err)
	}

	if err := s.repomanager.RefreshTokens(db).Create(ctx, user.ID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
