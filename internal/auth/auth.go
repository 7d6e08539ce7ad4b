// Package auth issues and verifies sessions for the local backends.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-lag/internal/database"
	"github.com/npezzotti/go-lag/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	userIdClaim = "user-id"
	expClaim    = "exp"

	DefaultTTL = time.Hour * 24

	// shortid's default alphabet contains '-', the room id separator
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_~"
)

// Authenticator is implemented by every backend able to sign users in.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (types.Session, error)
	SignIn(ctx context.Context, email, password string) (types.Session, error)
	Verify(ctx context.Context, token string) (string, error)
}

type Local struct {
	accounts   database.AccountRepository
	signingKey []byte
	ttl        time.Duration
	ids        *shortid.Shortid
	now        func() time.Time
}

var _ Authenticator = (*Local)(nil)

func NewLocal(accounts database.AccountRepository, signingKey []byte, ttl time.Duration) (*Local, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("signing key is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	ids, err := shortid.New(1, idAlphabet, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	return &Local{
		accounts:   accounts,
		signingKey: signingKey,
		ttl:        ttl,
		ids:        ids,
		now:        time.Now,
	}, nil
}

func (l *Local) SignUp(ctx context.Context, email, password string) (types.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.Session{}, ErrInvalidCredentials
	}

	hash, err := hashPassword(password)
	if err != nil {
		return types.Session{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := l.ids.Generate()
	if err != nil {
		return types.Session{}, fmt.Errorf("generate user id: %w", err)
	}

	account, err := l.accounts.CreateAccount(ctx, database.CreateAccountParams{
		Id:           id,
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, database.ErrConflict) {
		return types.Session{}, ErrEmailTaken
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("create account: %w", err)
	}

	return l.issue(account.Id)
}

func (l *Local) SignIn(ctx context.Context, email, password string) (types.Session, error) {
	account, err := l.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, database.ErrNotFound) {
		return types.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("get account: %w", err)
	}

	if !verifyPassword(account.PasswordHash, password) {
		return types.Session{}, ErrInvalidCredentials
	}

	return l.issue(account.Id)
}

func (l *Local) Verify(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return l.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return "", fmt.Errorf("%w: invalid user id claim", ErrInvalidToken)
	}

	return userId, nil
}

func (l *Local) issue(userId string) (types.Session, error) {
	exp := l.now().Add(l.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIdClaim: userId,
		expClaim:    exp.Unix(),
	})

	signed, err := token.SignedString(l.signingKey)
	if err != nil {
		return types.Session{}, fmt.Errorf("sign token: %w", err)
	}

	return types.Session{UserId: userId, Token: signed, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(passwd string) (string, error) {
	passwdHash, err := bcrypt.GenerateFromPassword([]byte(passwd), bcrypt.DefaultCost)
	return string(passwdHash), err
}

func verifyPassword(passwdHash, passwd string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(passwdHash), []byte(passwd))
	return err == nil
}
