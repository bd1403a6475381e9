package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/aoculi/sanctuary/internal/crypto"
	"github.com/aoculi/sanctuary/internal/errs"
	"github.com/aoculi/sanctuary/internal/limiter"
	"github.com/aoculi/sanctuary/internal/model"
	"github.com/aoculi/sanctuary/internal/repository"
)

// Login and password length bounds.
const (
	loginMinLen    = 3
	loginMaxLen    = 255
	passwordMinLen = 8
	passwordMaxLen = 128
)

// wmkNonceLen is the required wrapped-master-key nonce length.
const wmkNonceLen = 24

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	JWTID  string
}

// LoginResult bundles what a successful login returns to the client.
type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresAt int64
}

// AuthService defines authentication and session operations.
type AuthService interface {
	// Register creates a new user with a hashed verifier and fresh KDF params.
	Register(ctx context.Context, login, password, addr string) (*model.User, error)
	// Login authenticates and issues a bearer token backed by a session row.
	Login(ctx context.Context, login, password, addr string) (*LoginResult, error)
	// Logout revokes the session; revoking twice is a no-op.
	Logout(ctx context.Context, jwtID string) error
	// Introspect returns the session backing the presented token.
	Introspect(ctx context.Context, jwtID string) (*model.Session, error)
	// Refresh extends the session, reusing the same jwt-id in a fresh token.
	Refresh(ctx context.Context, userID, jwtID string) (token string, expiresAt int64, err error)
	// SetWrappedKey stores the client's wrapped master key.
	SetWrappedKey(ctx context.Context, userID string, wk model.WrappedKey) error
	// Authenticate verifies a bearer token and its session atomically.
	Authenticate(ctx context.Context, token string) (Identity, error)
}

type AuthServiceImpl struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	signKey    []byte
	tokenTTL   time.Duration
	lim        *limiter.Limits
	hashParams pkgcrypto.Params
	benchHash  string
}

// NewAuthService constructs AuthService with required dependencies. A
// benchmark hash is precomputed so logins against unknown users still pay
// the full verification cost.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	signKey []byte,
	tokenTTL time.Duration,
	lim *limiter.Limits,
	hashParams pkgcrypto.Params,
) (*AuthServiceImpl, error) {
	bench, err := pkgcrypto.HashPassword("sanctuary-benchmark", hashParams)
	if err != nil {
		return nil, err
	}
	return &AuthServiceImpl{
		users:      users,
		sessions:   sessions,
		signKey:    signKey,
		tokenTTL:   tokenTTL,
		lim:        lim,
		hashParams: hashParams,
		benchHash:  bench,
	}, nil
}

// Register creates a new user record with per-user KDF parameters.
// The password is hashed before the uniqueness check runs, so a taken login
// costs the same as a fresh one.
func (s *AuthServiceImpl) Register(ctx context.Context, login, password, addr string) (*model.User, error) {
	if err := s.allowAuthAttempt(addr, login); err != nil {
		return nil, err
	}
	if len(login) < loginMinLen || len(login) > loginMaxLen {
		return nil, fmt.Errorf("login length: %w", errs.ErrValidation)
	}
	if len(password) < passwordMinLen || len(password) > passwordMaxLen {
		return nil, fmt.Errorf("password length: %w", errs.ErrValidation)
	}

	hash, err := pkgcrypto.HashPassword(password, s.hashParams)
	if err != nil {
		return nil, err
	}
	kdf, err := pkgcrypto.GenerateKDFParams()
	if err != nil {
		return nil, err
	}
	id, err := newID("u_")
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	u := &model.User{
		ID:        id,
		Login:     login,
		PwdHash:   hash,
		KDF:       kdf,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return nil, fmt.Errorf("login taken: %w", errs.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}

// Login authenticates with rate limiting by client address and login
// identifier. An absent user is verified against a benchmark hash so the
// response time does not reveal whether the login exists.
func (s *AuthServiceImpl) Login(ctx context.Context, login, password, addr string) (*LoginResult, error) {
	if err := s.allowAuthAttempt(addr, login); err != nil {
		return nil, err
	}

	u, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			_, _ = pkgcrypto.VerifyPassword(password, s.benchHash)
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	ok, err := pkgcrypto.VerifyPassword(password, u.PwdHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrUnauthorized
	}

	now := time.Now()
	// Opportunistic GC of expired sessions; failure is not fatal.
	_ = s.sessions.DeleteExpired(ctx, now.UnixMilli())

	jwtID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	sessionID, err := newID("s_")
	if err != nil {
		return nil, err
	}
	token, exp, err := s.issueToken(u.ID, jwtID.String(), now)
	if err != nil {
		return nil, err
	}
	sess := &model.Session{
		ID:        sessionID,
		UserID:    u.ID,
		JWTID:     jwtID.String(),
		ExpiresAt: exp.UnixMilli(),
		CreatedAt: now.UnixMilli(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: token, ExpiresAt: exp.UnixMilli()}, nil
}

// Logout revokes the session behind the token's jwt-id.
func (s *AuthServiceImpl) Logout(ctx context.Context, jwtID string) error {
	return s.sessions.RevokeByJWTID(ctx, jwtID, nowMillis())
}

// Introspect returns the session row backing an already-authenticated token.
func (s *AuthServiceImpl) Introspect(ctx context.Context, jwtID string) (*model.Session, error) {
	sess, err := s.sessions.GetByJWTID(ctx, jwtID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	return sess, nil
}

// Refresh mints a new token under the same jwt-id and extends the session.
// Reusing the jwt-id keeps a single identity across the refresh chain, so
// one revocation kills the whole chain. Rate-limited per user.
func (s *AuthServiceImpl) Refresh(ctx context.Context, userID, jwtID string) (string, int64, error) {
	if ok, retry := s.lim.User.Allow(userID); !ok {
		return "", 0, errs.RateLimited(retry)
	}
	now := time.Now()
	token, exp, err := s.issueToken(userID, jwtID, now)
	if err != nil {
		return "", 0, err
	}
	if err := s.sessions.UpdateExpiration(ctx, jwtID, exp.UnixMilli()); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return "", 0, errs.ErrUnauthorized
		}
		return "", 0, err
	}
	return token, exp.UnixMilli(), nil
}

// SetWrappedKey persists the client-produced wrapped master key.
func (s *AuthServiceImpl) SetWrappedKey(ctx context.Context, userID string, wk model.WrappedKey) error {
	if len(wk.Nonce) != wmkNonceLen {
		return fmt.Errorf("wrapped key nonce must be %d bytes: %w", wmkNonceLen, errs.ErrValidation)
	}
	if len(wk.Ciphertext) == 0 {
		return fmt.Errorf("empty wrapped key: %w", errs.ErrValidation)
	}
	return s.users.SetWrappedKey(ctx, userID, wk, nowMillis())
}

// Authenticate verifies the token signature and claims, then checks the
// backing session in one pass: it must exist, be unrevoked, and be unexpired.
// Every failure collapses to ErrUnauthorized.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, token string) (Identity, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return Identity{}, errs.ErrUnauthorized
	}

	sess, err := s.sessions.GetByJWTID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Identity{}, errs.ErrUnauthorized
		}
		return Identity{}, err
	}
	if sess.RevokedAt != nil || sess.ExpiresAt <= time.Now().UnixMilli() || sess.UserID != claims.Subject {
		return Identity{}, errs.ErrUnauthorized
	}
	return Identity{UserID: sess.UserID, JWTID: sess.JWTID}, nil
}

// issueToken creates a signed HS256 JWT with the jwt-id as the identifier claim.
func (s *AuthServiceImpl) issueToken(userID, jwtID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        jwtID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

// allowAuthAttempt consults the address and login keyspaces for
// register/login. The login key is case-normalized so near-miss brute force
// shares a bucket.
func (s *AuthServiceImpl) allowAuthAttempt(addr, login string) error {
	if ok, retry := s.lim.Addr.Allow(addr); !ok {
		return errs.RateLimited(retry)
	}
	if ok, retry := s.lim.Login.Allow(strings.ToLower(login)); !ok {
		return errs.RateLimited(retry)
	}
	return nil
}
