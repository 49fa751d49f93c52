package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/modu-market/backend/internal/client"
	"github.com/modu-market/backend/internal/db"
	"github.com/modu-market/backend/internal/logging"
	"github.com/modu-market/backend/internal/model"
	"github.com/modu-market/backend/internal/session"
	"github.com/modu-market/backend/internal/token"
)

const verifyCodeTTL = 5 * time.Minute

// 저장소/DB 호출은 항상 명시적 데드라인을 갖는다. 의존성이 멈추면
// 요청이 매달리는 대신 실패해야 한다.
const defaultOpTimeout = 3 * time.Second

var (
	// ErrInvalidCredentials - 이메일/비밀번호 어느 쪽이 틀렸는지 구분하지 않는다.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	// ErrExpiredRefreshToken - 세션 만료 또는 폐기. 재로그인 필요.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	// ErrStoreUnavailable - 세션 저장소 장애. 부재와 구분해 올려보낸다.
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidInput     = errors.New("invalid input")
)

type userRepo interface {
	CreateUser(ctx context.Context, email, name, passwordHash, role string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	ListUsers(ctx context.Context, page, size int) ([]model.User, error)
	FindOrCreateOAuthUser(ctx context.Context, provider, providerUserID, email, name string) (*model.User, error)
}

type identityBridge interface {
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, accessToken string) (*client.Profile, error)
}

// AuthService orchestrates the token codec, the session store and the
// external identity bridge. All fields are set at construction and never
// mutated, so a single instance serves every request.
type AuthService struct {
	users      userRepo
	sessions   session.Store
	codec      *token.Codec
	kakao      identityBridge
	mailer     client.Mailer
	log        logging.Logger
	refreshTTL time.Duration
	opTimeout  time.Duration
}

func NewAuthService(users userRepo, sessions session.Store, codec *token.Codec,
	kakao identityBridge, mailer client.Mailer, log logging.Logger, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		codec:      codec,
		kakao:      kakao,
		mailer:     mailer,
		log:        log,
		refreshTTL: refreshTTL,
		opTimeout:  defaultOpTimeout,
	}
}

// withOpTimeout bounds store and database calls. The caller's context still
// governs cancellation; this only adds the missing deadline.
func (s *AuthService) withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *AuthService) Register(ctx context.Context, req model.UserCreateRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	user, err := s.users.CreateUser(ctx, req.Email, req.Name, string(hash), model.RoleUser)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return user, nil
}

// Login validates credentials and issues an access/refresh token pair. The
// refresh record overwrites any prior one for the user: one active session
// per user, a second login retires the first. The login fails if the refresh
// record cannot be confirmed written - issuing a refresh token nobody can
// honor later would be worse.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.LoginInfo, error) {
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == "" {
		// 소셜 전용 계정은 비밀번호 로그인 불가
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

// Refresh issues a new access token for a user whose refresh record is still
// live. The refresh token itself is not rotated here; rotation on every use
// was considered and deliberately left out to keep parity with the
// single-session policy (see DESIGN.md).
func (s *AuthService) Refresh(ctx context.Context, userID string) (*model.LoginInfo, error) {
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	stored, err := s.sessions.Get(ctx, session.RefreshKey(userID))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrExpiredRefreshToken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	claims, err := s.codec.Verify(stored)
	if err != nil || claims.Kind != token.KindRefresh {
		// 저장된 값이 더 이상 유효한 refresh 토큰이 아니면 세션을 정리한다.
		_ = s.sessions.Delete(ctx, session.RefreshKey(userID))
		return nil, ErrExpiredRefreshToken
	}

	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, ErrExpiredRefreshToken
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	accessToken, err := s.codec.Issue(user.Email, user.Role, token.KindAccess)
	if err != nil {
		return nil, err
	}

	return &model.LoginInfo{Token: accessToken, ID: user.ID, Role: user.Role}, nil
}

// Logout deletes the refresh record of the user identified by email, the
// authenticated subject. Any access token already issued stays valid until
// its own expiry.
func (s *AuthService) Logout(ctx context.Context, email string) error {
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrUserNotFound
		}
		return err
	}

	key := session.RefreshKey(strconv.FormatInt(user.ID, 10))
	if err := s.sessions.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// KakaoLogin drives the OAuth callback flow: exchange the authorization code,
// fetch the provider profile, resolve the local user, issue a session.
func (s *AuthService) KakaoLogin(ctx context.Context, code string) (*model.LoginInfo, error) {
	external, err := s.kakao.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := s.kakao.FetchProfile(ctx, external.AccessToken)
	if err != nil {
		return nil, err
	}

	// 외부 호출(교환/프로필)은 클라이언트의 자체 타임아웃과 재시도 예산을
	// 따르고, 로컬 해소부터는 저장소용 데드라인을 건다.
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	user, err := s.users.FindOrCreateOAuthUser(ctx,
		profile.Provider, profile.ProviderUserID, profile.Email, profile.Nickname)
	if err != nil {
		if errors.Is(err, db.ErrIdentityConflict) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.log.Info(ctx, "oauth user resolved",
		"provider", profile.Provider, "userId", user.ID)

	return s.issueSession(ctx, user)
}

func (s *AuthService) MyInfo(ctx context.Context, email string) (*model.User, error) {
	return s.findByEmail(ctx, email)
}

func (s *AuthService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findByEmail(ctx, email)
}

func (s *AuthService) ListUsers(ctx context.Context, page, size int) ([]model.User, error) {
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()
	return s.users.ListUsers(ctx, page, size)
}

// StartEmailVerification issues a short-lived 6-digit code and hands it to
// the mailer. The code lives in the session store under the email's key.
func (s *AuthService) StartEmailVerification(ctx context.Context, email string) error {
	code, err := verificationCode()
	if err != nil {
		return err
	}

	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	if err := s.sessions.Put(ctx, session.VerifyKey(email), code, verifyCodeTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return s.mailer.SendVerificationCode(ctx, email, code)
}

func (s *AuthService) ConfirmEmailVerification(ctx context.Context, email, code string) error {
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	stored, err := s.sessions.Get(ctx, session.VerifyKey(email))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrInvalidInput
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if stored != code {
		return ErrInvalidInput
	}
	return s.sessions.Delete(ctx, session.VerifyKey(email))
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := s.withOpTimeout(ctx)
	defer cancel()

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *model.User) (*model.LoginInfo, error) {
	accessToken, err := s.codec.Issue(user.Email, user.Role, token.KindAccess)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.Issue(user.Email, user.Role, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	key := session.RefreshKey(strconv.FormatInt(user.ID, 10))
	if err := s.sessions.Put(ctx, key, refreshToken, s.refreshTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &model.LoginInfo{Token: accessToken, ID: user.ID, Role: user.Role}, nil
}

func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
