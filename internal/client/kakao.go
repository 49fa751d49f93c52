// 카카오 OAuth와 통신하는 클라이언트 정의
//
// 흐름: 인가 코드 교환 -> (선택) id_token 검증 -> 프로필 조회
//
// 설정은 config.KakaoConfig로 주입받는다. UseOIDC가 true면 openid scope를
// 요청하고 id_token까지 검증한다.

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/modu-market/backend/internal/config"
)

const (
	kakaoAuthURL    = "https://kauth.kakao.com/oauth/authorize"
	kakaoTokenURL   = "https://kauth.kakao.com/oauth/token"
	kakaoProfileURL = "https://kapi.kakao.com/v2/user/me"
	kakaoIssuer     = "https://kauth.kakao.com"

	// 프로필 조회는 멱등이라 제한된 횟수만 재시도한다.
	profileMaxAttempts = 3
	profileRetryDelay  = 200 * time.Millisecond
)

var (
	// ErrOAuthExchange - 인가 코드 교환 실패. 코드는 일회용이라 재시도 금지.
	ErrOAuthExchange = errors.New("oauth code exchange failed")
	// ErrUpstreamTimeout - 외부 호출 타임아웃. 호출자가 재시도를 판단한다.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// Profile - 외부 프로바이더 프로필. 저장하지 않는 일시 값이다.
type Profile struct {
	Provider       string
	ProviderUserID string
	Email          string
	Nickname       string
}

type KakaoClient struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	profileURL string
	useOIDC    bool

	verifierOnce sync.Once
	verifier     *oidc.IDTokenVerifier
	verifierErr  error
}

func NewKakaoClient(cfg config.KakaoConfig) *KakaoClient {
	scopes := []string{"account_email", "profile_nickname"}
	if cfg.UseOIDC {
		scopes = append([]string{"openid"}, scopes...)
	}

	return &KakaoClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  kakaoAuthURL,
				TokenURL: kakaoTokenURL,
			},
		},
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		profileURL: kakaoProfileURL,
		useOIDC:    cfg.UseOIDC,
	}
}

func (c *KakaoClient) IsConfigured() bool {
	return c.oauth.ClientID != "" && c.oauth.RedirectURL != ""
}

// AuthCodeURL returns the provider login URL for the given CSRF state.
func (c *KakaoClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCode trades the authorization code for an external access token.
// A provider rejection is terminal: the code is single-use, so this call is
// never retried.
func (c *KakaoClient) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: kakao token endpoint: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrOAuthExchange, err)
	}

	if c.useOIDC {
		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok || rawIDToken == "" {
			return nil, fmt.Errorf("%w: id_token missing from token response", ErrOAuthExchange)
		}
		if err := c.verifyIDToken(ctx, rawIDToken); err != nil {
			return nil, err
		}
	}

	return token, nil
}

// FetchProfile fetches the Kakao profile for an access token. Transport
// failures and 5xx responses are retried up to profileMaxAttempts; the call
// is a plain GET and safe to repeat.
func (c *KakaoClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= profileMaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(profileRetryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, ctx.Err())
			}
		}

		profile, retryable, err := c.fetchProfileOnce(ctx, accessToken)
		if err == nil {
			return profile, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *KakaoClient) fetchProfileOnce(ctx context.Context, accessToken string) (*Profile, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, true, fmt.Errorf("%w: kakao profile endpoint: %v", ErrUpstreamTimeout, err)
		}
		return nil, true, fmt.Errorf("kakao profile request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("kakao profile read: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("kakao profile status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("kakao profile status %d: %s", resp.StatusCode, body)
	}

	var raw struct {
		ID           int64 `json:"id"`
		KakaoAccount struct {
			Email string `json:"email"`
		} `json:"kakao_account"`
		Properties struct {
			Nickname string `json:"nickname"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, false, fmt.Errorf("kakao profile decode: %w", err)
	}
	if raw.ID == 0 {
		return nil, false, fmt.Errorf("kakao profile missing id")
	}

	email := raw.KakaoAccount.Email
	if email == "" {
		// 이메일 제공에 비동의한 계정은 provider id 기반의 대체 주소를 쓴다.
		email = fmt.Sprintf("kakao_%d@kakao.local", raw.ID)
	}

	return &Profile{
		Provider:       "KAKAO",
		ProviderUserID: fmt.Sprint(raw.ID),
		Email:          email,
		Nickname:       raw.Properties.Nickname,
	}, false, nil
}

func (c *KakaoClient) verifyIDToken(ctx context.Context, rawIDToken string) error {
	c.verifierOnce.Do(func() {
		provider, err := oidc.NewProvider(context.Background(), kakaoIssuer)
		if err != nil {
			c.verifierErr = err
			return
		}
		c.verifier = provider.Verifier(&oidc.Config{ClientID: c.oauth.ClientID})
	})
	if c.verifierErr != nil {
		return fmt.Errorf("oidc discovery: %w", c.verifierErr)
	}

	if _, err := c.verifier.Verify(ctx, rawIDToken); err != nil {
		return fmt.Errorf("%w: id_token verification: %v", ErrOAuthExchange, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
