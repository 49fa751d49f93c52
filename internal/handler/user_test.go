package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/modu-market/backend/internal/client"
	"github.com/modu-market/backend/internal/logging"
	"github.com/modu-market/backend/internal/model"
	"github.com/modu-market/backend/internal/service"
	"github.com/modu-market/backend/internal/session"
	"github.com/modu-market/backend/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*model.User
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*model.User)}
}

func (r *stubRepo) CreateUser(ctx context.Context, email, name, passwordHash, role string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[email]; ok {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	r.nextID++
	u := &model.User{ID: r.nextID, Email: email, Name: name, PasswordHash: passwordHash, Role: role}
	r.users[email] = u
	return u, nil
}

func (r *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubRepo) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubRepo) ListUsers(ctx context.Context, page, size int) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, *u)
	}
	return users, nil
}

func (r *stubRepo) FindOrCreateOAuthUser(ctx context.Context, provider, providerUserID, email, name string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[email]; ok {
		return u, nil
	}
	r.nextID++
	u := &model.User{ID: r.nextID, Email: email, Name: name, Role: model.RoleUser,
		Provider: provider, ProviderUserID: providerUserID}
	r.users[email] = u
	return u, nil
}

type stubBridge struct{}

func (stubBridge) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "ext-token"}, nil
}

func (stubBridge) FetchProfile(ctx context.Context, accessToken string) (*client.Profile, error) {
	return &client.Profile{Provider: "KAKAO", ProviderUserID: "77", Email: "social@x.com", Nickname: "소셜러"}, nil
}

func (stubBridge) AuthCodeURL(state string) string { return "https://kauth.example/authorize" }
func (stubBridge) IsConfigured() bool              { return true }

type testEnv struct {
	router *gin.Engine
	repo   *stubRepo
	codec  *token.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := newStubRepo()
	codec := token.NewCodec("test-secret", 15*time.Minute, 24*time.Hour)
	bridge := stubBridge{}
	svc := service.NewAuthService(repo, session.NewMemoryStore(), codec, bridge,
		client.NewLogMailer(logging.NewDefault("test")), logging.NewDefault("test"), 24*time.Hour)
	users := NewUserHandler(svc, bridge, "http://localhost:5173")

	router := gin.New()
	user := router.Group("/user")
	{
		user.POST("/create", users.Create)
		user.POST("/doLogin", users.DoLogin)
		user.POST("/refresh", users.Refresh)
		user.GET("/kakao", users.KakaoCallback)
		user.GET("/findByEmail", users.FindByEmail)

		authed := user.Group("", AuthMiddleware(codec))
		{
			authed.GET("/myInfo", users.MyInfo)
			authed.POST("/logout", users.Logout)
			authed.GET("/list", RequireRole(model.RoleAdmin), users.List)
		}
	}

	return &testEnv{router: router, repo: repo, codec: codec}
}

func (e *testEnv) seedUser(t *testing.T, email, password, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u, err := e.repo.CreateUser(context.Background(), email, "tester", string(hash), role)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var res struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode response %s: %v", body, err)
	}
	return res.Result
}

func TestDoLoginScenario(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "password123", model.RoleUser)

	w := env.do(http.MethodPost, "/user/doLogin", `{"email":"a@x.com","password":"password123"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.Bytes())
	}

	result := decodeResult(t, w.Body.Bytes())
	tokenStr, _ := result["token"].(string)
	if tokenStr == "" {
		t.Fatal("login result has no token")
	}
	id, ok := result["id"].(float64)
	if !ok || id <= 0 {
		t.Fatalf("login result id = %v, want numeric id", result["id"])
	}
	if result["role"] != "USER" {
		t.Fatalf("login result role = %v, want USER", result["role"])
	}

	// 만료 전 refresh는 같은 id/role로 새 토큰을 발급해야 한다.
	w = env.do(http.MethodPost, "/user/refresh", fmt.Sprintf(`{"id":"%d"}`, int64(id)), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", w.Code, w.Body.Bytes())
	}
	refreshed := decodeResult(t, w.Body.Bytes())
	if refreshed["token"] == "" {
		t.Fatal("refresh result has no token")
	}
	if refreshed["id"] != id || refreshed["role"] != "USER" {
		t.Fatalf("refresh result = %v, want same id/role", refreshed)
	}
}

func TestDoLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "password123", model.RoleUser)

	w := env.do(http.MethodPost, "/user/doLogin", `{"email":"a@x.com","password":"wrong-password"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), model.CodeInvalidCredentials) {
		t.Fatalf("body = %s, want reason code %s", w.Body.Bytes(), model.CodeInvalidCredentials)
	}
}

func TestRefreshUnknownID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/user/refresh", `{"id":"424242"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), model.CodeExpiredRefresh) {
		t.Fatalf("body = %s, want reason code EXPIRED_RT", w.Body.Bytes())
	}
	if strings.Contains(w.Body.String(), `"token"`) {
		t.Fatal("expired refresh must not issue a token")
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	body := `{"name":"tester","email":"a@x.com","password":"password123"}`

	if w := env.do(http.MethodPost, "/user/create", body, nil); w.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, body %s", w.Code, w.Body.Bytes())
	}
	w := env.do(http.MethodPost, "/user/create", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), model.CodeEmailExists) {
		t.Fatalf("body = %s, want reason code EMAIL_EXISTS", w.Body.Bytes())
	}
}

func TestMyInfoRequiresToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "password123", model.RoleUser)

	if w := env.do(http.MethodGet, "/user/myInfo", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no-token status = %d, want 401", w.Code)
	}

	access, err := env.codec.Issue("a@x.com", model.RoleUser, token.KindAccess)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	w := env.do(http.MethodGet, "/user/myInfo", "", map[string]string{"Authorization": "Bearer " + access})
	if w.Code != http.StatusOK {
		t.Fatalf("with-token status = %d, body %s", w.Code, w.Body.Bytes())
	}
	if !strings.Contains(w.Body.String(), "a@x.com") {
		t.Fatalf("body = %s, want own profile", w.Body.Bytes())
	}
}

func TestRefreshTokenRejectedAsBearer(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "password123", model.RoleUser)

	refresh, err := env.codec.Issue("a@x.com", model.RoleUser, token.KindRefresh)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	w := env.do(http.MethodGet, "/user/myInfo", "", map[string]string{"Authorization": "Bearer " + refresh})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, refresh token must not pass as access credential", w.Code)
	}
}

func TestLogoutRevokesOnlyOwnSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "password123", model.RoleUser)
	victim := env.seedUser(t, "b@x.com", "password123", model.RoleUser)

	for _, email := range []string{"a@x.com", "b@x.com"} {
		body := fmt.Sprintf(`{"email":%q,"password":"password123"}`, email)
		if w := env.do(http.MethodPost, "/user/doLogin", body, nil); w.Code != http.StatusOK {
			t.Fatalf("login %s status = %d", email, w.Code)
		}
	}

	// 본문에 남의 id를 실어 보내도 폐기되는 건 토큰 주체의 세션뿐이다.
	access, err := env.codec.Issue("a@x.com", model.RoleUser, token.KindAccess)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	payload := fmt.Sprintf(`{"id":"%d"}`, victim.ID)
	w := env.do(http.MethodPost, "/user/logout", payload, map[string]string{"Authorization": "Bearer " + access})
	if w.Code != http.StatusOK {
		t.Fatalf("logout status = %d, body %s", w.Code, w.Body.Bytes())
	}

	w = env.do(http.MethodPost, "/user/refresh", fmt.Sprintf(`{"id":"%d"}`, victim.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("b's session was revoked by a's logout: status %d, body %s", w.Code, w.Body.Bytes())
	}

	users, _ := env.repo.GetUserByEmail(context.Background(), "a@x.com")
	w = env.do(http.MethodPost, "/user/refresh", fmt.Sprintf(`{"id":"%d"}`, users.ID), nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("a's own session must be gone: status %d, body %s", w.Code, w.Body.Bytes())
	}
}

func TestListRequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "a@x.com", "password123", model.RoleUser)
	env.seedUser(t, "admin@x.com", "password123", model.RoleAdmin)

	userToken, _ := env.codec.Issue("a@x.com", model.RoleUser, token.KindAccess)
	if w := env.do(http.MethodGet, "/user/list", "", map[string]string{"Authorization": "Bearer " + userToken}); w.Code != http.StatusForbidden {
		t.Fatalf("USER list status = %d, want 403", w.Code)
	}

	adminToken, _ := env.codec.Issue("admin@x.com", model.RoleAdmin, token.KindAccess)
	if w := env.do(http.MethodGet, "/user/list", "", map[string]string{"Authorization": "Bearer " + adminToken}); w.Code != http.StatusOK {
		t.Fatalf("ADMIN list status = %d, want 200", w.Code)
	}
}

func TestKakaoCallbackPopup(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/user/kakao?code=auth-code", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.Bytes())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type = %q, want text/html", ct)
	}

	body := w.Body.String()
	// opener로 보내는 메시지 형태는 프론트엔드와의 계약이다.
	for _, want := range []string{"OAUTH_SUCCESS", "window.opener", "postMessage", "KAKAO", "window.close()"} {
		if !strings.Contains(body, want) {
			t.Errorf("popup html missing %q", want)
		}
	}
}

func TestKakaoCallbackMissingCode(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/user/kakao", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
