package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modu-market/backend/internal/client"
	"github.com/modu-market/backend/internal/model"
	"github.com/modu-market/backend/internal/service"
	"github.com/modu-market/backend/internal/template"
)

type oauthStarter interface {
	AuthCodeURL(state string) string
	IsConfigured() bool
}

type UserHandler struct {
	svc         *service.AuthService
	kakao       oauthStarter
	frontendURL string
}

func NewUserHandler(svc *service.AuthService, kakao oauthStarter, frontendURL string) *UserHandler {
	return &UserHandler{svc: svc, kakao: kakao, frontendURL: frontendURL}
}

// Create - POST /user/create
func (h *UserHandler) Create(c *gin.Context) {
	var req model.UserCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ErrInvalidInput)
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, model.CommonRes{
		Status:  http.StatusCreated,
		Message: "User Created",
		Result:  user.Email,
	})
}

// DoLogin - POST /user/doLogin
func (h *UserHandler) DoLogin(c *gin.Context) {
	var req model.UserLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ErrInvalidInput)
		return
	}

	info, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "login success",
		Result:  info,
	})
}

// Refresh - POST /user/refresh
//
// Access token 만료 시 id로 refresh 레코드를 확인하고 새 access token을 발급.
// 레코드 부재는 EXPIRED_RT로 내려가고 클라이언트는 재로그인으로 유도한다.
func (h *UserHandler) Refresh(c *gin.Context) {
	var req model.UserRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ErrInvalidInput)
		return
	}

	info, err := h.svc.Refresh(c.Request.Context(), req.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "new access token issued",
		Result:  info,
	})
}

// Logout - POST /user/logout
//
// 폐기 대상은 항상 토큰 주체 본인의 세션이다. 본문으로 id를 받지 않는다.
func (h *UserHandler) Logout(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortWithCode(c, http.StatusUnauthorized, model.CodeUnauthorized)
		return
	}

	if err := h.svc.Logout(c.Request.Context(), user.Email); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "logged out",
	})
}

// List - GET /user/list?page=0&size=20 (ADMIN 전용)
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	users, err := h.svc.ListUsers(c.Request.Context(), page, size)
	if err != nil {
		writeError(c, err)
		return
	}

	res := make([]model.UserRes, 0, len(users))
	for i := range users {
		res = append(res, model.UserResFrom(&users[i]))
	}
	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "user list",
		Result:  res,
	})
}

// MyInfo - GET /user/myInfo
func (h *UserHandler) MyInfo(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		abortWithCode(c, http.StatusUnauthorized, model.CodeUnauthorized)
		return
	}

	found, err := h.svc.MyInfo(c.Request.Context(), user.Email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "myInfo",
		Result:  model.UserResFrom(found),
	})
}

// FindByEmail - GET /user/findByEmail?email=...
//
// 서비스 간 내부 호출용(주문 서비스가 회원 정보를 조회할 때 사용).
func (h *UserHandler) FindByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		writeError(c, service.ErrInvalidInput)
		return
	}

	found, err := h.svc.FindByEmail(c.Request.Context(), email)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "user found",
		Result:  model.UserResFrom(found),
	})
}

// EmailValid - POST /user/email-valid
func (h *UserHandler) EmailValid(c *gin.Context) {
	var req model.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ErrInvalidInput)
		return
	}

	if err := h.svc.StartEmailVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "verification code sent",
	})
}

// Verify - POST /user/verify
func (h *UserHandler) Verify(c *gin.Context) {
	var req model.EmailVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, service.ErrInvalidInput)
		return
	}

	if err := h.svc.ConfirmEmailVerification(c.Request.Context(), req.Email, req.Code); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.CommonRes{
		Status:  http.StatusOK,
		Message: "email verified",
	})
}

// KakaoAuthorize - GET /user/kakao/authorize
//
// 프론트엔드 팝업이 여는 주소. 카카오 로그인 페이지로 리다이렉트한다.
func (h *UserHandler) KakaoAuthorize(c *gin.Context) {
	if !h.kakao.IsConfigured() {
		abortWithCode(c, http.StatusServiceUnavailable, model.CodeServerError)
		return
	}
	state := uuid.New().String()
	c.Redirect(http.StatusTemporaryRedirect, h.kakao.AuthCodeURL(state))
}

// KakaoCallback - GET /user/kakao?code=...
//
// 성공 시 opener에 OAUTH_SUCCESS 메시지를 postMessage하는 HTML을 돌려준다.
func (h *UserHandler) KakaoCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		writeError(c, service.ErrInvalidInput)
		return
	}

	info, err := h.svc.KakaoLogin(c.Request.Context(), code)
	if err != nil {
		writeError(c, err)
		return
	}

	html, err := template.RenderPopup(template.PopupData{
		Token:    info.Token,
		ID:       info.ID,
		Role:     info.Role,
		Provider: "KAKAO",
		Origin:   h.frontendURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// writeError maps domain errors to HTTP status plus a stable reason code.
// Business errors cross the filter chain untouched; this is the only place
// they become protocol-level responses.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, model.CodeServerError

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, code = http.StatusBadRequest, model.CodeInvalidRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, model.CodeInvalidCredentials
	case errors.Is(err, service.ErrEmailExists):
		status, code = http.StatusConflict, model.CodeEmailExists
	case errors.Is(err, service.ErrExpiredRefreshToken):
		status, code = http.StatusUnauthorized, model.CodeExpiredRefresh
	case errors.Is(err, service.ErrUserNotFound):
		status, code = http.StatusNotFound, model.CodeNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, model.CodeStoreUnavailable
	case errors.Is(err, client.ErrOAuthExchange):
		status, code = http.StatusUnauthorized, model.CodeOAuthExchange
	case errors.Is(err, client.ErrUpstreamTimeout):
		status, code = http.StatusGatewayTimeout, model.CodeUpstreamTimeout
	}

	c.JSON(status, model.CommonError{Status: status, Code: code})
}
