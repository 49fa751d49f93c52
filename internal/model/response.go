package model

// CommonRes - 성공 응답 공통 포맷
type CommonRes struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// CommonError - 실패 응답 공통 포맷. Code는 클라이언트가 분기하는
// 기계 판독용 사유 코드다 (예: EXPIRED_RT).
type CommonError struct {
	Status int    `json:"status"`
	Code   string `json:"code"`
}

// 사유 코드 목록
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailExists        = "EMAIL_EXISTS"
	CodeExpiredRefresh     = "EXPIRED_RT"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeOAuthExchange      = "OAUTH_EXCHANGE_FAILED"
	CodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeServerError        = "SERVER_ERROR"
)
