package model

import "time"

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID             int64
	Email          string
	Name           string
	PasswordHash   string
	Role           string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AuthUser - 인증 미들웨어가 컨텍스트에 심어주는 최소 신원 정보
type AuthUser struct {
	Email string
	Role  string
}

type UserCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type UserLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UserRefreshRequest struct {
	ID string `json:"id" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type EmailVerifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// LoginInfo - 로그인/리프레시 응답 본문. Access token은 body로만 전달한다.
type LoginInfo struct {
	Token string `json:"token"`
	ID    int64  `json:"id"`
	Role  string `json:"role"`
}

type UserRes struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func UserResFrom(u *User) UserRes {
	return UserRes{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
}
