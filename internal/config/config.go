package config

import (
	"os"
	"time"
)

type Config struct {
	Server   ServerConfig
	Token    TokenConfig
	Kakao    KakaoConfig
	Mail     MailConfig
	Postgres PostgresConfig
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

type TokenConfig struct {
	Secret     string
	AccessTTL  string
	RefreshTTL string
}

type KakaoConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// UseOIDC가 true면 openid scope를 요청하고 id_token을 검증한다.
	UseOIDC bool
}

type MailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

// GatewayConfig - 게이트웨이 전용 설정 (필터 튜너블 포함)
type GatewayConfig struct {
	Port           string
	UserServiceURL string
	FrontendURL    string

	GlobalBaseMessage string
	GlobalPre         bool
	GlobalPost        bool
	LoggerBaseMessage string
	LoggerPre         bool
	LoggerPost        bool
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:        getenv("PORT", "8081"),
			FrontendURL: getenv("FRONTEND_URL", "http://localhost:5173"),
		},
		Token: TokenConfig{
			Secret:     os.Getenv("TOKEN_SECRET"),
			AccessTTL:  getenv("TOKEN_ACCESS_TTL", "15m"),
			RefreshTTL: getenv("TOKEN_REFRESH_TTL", "24h"),
		},
		Kakao: KakaoConfig{
			ClientID:     os.Getenv("KAKAO_CLIENT_ID"),
			ClientSecret: os.Getenv("KAKAO_CLIENT_SECRET"),
			RedirectURL:  getenv("KAKAO_REDIRECT_URL", "http://localhost:8081/user/kakao"),
			UseOIDC:      getenv("KAKAO_USE_OIDC", "false") == "true",
		},
		Mail: MailConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
	}
}

func LoadGateway() GatewayConfig {
	return GatewayConfig{
		Port:           getenv("GATEWAY_PORT", "8080"),
		UserServiceURL: getenv("USER_SERVICE_URL", "http://localhost:8081"),
		FrontendURL:    getenv("FRONTEND_URL", "http://localhost:5173"),

		GlobalBaseMessage: getenv("GATEWAY_GLOBAL_BASE_MESSAGE", "Global Filter"),
		GlobalPre:         getenv("GATEWAY_GLOBAL_PRE", "true") == "true",
		GlobalPost:        getenv("GATEWAY_GLOBAL_POST", "true") == "true",
		LoggerBaseMessage: getenv("GATEWAY_LOGGER_BASE_MESSAGE", "Logger Filter"),
		LoggerPre:         getenv("GATEWAY_LOGGER_PRE", "false") == "true",
		LoggerPost:        getenv("GATEWAY_LOGGER_POST", "false") == "true",
	}
}

// AccessTTLDuration - 파싱 실패 시 15분 폴백
func (t TokenConfig) AccessTTLDuration() time.Duration {
	d, err := time.ParseDuration(t.AccessTTL)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTLDuration - 파싱 실패 시 24시간 폴백
func (t TokenConfig) RefreshTTLDuration() time.Duration {
	d, err := time.ParseDuration(t.RefreshTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
