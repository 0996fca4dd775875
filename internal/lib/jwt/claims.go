// Package jwt проверяет JWT, выданные внешним провайдером авторизации.
//
// Провайдер подписывает токен общим секретом (HS256) и кладёт в него стабильный
// идентификатор пользователя и роль. Сервис токены не выпускает; GenerateToken
// нужен для тестов и локальной разработки.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Роли пользователя.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Claims описывает данные, которые провайдер авторизации кладёт в токен.
type Claims struct {
	UserID               string `json:"uid"`  // Стабильный идентификатор пользователя
	Role                 string `json:"role"` // Роль пользователя: user или admin
	jwt.RegisteredClaims        // Стандартные claims (ExpiresAt, IssuedAt, Issuer)
}

// Verifier описывает проверку и выпуск токенов.
type Verifier interface {
	GenerateToken(userID, role string) (string, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// HS256 реализует Verifier на общем секретном ключе.
type HS256 struct {
	secretKey string
	tokenTTL  time.Duration
	issuer    string
}

// NewHS256 создаёт проверяющий токены HS256. Пустой issuer отключает проверку издателя.
func NewHS256(secretKey string, ttl time.Duration, issuer string) *HS256 {
	return &HS256{
		secretKey: secretKey,
		tokenTTL:  ttl,
		issuer:    issuer,
	}
}
