// Package token 提供了用于生成和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey []byte
	clientDur time.Duration
}

// ClientClaims 标识一个匿名的浏览器客户端。客户端的全部会话都归属于 ClientID。
type ClientClaims struct {
	ClientID string `json:"clientId"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// clientExpireDays: 客户端令牌的过期时间（天）。
func NewJWTManager(secret string, clientExpireDays int) *JWTManager {
	return &JWTManager{
		secretKey: []byte(secret),
		clientDur: time.Duration(clientExpireDays) * 24 * time.Hour,
	}
}

// GenerateToken 为给定的客户端生成一个新的令牌。
func (m *JWTManager) GenerateToken(clientID string) (string, error) {
	now := time.Now()
	claims := ClientClaims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.clientDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 验证给定的 token 字符串。
// 如果 token 无效（例如，签名不匹配或已过期），则返回错误。
func (m *JWTManager) VerifyToken(tokenString string) (*ClientClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ClientClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*ClientClaims); ok && token.Valid && claims.ClientID != "" {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
