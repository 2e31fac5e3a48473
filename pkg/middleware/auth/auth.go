package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/polyglotlab/sosr/internal/config"
	"github.com/polyglotlab/sosr/pkg/common/code"
)

// Claims identifies a notebook frontend that is allowed to exchange
// variables through the bridge.
type Claims struct {
	UserID   string `json:"user_id"`
	Notebook string `json:"notebook"`
	jwt.RegisteredClaims
}

func SignToken(userID, notebook string, ttl time.Duration) (string, error) {
	conf := config.Global().Auth
	claims := &Claims{
		UserID:   userID,
		Notebook: notebook,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sosr",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(conf.Secret))
}

func ParseToken(tokenStr string) (*Claims, error) {
	conf := config.Global().Auth
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return []byte(conf.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, code.TokenExpired
		}
		return nil, err
	}
	return claims, nil
}
