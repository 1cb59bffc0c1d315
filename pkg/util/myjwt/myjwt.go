package myjwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type CustomClaims struct {
	Subject  string `json:"sub_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signer 负责签发与校验 HS256 令牌
type Signer struct {
	key         []byte
	issuer      string
	expireHours int
	now         func() time.Time
}

func NewSigner(key, issuer string, expireHours int) (*Signer, error) {
	if key == "" {
		return nil, errors.New("jwt key is empty")
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	if issuer == "" {
		issuer = "koo"
	}
	return &Signer{key: []byte(key), issuer: issuer, expireHours: expireHours, now: time.Now}, nil
}

func (s *Signer) GenerateToken(subject string, username string) (string, error) {
	now := s.now()
	claims := CustomClaims{
		Subject:  subject,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *Signer) ParseToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
