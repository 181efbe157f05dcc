package auth

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/tauraamui/xerror"
)

const (
	audience = "dragoncam"
	tokenTTL = time.Minute * 15
)

type customClaims struct {
	UserUUID string `json:"useruuid"`
	jwt.StandardClaims
}

var timeNow = func() time.Time {
	return time.Now()
}

// GenToken signs a short lived token naming the given user.
func GenToken(secret, userUUID string) (string, error) {
	now := timeNow().UTC()
	claims := customClaims{
		UserUUID: userUUID,
		StandardClaims: jwt.StandardClaims{
			Audience:  audience,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(tokenTTL).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken returns the user UUID carried by a valid token.
func ValidateToken(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&customClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(secret), nil
		},
	)

	if err != nil {
		return "", xerror.Errorf("unable to validate token: %w", err)
	}

	return checkClaims(token.Claims)
}

func checkClaims(claims jwt.Claims) (string, error) {
	cc, ok := claims.(*customClaims)
	if !ok {
		return "", errors.New("unable to parse claims")
	}

	if !cc.VerifyAudience(audience, true) {
		return "", errors.New("auth token has wrong audience")
	}

	if cc.ExpiresAt < timeNow().UTC().Unix() {
		return "", errors.New("auth token has expired")
	}

	return cc.UserUUID, nil
}
