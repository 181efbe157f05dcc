package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
)

var CheckClaims = checkClaims

func NewCustomClaims(userUUID, aud string, expiresAt int64) jwt.Claims {
	return &customClaims{
		UserUUID:       userUUID,
		StandardClaims: jwt.StandardClaims{Audience: aud, ExpiresAt: expiresAt},
	}
}

func OverloadTimeNow(o func() time.Time) func() {
	timeNowRef := timeNow
	timeNow = o
	return func() { timeNow = timeNowRef }
}
