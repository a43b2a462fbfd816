package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpired reports whether token is a JWT whose exp claim lies more than
// leeway in the past. The signature is not checked; the server remains the
// authority. Tokens that are not JWTs, or carry no exp, are never expired
// here.
func tokenExpired(token string, leeway time.Duration, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.After(exp.Add(leeway))
}
