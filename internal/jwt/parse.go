// Package jwt valida y emite los bearer tokens del plano admin.
package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("jwt: invalid token")
	ErrInvalidIssuer = errors.New("jwt: invalid issuer")
)

// ParseHS256 valida firma (HS256) con el secreto compartido, chequea iss
// (si expectedIss != "") y valida exp/nbf con una pequeña tolerancia.
// Devuelve las claims como map[string]any.
func ParseHS256(token, secret, expectedIss string) (map[string]any, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) {
		return []byte(secret), nil
	}

	tok, err := jwtv5.Parse(token, keyfunc, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// iss check (opcional)
	if expectedIss != "" {
		if iss, _ := claims["iss"].(string); iss != expectedIss {
			return nil, ErrInvalidIssuer
		}
	}

	now := time.Now()
	// exp
	if expf, ok := claims["exp"].(float64); ok {
		if time.Unix(int64(expf), 0).Before(now.Add(-30 * time.Second)) {
			return nil, ErrInvalidToken
		}
	}
	// nbf
	if nbff, ok := claims["nbf"].(float64); ok {
		if time.Unix(int64(nbff), 0).After(now.Add(30 * time.Second)) {
			return nil, ErrInvalidToken
		}
	}

	out := make(map[string]any, len(claims))
	for k, v := range claims {
		out[k] = v
	}
	return out, nil
}

// SignHS256 emite un token HS256 con sub, iss, roles y TTL. Lo usa el
// subcomando token del CLI para operar el plano admin sin un IdP aparte.
func SignHS256(secret, iss, sub string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtv5.MapClaims{
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if iss != "" {
		claims["iss"] = iss
	}
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
