package utils // package utils provides token signing and identifier helpers

import (
    "encoding/json" // payloads travel as raw JSON inside the claims
    "errors"        // sentinel for rejected tokens
    "fmt"           // error wrapping
    "time"          // expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned by ParsePayload for tokens that are expired,
// tampered with or signed with another method.
var ErrInvalidToken = errors.New("invalid token")

// SignedToken is a serialized HS256 JWT along with its expiry.
type SignedToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// payloadClaims carries an arbitrary JSON document under "data" next to
// the registered claims.
type payloadClaims struct {
    Data json.RawMessage `json:"data"`
    jwt.RegisteredClaims
}

// SignPayload marshals payload to JSON and signs it into an HS256 token
// valid for ttl.  subject becomes the "sub" claim.  The reservation
// handlers use this to hand a reservation handle to the browser and get it
// back, unmodified, when the payment widget reports its result.
func SignPayload(secret, subject string, payload any, ttl time.Duration) (SignedToken, error) {
    data, err := json.Marshal(payload)
    if err != nil {
        return SignedToken{}, fmt.Errorf("marshal payload: %w", err)
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := payloadClaims{
        Data: data,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   subject,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return SignedToken{}, err
    }
    return SignedToken{Token: signed, Exp: exp}, nil
}

// ParsePayload verifies raw and unmarshals its payload into out.  It
// returns the token subject.
func ParsePayload(secret, raw string, out any) (string, error) {
    var claims payloadClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    if err != nil || !tok.Valid {
        return "", ErrInvalidToken
    }
    if err := json.Unmarshal(claims.Data, out); err != nil {
        return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
    }
    return claims.Subject, nil
}

// BuyerClaims are the identity claims carried by buyer access tokens.
// Tokens are issued by the identity provider; NewAccessToken exists for
// tooling and tests.
type BuyerClaims struct {
    Name  string `json:"name,omitempty"`
    Email string `json:"email,omitempty"`
    Role  string `json:"role"`
    jwt.RegisteredClaims
}

// NewAccessToken builds and signs an HS256 JWT for a buyer.
func NewAccessToken(secret, buyerID, name, email, role string, ttl time.Duration) (SignedToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := BuyerClaims{
        Name:  name,
        Email: email,
        Role:  role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   buyerID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return SignedToken{}, err
    }
    return SignedToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates a buyer access token and returns its claims.
// Tokens without a subject are rejected.
func ParseAccessToken(secret, raw string) (*BuyerClaims, error) {
    var claims BuyerClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid || claims.Subject == "" {
        return nil, ErrInvalidToken
    }
    return &claims, nil
}
