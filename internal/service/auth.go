package service

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/dirk.krummacker/contactbook/internal/model"
)

// ownerKey is the gin context key under which the authenticated owner is stored.
const ownerKey = "owner"

// Tokens signs and verifies the bearer tokens that identify the owner of a request. The owner id
// is carried in the subject claim.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token signer and verifier using the HMAC secret. Signed tokens expire after
// ttl.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for owner.
func (t *Tokens) Sign(owner model.OwnerID) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(int64(owner), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the token and returns the owner it was issued for.
func (t *Tokens) Parse(token string) (model.OwnerID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, jwt.ErrSignatureInvalid
	}
	owner, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || owner <= 0 {
		return 0, errors.New("token subject is not an owner id")
	}
	return model.OwnerID(owner), nil
}

// authenticate rejects requests without a valid bearer token and remembers the owner otherwise.
func (a *API) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
		return
	}
	owner, err := a.tokens.Parse(token)
	if err != nil {
		requestLogger(c).Debug().Err(err).Msg("Rejected token")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return
	}
	c.Set(ownerKey, owner)
	c.Next()
}

// ownerOf returns the owner that authenticate stored in the context.
func ownerOf(c *gin.Context) model.OwnerID {
	return c.MustGet(ownerKey).(model.OwnerID)
}
