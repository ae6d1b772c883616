package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func mintToken(t *testing.T, claims TokenClaims, secret []byte) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func authedRequest(token string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return httptest.NewRecorder(), req
}

func TestJWTAuthMiddleware(t *testing.T) {
	var gotUserID, gotUserName string
	handler := JWTAuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = userID(r)
		gotUserName = userName(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid access token passes identity through", func(t *testing.T) {
		token := mintToken(t, TokenClaims{UserID: "u1", UserName: "User One", TokenType: "access"}, testSecret)
		rr, req := authedRequest(token)

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "u1", gotUserID)
		assert.Equal(t, "User One", gotUserName)
	})

	t.Run("missing header", func(t *testing.T) {
		rr, req := authedRequest("")
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		rr, req := authedRequest("")
		req.Header.Set("Authorization", "Token abc")
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := mintToken(t, TokenClaims{UserID: "u1", TokenType: "access"}, []byte("other-secret"))
		rr, req := authedRequest(token)
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		token := mintToken(t, TokenClaims{UserID: "u1", TokenType: "refresh"}, testSecret)
		rr, req := authedRequest(token)
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token := mintToken(t, TokenClaims{
			UserID: "u1", TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}, testSecret)
		rr, req := authedRequest(token)
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("client cannot forge identity headers past the middleware", func(t *testing.T) {
		token := mintToken(t, TokenClaims{UserID: "u1", UserName: "User One", TokenType: "access"}, testSecret)
		rr, req := authedRequest(token)
		req.Header.Set("X-User-Id", "someone-else")

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "u1", gotUserID, "the token overwrites any spoofed header")
	})
}
