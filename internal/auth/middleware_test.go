package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, claims jwt.RegisteredClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func serve(t *testing.T, audience, header string) (*httptest.ResponseRecorder, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.GET("/me", JWTMiddleware(testSecret, audience), func(c *gin.Context) {
		seen, _ = DeviceID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp, seen
}

func TestJWTMiddlewareInjectsDeviceID(t *testing.T) {
	token := signed(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "device-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}, testSecret)

	resp, device := serve(t, "", "Bearer "+token)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.Code)
	}
	if device != "device-7" {
		t.Fatalf("expected device-7, got %q", device)
	}
}

func TestJWTMiddlewareRejects(t *testing.T) {
	valid := jwt.RegisteredClaims{Subject: "device-7", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	cases := map[string]struct {
		audience string
		header   string
	}{
		"missing header": {header: ""},
		"wrong scheme":   {header: "Basic abc"},
		"wrong secret":   {header: "Bearer " + signed(t, jwt.SigningMethodHS256, valid, "other")},
		"expired": {header: "Bearer " + signed(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject: "device-7", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}, testSecret)},
		"no subject": {header: "Bearer " + signed(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}, testSecret)},
		"audience mismatch": {audience: "insect-app", header: "Bearer " + signed(t, jwt.SigningMethodHS256, valid, testSecret)},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, device := serve(t, tc.audience, tc.header)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, resp.Code)
			}
			if device != "" {
				t.Fatalf("handler should not run, saw device %q", device)
			}
		})
	}
}
