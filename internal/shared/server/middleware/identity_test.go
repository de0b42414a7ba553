package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		method     string
		headers    map[string]string
		wantStatus int
		wantUser   string
	}{
		{name: "user header", method: http.MethodGet, headers: map[string]string{"X-User-Id": "u-1", "X-Guest-Id": "g"}, wantStatus: http.StatusOK, wantUser: "u-1"},
		{name: "guest header", method: http.MethodGet, headers: map[string]string{"X-Guest-Id": " g-7 "}, wantStatus: http.StatusOK, wantUser: "guest:g-7"},
		{name: "missing", method: http.MethodGet, wantStatus: http.StatusUnauthorized},
		{name: "preflight", method: http.MethodOptions, wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			router := gin.New()
			router.Use(Identity())
			router.Handle(tt.method, "/api/v1/documents", func(c *gin.Context) {
				gotUser = UserIDFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/v1/documents", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Fatalf("user = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}
