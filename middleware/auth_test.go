package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxnroot/trans-invoice-v3/config"
	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/store/memory"
)

func TestJwtAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		JWTSecret: "test-secret",
	}

	validToken, _ := GenerateToken("uid-1", "mona@example.com", "Mona", cfg.JWTSecret, 1*time.Hour)
	expiredToken, _ := GenerateToken("uid-1", "", "", cfg.JWTSecret, -1*time.Hour)
	otherSecret, _ := GenerateToken("uid-1", "", "", "other-secret", 1*time.Hour)
	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(cfg.JWTSecret))

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedUserID string
		expectedCode   string
	}{
		{
			name:           "Valid Token",
			authHeader:     "Bearer " + validToken,
			expectedStatus: http.StatusOK,
			expectedUserID: "uid-1",
		},
		{
			name:           "Missing Header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Format",
			authHeader:     "Invalid " + validToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + expiredToken,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "ExpiredToken",
		},
		{
			name:           "Invalid Token",
			authHeader:     "Bearer invalid.token.string",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "InvalidToken",
		},
		{
			name:           "Wrong Secret",
			authHeader:     "Bearer " + otherSecret,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "InvalidToken",
		},
		{
			name:           "No Subject",
			authHeader:     "Bearer " + noSubject,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "InvalidToken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(JwtAuthMiddleware(cfg))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"uid": c.GetString("userID"), "email": c.GetString("email")})
			})

			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedUserID != "" {
				assert.Contains(t, w.Body.String(), tt.expectedUserID)
				assert.Contains(t, w.Body.String(), "mona@example.com")
			}
			if tt.expectedCode != "" {
				assert.Contains(t, w.Body.String(), tt.expectedCode)
			}
		})
	}
}

func TestLoadProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := ledger.New(memory.New())
	_, err := svc.CreateUserProfile(context.Background(), models.NewUserProfile{UID: "deployer", Name: "D", Email: "d@example.com"})
	require.NoError(t, err)

	tests := []struct {
		name           string
		userID         string
		expectedStatus int
		expectedRole   string
	}{
		{"Registered User", "deployer", http.StatusOK, "deploy"},
		{"Unregistered User", "stranger", http.StatusForbidden, ""},
		{"No User", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				if tt.userID != "" {
					c.Set("userID", tt.userID)
				}
				c.Next()
			})
			router.Use(LoadProfile(svc))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"role": c.GetString("role")})
			})

			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedRole != "" {
				assert.Contains(t, w.Body.String(), tt.expectedRole)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		setupContext   func(c *gin.Context)
		requiredRoles  []string
		expectedStatus int
	}{
		{
			name: "Has Required Role",
			setupContext: func(c *gin.Context) {
				c.Set("role", "admin")
			},
			requiredRoles:  []string{"admin"},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Has One Of Required Roles",
			setupContext: func(c *gin.Context) {
				c.Set("role", "deploy")
			},
			requiredRoles:  []string{"admin", "deploy"},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Missing Required Role",
			setupContext: func(c *gin.Context) {
				c.Set("role", "deploy")
			},
			requiredRoles:  []string{"admin"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "No Role In Context",
			setupContext: func(c *gin.Context) {
			},
			requiredRoles:  []string{"admin"},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				tt.setupContext(c)
				c.Next()
			})
			router.Use(RequireRole(tt.requiredRoles...))
			router.GET("/test", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}
