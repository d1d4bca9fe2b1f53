package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/config"
	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/middleware"
	"github.com/toxnroot/trans-invoice-v3/models"
)

type UserHandler struct {
	svc    *ledger.Service
	config *config.Config
	logger logrus.FieldLogger
}

func NewUserHandler(svc *ledger.Service, cfg *config.Config, logger logrus.FieldLogger) *UserHandler {
	return &UserHandler{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
}

// RegisterRequest body. Missing fields fall back to the token's claims.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UpdateRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// Register creates the caller's profile on first sign-in.
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Name == "" {
		req.Name = c.GetString("name")
	}
	if req.Email == "" {
		req.Email = c.GetString("email")
	}

	ctx := c.Request.Context()
	var profile *models.UserProfile
	err := retryConflicts(ctx, h.config.TxMaxAttempts, func() error {
		var err error
		profile, err = h.svc.CreateUserProfile(ctx, models.NewUserProfile{
			UID:   c.GetString("userID"),
			Name:  req.Name,
			Email: req.Email,
		})
		return err
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) Me(c *gin.Context) {
	profile, err := h.svc.GetUserProfile(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.svc.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// UpdateRole changes another user's role. Admins cannot demote themselves.
func (h *UserHandler) UpdateRole(c *gin.Context) {
	target := c.Param("uid")
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if target == c.GetString("userID") {
		respondError(c, h.logger, errors.Wrap(ledger.ErrUnauthorized, "cannot change your own role"))
		return
	}

	if err := h.svc.UpdateUserRole(c.Request.Context(), target, req.Role); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": c.GetString("userID"),
		"target":  target,
		"role":    req.Role,
	}).Info("user role changed")
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

// Refresh issues a new access token for the caller's current claims.
func (h *UserHandler) Refresh(c *gin.Context) {
	token, err := middleware.GenerateToken(
		c.GetString("userID"),
		c.GetString("email"),
		c.GetString("name"),
		h.config.JWTSecret,
		h.config.JWTTTL,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_in":   int(h.config.JWTTTL.Seconds()),
	})
}
