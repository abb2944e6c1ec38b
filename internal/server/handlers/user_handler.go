package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/auth"
	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/internal/service/accounts"
)

// UserHandler serves login and user management.
type UserHandler struct {
	svc    *accounts.Service
	logger *zap.Logger
}

// NewUserHandler constructs the user HTTP adapter.
func NewUserHandler(svc *accounts.Service, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{svc: svc, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin issues a token to an ADMIN account.
func (h *UserHandler) AdminLogin(c *gin.Context) {
	h.login(c, models.RoleAdmin)
}

// RecordKeeperLogin issues a token to a RECORD_KEEPER account.
func (h *UserHandler) RecordKeeperLogin(c *gin.Context) {
	h.login(c, models.RoleRecordKeeper)
}

func (h *UserHandler) login(c *gin.Context, role models.Role) {
	var req loginRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, role)
	if err != nil {
		h.logger.Info("login rejected", zap.String("role", string(role)), zap.Error(err))
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Register creates a user account.
func (h *UserHandler) Register(c *gin.Context) {
	var req accounts.RegisterInput
	if !bindJSON(c, h.logger, &req) {
		return
	}

	user, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	actor, _ := auth.CurrentUser(c)

	user, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req accounts.UpdateInput
	if !bindJSON(c, h.logger, &req) {
		return
	}
	actor, _ := auth.CurrentUser(c)

	user, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
