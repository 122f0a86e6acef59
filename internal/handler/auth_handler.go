package handler

import (
	"github.com/gin-gonic/gin"

	"loyalty/scanhub/internal/service"
	"loyalty/scanhub/pkg/response"
)

type AuthHandler struct {
	auth *service.DeviceAuth
}

func NewAuthHandler(auth *service.DeviceAuth) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type TokenRequest struct {
	DeviceID int64  `json:"device_id" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// Token exchanges scanner device credentials for a bearer token.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	token, device, err := h.auth.Authenticate(c.Request.Context(), req.DeviceID, req.Secret)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"token":       token,
		"business_id": device.BusinessID,
	})
}

type ProvisionDeviceRequest struct {
	BusinessID int64  `json:"business_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

// Provision registers a new scanner device. The secret in the response is
// shown exactly once.
func (h *AuthHandler) Provision(c *gin.Context) {
	var req ProvisionDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	device, secret, err := h.auth.Provision(c.Request.Context(), req.BusinessID, req.Name)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"device": device,
		"secret": secret,
	})
}
