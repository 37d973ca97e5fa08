package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gitgrove/auth-api/internal/auth"
	"github.com/gitgrove/auth-api/internal/models"
)

// RegistrationController exposes RFC 7591 dynamic client registration.
type RegistrationController struct {
	registrar *auth.RegistrarService
}

func NewRegistrationController(registrar *auth.RegistrarService) *RegistrationController {
	return &RegistrationController{registrar: registrar}
}

// HandleRegister godoc
// @Summary Dynamic Client Registration
// @Description Self-service client provisioning (RFC 7591)
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param request body auth.ClientRegistrationRequest true "Client metadata"
// @Success 201 {object} auth.ClientRegistrationResponse
// @Failure 400 {object} models.OAuth2Error
// @Router /oauth/register [post]
func (rc *RegistrationController) HandleRegister(c *gin.Context) {
	var req auth.ClientRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewOAuth2Error(models.ErrInvalidClientMetadata, "request body is not valid registration metadata"))
		return
	}

	resp, err := rc.registrar.RegisterClient(c.Request.Context(), req)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
