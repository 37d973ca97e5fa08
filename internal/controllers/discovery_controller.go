package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DiscoveryController serves the OpenID Provider discovery document. The
// advertised capabilities mirror what the server actually implements;
// nothing here is aspirational.
type DiscoveryController struct {
	document gin.H
}

func NewDiscoveryController(issuerURL string, supportedScopes []string) *DiscoveryController {
	return &DiscoveryController{
		document: gin.H{
			"issuer":                                issuerURL,
			"token_endpoint":                        issuerURL + "/oauth/token",
			"revocation_endpoint":                   issuerURL + "/oauth/revoke",
			"introspection_endpoint":                issuerURL + "/oauth/introspect",
			"registration_endpoint":                 issuerURL + "/oauth/register",
			"device_authorization_endpoint":         issuerURL + "/oauth/device/code",
			"authorization_endpoint":                issuerURL + "/oauth/authorize",
			"scopes_supported":                      supportedScopes,
			"response_types_supported":              []string{"code"},
			"grant_types_supported":                 []string{"authorization_code", "refresh_token", "urn:ietf:params:oauth:grant-type:device_code"},
			"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post", "none"},
			"code_challenge_methods_supported":      []string{"S256", "plain"},
			"id_token_signing_alg_values_supported": []string{"HS256"},
			"subject_types_supported":               []string{"public"},
		},
	}
}

// HandleDiscovery godoc
// @Summary OpenID Provider Configuration
// @Description Static discovery document
// @Tags OAuth2
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /.well-known/openid-configuration [get]
func (dc *DiscoveryController) HandleDiscovery(c *gin.Context) {
	c.JSON(http.StatusOK, dc.document)
}
