package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gitgrove/auth-api/internal/auth"
	"github.com/gitgrove/auth-api/internal/models"
	log "github.com/sirupsen/logrus"
)

const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// OAuthController wires the protocol endpoints to the authorization
// core. It only parses and translates; every decision lives in the
// services.
type OAuthController struct {
	clients    *auth.ClientService
	codes      *auth.CodeService
	refresh    *auth.RefreshService
	revocation *auth.RevocationService
	devices    *auth.DeviceService
	issuerURL  string
}

func NewOAuthController(clients *auth.ClientService, codes *auth.CodeService, refresh *auth.RefreshService, revocation *auth.RevocationService, devices *auth.DeviceService, issuerURL string) *OAuthController {
	return &OAuthController{
		clients:    clients,
		codes:      codes,
		refresh:    refresh,
		revocation: revocation,
		devices:    devices,
		issuerURL:  issuerURL,
	}
}

// clientCredentials extracts client authentication from HTTP Basic auth
// or the form body (client_secret_basic / client_secret_post).
func clientCredentials(c *gin.Context) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}
	return c.PostForm("client_id"), c.PostForm("client_secret")
}

// respondOAuthError renders an RFC 6749 error body. invalid_client gets
// 401 per §5.2; everything else protocol-level is 400.
func respondOAuthError(c *gin.Context, err error) {
	code := auth.ErrorCode(err)
	status := http.StatusBadRequest
	switch code {
	case models.ErrInvalidClient:
		status = http.StatusUnauthorized
		c.Header("WWW-Authenticate", `Basic realm="oauth"`)
	case models.ErrServerError:
		status = http.StatusInternalServerError
		log.WithError(err).Error("token endpoint failure")
	}
	var description string
	var oe *auth.Error
	if errors.As(err, &oe) {
		description = oe.Description
	}
	c.JSON(status, models.NewOAuth2Error(code, description))
}

func respondTokens(c *gin.Context, resp *auth.TokenResponse) {
	body := gin.H{
		"access_token": resp.AccessToken,
		"token_type":   resp.TokenType,
		"expires_in":   resp.ExpiresIn,
		"scope":        auth.JoinScopes(resp.Scopes),
	}
	if resp.RefreshToken != "" {
		body["refresh_token"] = resp.RefreshToken
	}
	if resp.IDToken != "" {
		body["id_token"] = resp.IDToken
	}
	c.JSON(http.StatusOK, body)
}

// HandleToken godoc
// @Summary Token Endpoint
// @Description Exchange an authorization code, refresh token or device code for tokens
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "authorization_code, refresh_token or device_code URN"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Router /oauth/token [post]
func (oc *OAuthController) HandleToken(c *gin.Context) {
	grantType := c.PostForm("grant_type")

	switch grantType {
	case "authorization_code":
		oc.handleAuthorizationCodeGrant(c)
	case "refresh_token":
		oc.handleRefreshTokenGrant(c)
	case deviceCodeGrantType:
		oc.handleDeviceCodeGrant(c)
	case "":
		respondOAuthError(c, auth.NewError(models.ErrInvalidRequest, "grant_type is required"))
	default:
		respondOAuthError(c, auth.NewError(models.ErrUnsupportedGrantType, "unsupported grant_type: "+grantType))
	}
}

func (oc *OAuthController) handleAuthorizationCodeGrant(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	code := c.PostForm("code")
	redirectURI := c.PostForm("redirect_uri")

	if code == "" || clientID == "" || redirectURI == "" {
		respondOAuthError(c, auth.NewError(models.ErrInvalidRequest, "code, client_id and redirect_uri are required"))
		return
	}

	client, err := oc.clients.ValidateClientCredentials(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	if !client.AllowsGrantType("authorization_code") {
		respondOAuthError(c, auth.NewError(models.ErrUnauthorizedClient, "client may not use the authorization_code grant"))
		return
	}

	resp, err := oc.codes.ExchangeAuthorizationCode(c.Request.Context(), auth.ExchangeRequest{
		Code:         code,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		CodeVerifier: c.PostForm("code_verifier"),
	})
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	respondTokens(c, resp)
}

func (oc *OAuthController) handleRefreshTokenGrant(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	refreshToken := c.PostForm("refresh_token")

	if refreshToken == "" || clientID == "" {
		respondOAuthError(c, auth.NewError(models.ErrInvalidRequest, "refresh_token and client_id are required"))
		return
	}

	resp, err := oc.refresh.RefreshAccessToken(c.Request.Context(), refreshToken, clientID, clientSecret)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	respondTokens(c, resp)
}

func (oc *OAuthController) handleDeviceCodeGrant(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	deviceCode := c.PostForm("device_code")

	if deviceCode == "" || clientID == "" {
		respondOAuthError(c, auth.NewError(models.ErrInvalidRequest, "device_code and client_id are required"))
		return
	}

	if _, err := oc.clients.ValidateClientCredentials(c.Request.Context(), clientID, clientSecret); err != nil {
		respondOAuthError(c, err)
		return
	}

	resp, err := oc.devices.ExchangeDeviceCode(c.Request.Context(), deviceCode, clientID)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	respondTokens(c, resp)
}

// HandleDeviceAuthorization godoc
// @Summary Device Authorization Endpoint
// @Description Start an RFC 8628 device flow
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param client_id formData string true "Client ID"
// @Param scope formData string false "Requested scopes"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.OAuth2Error
// @Router /oauth/device/code [post]
func (oc *OAuthController) HandleDeviceAuthorization(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	if clientID == "" {
		respondOAuthError(c, auth.NewError(models.ErrInvalidRequest, "client_id is required"))
		return
	}

	client, err := oc.clients.ValidateClientCredentials(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	if !client.AllowsGrantType(deviceCodeGrantType) {
		respondOAuthError(c, auth.NewError(models.ErrUnauthorizedClient, "client may not use the device_code grant"))
		return
	}

	da, err := oc.devices.CreateDeviceAuthorization(c.Request.Context(), clientID, auth.SplitScopes(c.PostForm("scope")))
	if err != nil {
		respondOAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_code":               da.DeviceCode,
		"user_code":                 da.UserCode,
		"verification_uri":          oc.issuerURL + "/device",
		"verification_uri_complete": oc.issuerURL + "/device?user_code=" + da.UserCode,
		"expires_in":                da.ExpiresIn,
		"interval":                  da.Interval,
	})
}

// HandleRevoke godoc
// @Summary Revocation Endpoint
// @Description Revoke an access or refresh token (RFC 7009)
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param token formData string true "The token to revoke"
// @Param token_type_hint formData string false "access_token or refresh_token"
// @Success 200
// @Router /oauth/revoke [post]
func (oc *OAuthController) HandleRevoke(c *gin.Context) {
	token := c.PostForm("token")
	hint := c.PostForm("token_type_hint")

	// RFC 7009 §2.2: the response is 200 whatever happened, so callers
	// cannot probe for token existence.
	if token != "" {
		if err := oc.revocation.RevokeToken(c.Request.Context(), token, hint); err != nil {
			log.WithError(err).Error("revocation store failure")
		}
	}
	c.Status(http.StatusOK)
}

// HandleIntrospect godoc
// @Summary Introspection Endpoint
// @Description Inspect a token (RFC 7662); requires an authenticated confidential client
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param token formData string true "The token to introspect"
// @Param token_type_hint formData string false "access_token or refresh_token"
// @Success 200 {object} auth.Introspection
// @Failure 401 {object} models.OAuth2Error
// @Router /oauth/introspect [post]
func (oc *OAuthController) HandleIntrospect(c *gin.Context) {
	clientID, clientSecret := clientCredentials(c)
	client, err := oc.clients.ValidateClientCredentials(c.Request.Context(), clientID, clientSecret)
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	if !client.IsConfidential {
		respondOAuthError(c, auth.NewError(models.ErrInvalidClient, "introspection requires a confidential client"))
		return
	}

	token := c.PostForm("token")
	if strings.TrimSpace(token) == "" {
		respondOAuthError(c, auth.NewError(models.ErrInvalidRequest, "token is required"))
		return
	}

	info, err := oc.revocation.IntrospectToken(c.Request.Context(), token, c.PostForm("token_type_hint"))
	if err != nil {
		respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
