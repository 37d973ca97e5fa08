package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gitgrove/auth-api/internal/audit"
	"github.com/gitgrove/auth-api/internal/auth"
	"github.com/gitgrove/auth-api/internal/config"
	"github.com/gitgrove/auth-api/internal/controllers"
	"github.com/gitgrove/auth-api/internal/database"
	"github.com/gitgrove/auth-api/internal/models"
	"github.com/gitgrove/auth-api/internal/profile"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/swaggo/files"
	"github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	configuration *config.Config

	oauthController        *controllers.OAuthController
	registrationController *controllers.RegistrationController
	discoveryController    *controllers.DiscoveryController
)

// @title GitGrove Authorization Server
// @version 1.0
// @description OAuth 2.0 / OpenID Connect authorization server for the GitGrove developer platform
// @host localhost:8080
// @BasePath /
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration = loadConfig()

	// Initialize database connection
	setupDatabase(configuration)

	// Initialize the authorization core and its controllers
	emitter := audit.NewEmitter(&audit.LogrusSink{Logger: log.StandardLogger()}, 512)
	defer emitter.Close()
	setupServices(configuration, emitter)

	// Initialize Gin router
	router := setupRouter()

	// Start the server
	log.Infof("Starting authorization server on %s:%d", configuration.Host, configuration.Port)
	router.Run(fmt.Sprintf("%v:%d", configuration.Host, configuration.Port))
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadConfig loads the application configuration from environment variables
func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

// setupDatabase opens the store and migrates the OAuth schema
func setupDatabase(conf *config.Config) {
	var err error
	db, err = database.InitDatabase(database.DatabaseConfig{
		Driver:   conf.DBDriver,
		Host:     conf.DBHost,
		Port:     conf.DBPort,
		User:     conf.DBUser,
		Password: conf.DBPassword,
		Name:     conf.DBName,
		SSLMode:  config.GetEnvWithDefault("DB_SSLMODE", "disable"),
		Path:     conf.DBPath,
	})
	checkPanicErr(err)

	err = db.AutoMigrate(
		&models.OAuthClient{},
		&models.OAuthCode{},
		&models.AccessToken{},
		&models.RefreshToken{},
		&models.Consent{},
		&models.DeviceCode{},
	)
	checkPanicErr(err)
}

// setupServices builds the authorization core and binds the controllers
func setupServices(conf *config.Config, emitter *audit.Emitter) {
	profiles := profile.NewClient(config.GetEnvWithDefault("PROFILE_API_URL", "http://localhost:8081"))

	clients := auth.NewClientService(db)
	tokens := auth.NewTokenService(db, profiles, emitter, auth.TokenConfig{
		Issuer:          conf.IssuerURL,
		IDTokenSecret:   []byte(conf.IDTokenSecret),
		AccessTokenTTL:  conf.AccessTokenTTL,
		RefreshTokenTTL: conf.RefreshTokenTTL,
	})
	consents := auth.NewConsentService(db, clients, emitter)
	codes := auth.NewCodeService(db, clients, tokens, consents, emitter, conf.AuthCodeTTL)
	refresh := auth.NewRefreshService(db, clients, tokens, emitter)
	revocation := auth.NewRevocationService(db, emitter, conf.IssuerURL)
	devices := auth.NewDeviceService(db, clients, tokens, emitter)
	registrar := auth.NewRegistrarService(db, emitter, conf.AllowedScopes, conf.DefaultScopes)

	oauthController = controllers.NewOAuthController(clients, codes, refresh, revocation, devices, conf.IssuerURL)
	registrationController = controllers.NewRegistrationController(registrar)
	discoveryController = controllers.NewDiscoveryController(conf.IssuerURL, conf.AllowedScopes)
}

// setupRouter initializes the Gin router and sets up the routes
func setupRouter() *gin.Engine {
	router := gin.Default()
	setupRoutes(router)
	return router
}

// setupRoutes defines the routes for the Gin router
func setupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", healthCheckHandler)

	// Discovery document
	router.GET("/.well-known/openid-configuration", discoveryController.HandleDiscovery)

	// Protocol endpoints
	oauthGroup := router.Group("/oauth")
	{
		oauthGroup.POST("/token", oauthController.HandleToken)
		oauthGroup.POST("/revoke", oauthController.HandleRevoke)
		oauthGroup.POST("/introspect", oauthController.HandleIntrospect)
		oauthGroup.POST("/register", registrationController.HandleRegister)
		oauthGroup.POST("/device/code", oauthController.HandleDeviceAuthorization)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "gitgrove-auth",
	})
}
