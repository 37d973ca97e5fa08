package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gitgrove/auth-api/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Seeds a first-party confidential client for local development so the
// token endpoints can be exercised without going through dynamic
// registration.
func main() {
	dbPath := flag.String("db", "auth.sqlite", "Path to the sqlite database")
	firstParty := flag.Bool("first-party", true, "Register the client as first-party (skips consent)")
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(&models.OAuthClient{}); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}

	clientID := "dev-client"
	clientSecret := "dev-secret-change-me"

	var existing models.OAuthClient
	if err := db.Where("id = ?", clientID).First(&existing).Error; err == nil {
		fmt.Println("Client already exists:", clientID)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash secret:", err)
	}

	client := models.OAuthClient{
		ID:             clientID,
		SecretHash:     string(hash),
		Name:           "GitGrove Dev Client",
		RedirectURIs:   "http://localhost:3000/callback",
		Scopes:         "openid profile email offline_access repo:read repo:write",
		GrantTypes:     "authorization_code refresh_token urn:ietf:params:oauth:grant-type:device_code",
		ResponseTypes:  "code",
		RequirePKCE:    true,
		IsConfidential: true,
		IsFirstParty:   *firstParty,
		IsActive:       true,
	}
	if err := db.Create(&client).Error; err != nil {
		log.Fatal("Failed to create client:", err)
	}

	fmt.Println("Created dev client")
	fmt.Println("  client_id:    ", clientID)
	fmt.Println("  client_secret:", clientSecret)
}
