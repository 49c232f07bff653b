package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-llmlab/internal/db"
	"go-llmlab/internal/user"
)

type SetupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// validateCredentials returns a client-facing message, or "" when valid.
func validateCredentials(username, password string) string {
	if username == "" || password == "" {
		return "Username and password required"
	}
	if len(username) > 32 {
		return "Username must be at most 32 characters"
	}
	return ""
}

// createUser stores a new account; a duplicate username yields 400.
func createUser(c *gin.Context, username, password string, role user.Role) (*user.User, bool) {
	pwHash, err := user.HashPassword(password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Password hash failed"}})
		return nil, false
	}
	u := user.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         role,
	}
	if err := db.DB.Create(&u).Error; err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			badRequest(c, "Username already exists")
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "DB error"}})
		return nil, false
	}
	return &u, true
}

// SetupHandler creates the first admin. It is refused once any user exists.
func SetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var count int64
		if err := db.DB.Model(&user.User{}).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "DB error"}})
			return
		}
		if count != 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Setup not allowed; users already exist"}})
			return
		}
		var req SetupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		if msg := validateCredentials(req.Username, req.Password); msg != "" {
			badRequest(c, msg)
			return
		}
		u, ok := createUser(c, req.Username, req.Password, user.RoleAdmin)
		if !ok {
			return
		}
		log.WithField("username", u.Username).Info("initial admin created")
		c.JSON(http.StatusCreated, gin.H{
			"id":             u.ID,
			"username":       u.Username,
			"role":           u.Role,
			"createdAt":      u.CreatedAt,
			"setup_complete": true,
		})
	}
}
