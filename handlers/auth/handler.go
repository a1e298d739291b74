package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/amitthakurameotech-cmyk/subscription-plan/db"
	"github.com/amitthakurameotech-cmyk/subscription-plan/models"
	"github.com/amitthakurameotech-cmyk/subscription-plan/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// @Summary Create a new user
// @Description Create a new user with the provided information
// @Tags auth
// @Accept json
// @Produce json
// @Param user body models.User true "User information"
// @Success 201 {object} map[string]interface{} "message: User created successfully, email: user email"
// @Failure 400 {object} map[string]interface{} "error: Invalid input"
// @Failure 409 {object} map[string]interface{} "error: Email already exists"
// @Failure 500 {object} map[string]interface{} "error: Error message"
// @Router /register [post]
func CreateUser(c *gin.Context) {
	var user models.User
	if err := c.ShouldBindJSON(&user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input: " + err.Error(),
		})
		return
	}

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var existing models.User
	if err := db.DB.First(&existing, "email = ?", user.Email).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already exists"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.LogError(err, "Error checking the email in CreateUser")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating the user"})
		return
	}

	hashed, err := hashPassword(user.Password)
	if err != nil {
		utils.LogError(err, "Error hashing the password in CreateUser")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating the user"})
		return
	}
	user.Password = hashed
	user.Role = models.UserRole

	if err := db.DB.Create(&user).Error; err != nil {
		utils.LogError(err, "Error creating the user in CreateUser")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating the user"})
		return
	}

	utils.LogSuccessWithUser(user.ID, "User created successfully")
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"email":   user.Email,
	})
}

// @Summary Log a user in
// @Description Authenticate a user and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.UserLogin true "Credentials"
// @Success 200 {object} map[string]string "token: JWT"
// @Failure 400 {object} map[string]string "error: Invalid input"
// @Failure 401 {object} map[string]string "error: Invalid credentials"
// @Router /login [post]
func Login(c *gin.Context) {
	var credentials models.UserLogin
	if err := c.ShouldBindJSON(&credentials); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid input: " + err.Error(),
		})
		return
	}

	var user models.User
	err := db.DB.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(credentials.Email))).Error
	if err != nil || !samePassword(credentials.Password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := utils.GenerateJWT(user, 72)
	if err != nil {
		utils.LogErrorWithUser(user.ID, err, "Error generating the JWT in Login")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error generating the token"})
		return
	}

	utils.LogSuccessWithUser(user.ID, "User logged in")
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func hashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

func samePassword(formPassword string, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(formPassword))
	return err == nil
}
