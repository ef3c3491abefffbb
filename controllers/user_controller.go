package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"chat-engine/middlewares"
	"chat-engine/models"
	"chat-engine/services"
	"chat-engine/utils"
)

type UserController struct {
	DB        *gorm.DB
	JWTSecret string
}

type registerRequest struct {
	FullName string      `json:"fullName" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=6"`
	Role     models.Role `json:"role"`
}

// Register creates an account and returns an access token. Only the User and
// Guest roles are self-assignable.
func (uc *UserController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "fullName, email and password are required")
		return
	}
	role := models.RoleUser
	if req.Role == models.RoleGuest {
		role = models.RoleGuest
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := models.User{
		ID:       uuid.NewString(),
		FullName: req.FullName,
		Email:    req.Email,
		Password: string(hashed),
		Role:     role,
	}
	// The unique index arbitrates concurrent registrations of one email;
	// both losers and plain repeats get the same answer.
	if err := uc.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, http.StatusBadRequest, "email already registered")
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := services.GenerateToken(&user, uc.JWTSecret)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}
	utils.RespondSuccess(c, http.StatusCreated, gin.H{"token": token, "user": publicUser(&user)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (uc *UserController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	var user models.User
	if err := uc.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "invalid email or password")
		return
	}

	now := time.Now()
	user.LastLogin = &now
	uc.DB.Save(&user)

	token, err := services.GenerateToken(&user, uc.JWTSecret)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{"token": token, "user": publicUser(&user)})
}

// Me returns the authenticated account.
func (uc *UserController) Me(c *gin.Context) {
	user, ok := middlewares.CurrentUser(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "user not found")
		return
	}
	utils.RespondSuccess(c, http.StatusOK, gin.H{"user": publicUser(user)})
}

func publicUser(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"fullName": u.FullName,
		"email":    u.Email,
		"role":     u.Role,
		"avatar":   u.AvatarURL,
	}
}
