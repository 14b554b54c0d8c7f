package controllers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cpesync/internal/apperr"
	"cpesync/internal/middleware"
	"cpesync/internal/models"
	"cpesync/internal/store"
	"cpesync/internal/utils"
)

type AuthController struct {
	Store     store.Store
	JWTSecret string
	TokenTTL  time.Duration
	// AdminCode is the static admin secret; no admin account row exists.
	AdminCode string
}

type registerRequest struct {
	FullName string `json:"fullName" binding:"required"`
	IDNumber string `json:"idNumber" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type studentLoginRequest struct {
	IDNumber string `json:"idNumber" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminLoginRequest struct {
	Code string `json:"code" binding:"required"`
}

// Register creates a student account with a bcrypt-hashed password.
func (a *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.JSON(c, apperr.Validation("All fields are required"))
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		apperr.JSON(c, err)
		return
	}

	acct := models.Account{
		ID:           uuid.NewString(),
		FullName:     req.FullName,
		IDNumber:     req.IDNumber,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.Store.CreateAccount(c.Request.Context(), &acct); err != nil {
		if err == store.ErrDuplicateIDNumber {
			apperr.JSON(c, apperr.Conflict("ID number already registered"))
			return
		}
		apperr.JSON(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"user":    acct.Summary(),
	})
}

// StudentLogin checks credentials and issues a student token. The failure
// message is identical for unknown id numbers and wrong passwords.
func (a *AuthController) StudentLogin(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.JSON(c, apperr.Validation("ID number and password are required"))
		return
	}

	acct, err := a.Store.AccountByIDNumber(c.Request.Context(), req.IDNumber)
	if err != nil || !utils.CheckPassword(acct.PasswordHash, req.Password) {
		apperr.JSON(c, apperr.Auth("Invalid credentials"))
		return
	}

	token, err := middleware.SignStudentToken(a.JWTSecret, acct.ID, a.TokenTTL)
	if err != nil {
		apperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    acct.Summary(),
		"token":   token,
	})
}

// AdminLogin compares the presented code against the static admin secret and
// issues an admin token. Successes are appended to the audit trail.
func (a *AuthController) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.JSON(c, apperr.Validation("Admin code is required"))
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Code), []byte(a.AdminCode)) != 1 {
		apperr.JSON(c, apperr.Auth("Invalid admin code"))
		return
	}

	if err := a.Store.AppendAudit(c.Request.Context(), "admin_login", gin.H{
		"remoteAddr": c.ClientIP(),
	}); err != nil {
		log.Printf("audit append failed: %v", err)
	}

	token, err := middleware.SignAdminToken(a.JWTSecret, a.TokenTTL)
	if err != nil {
		apperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Admin login successful",
		"user":    gin.H{"id": "admin", "role": "admin"},
		"token":   token,
	})
}
