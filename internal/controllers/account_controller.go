package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cpesync/internal/apperr"
	"cpesync/internal/models"
	"cpesync/internal/store"
)

type AccountController struct {
	Store store.Store
}

// List returns every registered account, credentials stripped.
func (a *AccountController) List(c *gin.Context) {
	accounts, err := a.Store.ListAccounts(c.Request.Context())
	if err != nil {
		apperr.JSON(c, err)
		return
	}
	summaries := make([]models.AccountSummary, 0, len(accounts))
	for _, acct := range accounts {
		summaries = append(summaries, acct.Summary())
	}
	c.JSON(http.StatusOK, summaries)
}

// Delete removes the account and, by cascade, its attendance records.
func (a *AccountController) Delete(c *gin.Context) {
	if err := a.Store.DeleteAccount(c.Request.Context(), c.Param("id")); err != nil {
		if err == store.ErrNotFound {
			apperr.JSON(c, apperr.NotFound("User not found"))
			return
		}
		apperr.JSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
