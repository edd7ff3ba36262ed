package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-library-views/internal/middleware"
	"github.com/noah-isme/sma-library-views/internal/models"
	appErrors "github.com/noah-isme/sma-library-views/pkg/errors"
	"github.com/noah-isme/sma-library-views/pkg/response"
)

// SessionHeader lets one user keep independent view state per browser tab.
const SessionHeader = "X-View-Session"

const maxSessionIDLength = 64

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// callerFromContext resolves the caller, writing a 401 when there is none.
func callerFromContext(c *gin.Context) (models.ViewCaller, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.ViewCaller{}, false
	}
	sessionID := c.GetHeader(SessionHeader)
	if len(sessionID) > maxSessionIDLength {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session header too long"))
		return models.ViewCaller{}, false
	}
	return models.CallerFromClaims(claims, sessionID), true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return false
	}
	return true
}
