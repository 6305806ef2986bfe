package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fourset-checker/internal/middleware"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

func operatorID(c *gin.Context) string {
	if claims := middleware.Claims(c); claims != nil {
		return claims.OperatorID
	}
	return ""
}

func requireGrade(c *gin.Context) (string, error) {
	grade := strings.TrimSpace(c.Query("grade"))
	if grade == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "grade required")
	}
	return grade, nil
}
