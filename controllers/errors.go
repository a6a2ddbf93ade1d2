package controllers

import (
	"net/http"

	"fieldops/services"

	"github.com/gin-gonic/gin"
)

func statusForCode(code string) int {
	switch code {
	case services.CodeNotFound:
		return http.StatusNotFound
	case services.CodeForbidden:
		return http.StatusForbidden
	case services.CodeInvalidState, services.CodeConflict:
		return http.StatusConflict
	case services.CodePreconditionFailed:
		return http.StatusPreconditionFailed
	case services.CodeAttachmentsRequired:
		return http.StatusUnprocessableEntity
	case services.CodeUploadFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(c *gin.Context, err error) {
	code := services.ErrorCode(err)
	c.JSON(statusForCode(code), gin.H{"error": err.Error(), "code": code})
}
