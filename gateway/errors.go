package gateway

import (
	"net/http"

	"github.com/example/khanpan/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}

// serverError logs err and answers 500 with the detail in "error".
func (g *Gateway) serverError(c *gin.Context, message string, err error) {
	logger.FromContext(c.Request.Context(), g.logger).Error(message, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"message": message, "error": err.Error()})
}
