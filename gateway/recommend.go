package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/example/khanpan/pkg/logger"
	"github.com/example/khanpan/pkg/recommend"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type recommendationRequest struct {
	Text    *string         `json:"text"`
	History json.RawMessage `json:"history"`
}

// @Summary  Ask the menu assistant
// @Tags     recommendation
// @Accept   json
// @Produce  json
// @Param    body body recommendationRequest true "text and prior history"
// @Success  200 {object} map[string]interface{}
// @Failure  500 {object} map[string]interface{}
// @Router   /api/food-recommendation [post]
func (g *Gateway) foodRecommendation(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), g.logger)

	var req recommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Unreadable recommendation request, using defaults", zap.Error(err))
	}

	text := "Hi"
	if req.Text != nil {
		text = *req.Text
	}
	history := decodeHistory(req.History, log)

	reply, err := g.recommender.Recommend(c.Request.Context(), text, history)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"text": recommend.FallbackText})
		return
	}

	resp := gin.H{"text": reply}
	if items, ok := recommend.ParseMenuListing(reply); ok {
		resp["menu"] = items
	} else if recommend.IsRecommendationList(reply) {
		resp["recommendations"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// decodeHistory accepts either a JSON array of messages or a string holding
// one. Anything unreadable becomes an empty history.
func decodeHistory(raw json.RawMessage, log *zap.Logger) []recommend.Message {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			log.Warn("Invalid history format, using empty", zap.Error(err))
			return nil
		}
		raw = []byte(encoded)
	}

	var history []recommend.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		log.Warn("Invalid history format, using empty", zap.Error(err))
		return nil
	}
	return history
}
