package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"loyalty/scanhub/internal/service"
	"loyalty/scanhub/pkg/response"
)

// PointsHandler covers the explicit operator action of awarding points after
// a scan has identified the customer. Scans themselves never award.
type PointsHandler struct {
	awarder  service.PointsAwarder
	notifier service.Notifier
}

func NewPointsHandler(awarder service.PointsAwarder, notifier service.Notifier) *PointsHandler {
	return &PointsHandler{awarder: awarder, notifier: notifier}
}

type AwardPointsRequest struct {
	Amount      int    `json:"amount" binding:"required"`
	Source      string `json:"source"`
	CustomerRef *int64 `json:"customer_ref,omitempty"`
}

func (h *PointsHandler) Award(c *gin.Context) {
	cardID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || cardID <= 0 {
		response.BadRequest(c, "invalid card id")
		return
	}

	var req AwardPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "operator"
	}

	if err := h.awarder.AwardPoints(c.Request.Context(), cardID, req.Amount, source); err != nil {
		writeServiceError(c, err)
		return
	}

	if req.CustomerRef != nil {
		// Best effort; delivery mechanics are the notifier's problem.
		_ = h.notifier.Notify(c.Request.Context(), *req.CustomerRef, "points_awarded", map[string]interface{}{
			"card_id": cardID,
			"amount":  req.Amount,
		})
	}

	response.Success(c, gin.H{"card_id": cardID, "amount": req.Amount})
}
