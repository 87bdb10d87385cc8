package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shellgame-backend/internal/models"
	"shellgame-backend/internal/services"
)

type GameHandler struct {
	engine       *services.GameEngine
	redisService *services.RedisService
}

func NewGameHandler(engine *services.GameEngine, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		engine:       engine,
		redisService: redisService,
	}
}

// StartRound opens a round in the submitting phase. The wager is debited
// optimistically; slot selection triggers the on-ledger submission.
func (h *GameHandler) StartRound(c *gin.Context) {
	var req models.StartRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	round, err := h.engine.StartRound(req.WagerAmount, req.SpeedTier)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusCreated, round)
}

// SelectSlot commits the player's pick and kicks off submission,
// confirmation and settlement in the background.
func (h *GameHandler) SelectSlot(c *gin.Context) {
	roundID := c.Param("id")

	var req models.SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.engine.SelectSlot(roundID, req.Slot); err != nil {
		respondGameError(c, err)
		return
	}

	round, err := h.engine.GetRound(roundID)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, round)
}

// CancelRound abandons a round that has not picked a slot yet and
// refunds the optimistic debit. Past that point it is a no-op.
func (h *GameHandler) CancelRound(c *gin.Context) {
	roundID := c.Param("id")

	if err := h.engine.Cancel(roundID); err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// RetryClaim re-runs the payout claim for a won round whose original
// claim transaction failed.
func (h *GameHandler) RetryClaim(c *gin.Context) {
	roundID := c.Param("id")

	round, err := h.engine.RetryClaim(roundID)
	if err != nil {
		respondGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, round)
}

// GetCurrentRound returns the in-flight round, if any.
func (h *GameHandler) GetCurrentRound(c *gin.Context) {
	round := h.engine.CurrentRound()
	if round == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No round in flight"})
		return
	}

	c.JSON(http.StatusOK, round)
}

// GetRound looks up a round by id, falling back to the settled-round
// store for rounds the engine has already evicted.
func (h *GameHandler) GetRound(c *gin.Context) {
	roundID := c.Param("id")

	round, err := h.engine.GetRound(roundID)
	if err != nil {
		stored, storeErr := h.redisService.GetRound(roundID)
		if storeErr != nil || stored == nil {
			respondGameError(c, err)
			return
		}
		round = stored
	}

	c.JSON(http.StatusOK, round)
}

// GetRoundHistory returns the most recent settled rounds for the
// authenticated address, newest first.
func (h *GameHandler) GetRoundHistory(c *gin.Context) {
	address := c.GetString("address")

	limit := int64(20)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	rounds, err := h.redisService.GetRoundHistory(address, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rounds": rounds,
		"count":  len(rounds),
	})
}

// respondGameError maps a typed game error onto an HTTP status. Untyped
// errors fall through as 500s.
func respondGameError(c *gin.Context, err error) {
	var ge *models.GameError
	if !errors.As(err, &ge) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	switch ge.Kind {
	case models.KindInvalidWager, models.KindInvalidSlot, models.KindSlotAlreadySelected, models.KindMalformedHash:
		status = http.StatusBadRequest
	case models.KindRoundInFlight:
		status = http.StatusConflict
	case models.KindRoundNotFound:
		status = http.StatusNotFound
	case models.KindNoWalletSession:
		status = http.StatusUnauthorized
	case models.KindUserRejected, models.KindSigningRejected:
		status = http.StatusForbidden
	case models.KindProviderUnavailable:
		status = http.StatusServiceUnavailable
	case models.KindSubmissionFailed, models.KindResultUnavailable, models.KindClaimFailed:
		status = http.StatusBadGateway
	case models.KindConfirmationTimeout:
		status = http.StatusGatewayTimeout
	}

	body := gin.H{
		"error": ge.Message,
		"kind":  ge.Kind,
	}
	if ge.TxID != "" {
		body["tx_id"] = ge.TxID
	}

	c.JSON(status, body)
}
