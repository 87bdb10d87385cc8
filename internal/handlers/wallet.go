package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"shellgame-backend/internal/models"
	"shellgame-backend/internal/services"
)

type WalletHandler struct {
	wallets      *services.WalletManager
	jwtService   *services.JWTService
	redisService *services.RedisService
}

func NewWalletHandler(wallets *services.WalletManager, jwtService *services.JWTService, redisService *services.RedisService) *WalletHandler {
	return &WalletHandler{
		wallets:      wallets,
		jwtService:   jwtService,
		redisService: redisService,
	}
}

// GetProviders lists registered wallet providers with live availability.
func (h *WalletHandler) GetProviders(c *gin.Context) {
	providers := h.wallets.Providers(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"providers": providers})
}

// Connect establishes a wallet session with the requested provider and
// mints a bearer token scoped to the connected address.
func (h *WalletHandler) Connect(c *gin.Context) {
	var req models.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	session, err := h.wallets.Connect(c.Request.Context(), req.ProviderID)
	if err != nil {
		respondGameError(c, err)
		return
	}

	token, err := h.jwtService.GenerateToken(session.Address, session.ProviderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session token"})
		return
	}

	if err := h.redisService.StoreWalletSession(session); err != nil {
		log.Printf("Failed to persist wallet session: %v", err)
	}

	c.JSON(http.StatusOK, models.ConnectResponse{
		Token:   token,
		Session: session,
	})
}

// Disconnect tears down the active wallet session. Always succeeds.
func (h *WalletHandler) Disconnect(c *gin.Context) {
	address := c.GetString("address")

	h.wallets.Disconnect(c.Request.Context())

	if address != "" {
		if err := h.redisService.DeleteWalletSession(address); err != nil {
			log.Printf("Failed to delete wallet session: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"disconnected": true})
}

// GetBalance refreshes the on-ledger balance for the active session.
// A failed refresh still returns the last-known figure, flagged stale.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	session := h.wallets.Session()
	if session == nil {
		respondGameError(c, models.NewGameError(models.KindNoWalletSession, "no wallet connected"))
		return
	}

	balance, known := h.wallets.RefreshBalance(c.Request.Context())

	c.JSON(http.StatusOK, models.BalanceResponse{
		Address:      session.Address,
		Balance:      balance,
		BalanceKnown: known,
	})
}
