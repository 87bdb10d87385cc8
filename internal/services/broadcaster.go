package services

import "shellgame-backend/internal/models"

// Broadcaster pushes round and balance changes to connected clients.
type Broadcaster interface {
	BroadcastRoundUpdate(address string, round *models.GameRound)
	BroadcastBalance(address string, balance uint64, known bool)
}
