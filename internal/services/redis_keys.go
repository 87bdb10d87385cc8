package services

import "time"

const (
	KeyRound          = "round:%s"
	KeyWalletSession  = "wallet:session:%s"
	KeyAddressHistory = "address:%s:rounds"
	KeyRateLimit      = "ratelimit:%s:%s"

	TTLRound         = 7 * 24 * time.Hour
	TTLWalletSession = 24 * time.Hour

	// history keeps the most recent settled rounds per address
	HistoryDepth = 100

	DefaultRateLimitRounds = 30 // max round starts per minute per address
)
