package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shellgame-backend/internal/models"
)

// RedisService keeps the settled-round audit trail and the persisted wallet
// session. In-flight rounds live only in the engine; what lands here is the
// record a player (or an auditor) can check against the ledger explorer.
type RedisService struct {
	client *redis.Client
	ctx    context.Context
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisService(cfg RedisConfig) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisService{client: client, ctx: ctx}, nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// recordRoundScript stores the settled round and appends it to the owner's
// history in one atomic step, trimming the history to its depth.
var recordRoundScript = redis.NewScript(`
	local roundKey = KEYS[1]
	local historyKey = KEYS[2]
	local payload = ARGV[1]
	local roundID = ARGV[2]
	local score = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local depth = tonumber(ARGV[5])

	redis.call("SET", roundKey, payload, "EX", ttl)
	redis.call("ZADD", historyKey, score, roundID)
	redis.call("ZREMRANGEBYRANK", historyKey, 0, -(depth + 1))
	redis.call("EXPIRE", historyKey, ttl)

	return "OK"
`)

// SaveSettledRound implements the engine's RoundStore.
func (s *RedisService) SaveSettledRound(round *models.GameRound) error {
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %v", err)
	}

	roundKey := fmt.Sprintf(KeyRound, round.ID)
	historyKey := fmt.Sprintf(KeyAddressHistory, round.Address)
	score := float64(round.SettledAt.Unix())
	if round.SettledAt.IsZero() {
		score = float64(round.CreatedAt.Unix())
	}

	return recordRoundScript.Run(s.ctx, s.client,
		[]string{roundKey, historyKey},
		data, round.ID, score, int(TTLRound.Seconds()), HistoryDepth,
	).Err()
}

func (s *RedisService) GetRound(roundID string) (*models.GameRound, error) {
	key := fmt.Sprintf(KeyRound, roundID)

	data, err := s.client.Get(s.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("round not found: %s", roundID)
		}
		return nil, fmt.Errorf("failed to get round: %v", err)
	}

	var round models.GameRound
	if err := json.Unmarshal([]byte(data), &round); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round: %v", err)
	}
	return &round, nil
}

func (s *RedisService) GetRoundHistory(address string, limit int64) ([]*models.GameRound, error) {
	if limit <= 0 || limit > HistoryDepth {
		limit = 50
	}

	historyKey := fmt.Sprintf(KeyAddressHistory, address)

	roundIDs, err := s.client.ZRevRange(s.ctx, historyKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get round ids: %v", err)
	}

	var rounds []*models.GameRound
	for _, id := range roundIDs {
		round, err := s.GetRound(id)
		if err != nil {
			continue
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

func (s *RedisService) StoreWalletSession(session *models.WalletSession) error {
	key := fmt.Sprintf(KeyWalletSession, session.Address)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(s.ctx, key, data, TTLWalletSession).Err()
}

func (s *RedisService) GetWalletSession(address string) (*models.WalletSession, error) {
	key := fmt.Sprintf(KeyWalletSession, address)

	data, err := s.client.Get(s.ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var session models.WalletSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *RedisService) DeleteWalletSession(address string) error {
	key := fmt.Sprintf(KeyWalletSession, address)
	return s.client.Del(s.ctx, key).Err()
}

func (s *RedisService) CheckRateLimit(address, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, address, action)

	count, err := s.client.Incr(s.ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %v", err)
	}

	if count == 1 {
		s.client.Expire(s.ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) DeleteRound(roundID string) error {
	key := fmt.Sprintf(KeyRound, roundID)
	return s.client.Del(s.ctx, key).Err()
}

func (s *RedisService) DeleteRoundHistory(address string) error {
	key := fmt.Sprintf(KeyAddressHistory, address)
	return s.client.Del(s.ctx, key).Err()
}

func (s *RedisService) ClearRateLimit(address, action string) error {
	key := fmt.Sprintf(KeyRateLimit, address, action)
	return s.client.Del(s.ctx, key).Err()
}
