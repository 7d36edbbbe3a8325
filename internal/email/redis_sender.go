package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"nguide/admin/internal/config"
)

// OutboxTTL is how long a captured message stays readable.
const OutboxTTL = 15 * time.Minute

// OutboxKey is where RedisSender keeps the last message for a recipient.
func OutboxKey(to string) string {
	return "nguide:outbox:" + strings.ToLower(to)
}

// OutboxMessage is the stored form of a captured email.
type OutboxMessage struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
}

// RedisSender captures messages in Redis instead of delivering them, so
// staff and tests can read what a customer would have received.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
	logger *zap.Logger
}

func NewRedisSender(client *redis.Client, cfg *config.Config, logger *zap.Logger) *RedisSender {
	return &RedisSender{client: client, cfg: cfg, logger: logger}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	data, err := json.Marshal(OutboxMessage{
		To:      strings.Join(to, ", "),
		From:    s.cfg.SmtpFromAddress,
		Subject: subject,
		Body:    string(rawMessage),
		SentAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := OutboxKey(primaryTo)
	if err := s.client.Set(ctx, key, data, OutboxTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	s.logger.Debug("email stored in outbox", zap.String("key", key), zap.String("subject", subject))
	return nil
}
