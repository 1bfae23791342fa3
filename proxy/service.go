package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 * It is stateless between requests: every mapping lives in the Store
 */

// maxIDAttempts bounds how many fresh IDs Register tries when the store already holds one
const maxIDAttempts = 5

// UseCase defines the registration and forwarding operations
type UseCase interface {
	Register(ctx context.Context, webhookURL, baseURL string) (string, error)
	Forward(ctx context.Context, id string, payload []byte) error
}

type Service struct {
	Repo     Store
	Relayer  Relayer
	Logger   zerolog.Logger
	IDLength int
	NewID    func(length int) (string, error)
}

// NewService creates a new proxy service with dependency injection
func NewService(repo Store, relayer Relayer, logger zerolog.Logger) *Service {
	return &Service{
		Repo:     repo,
		Relayer:  relayer,
		Logger:   logger,
		IDLength: DefaultIDLength,
		NewID:    GenerateID,
	}
}

// IsDiscordWebhookURL reports whether s is acceptable as a registration target
func IsDiscordWebhookURL(s string) bool {
	return s != "" && strings.HasPrefix(s, DiscordWebhookPrefix)
}

// ProxyURL builds the public proxy URL for id under baseURL (scheme://host)
func ProxyURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + ProxyPath + id
}

// Register validates webhookURL, stores it under a fresh proxy ID and returns the proxy URL
func (s *Service) Register(ctx context.Context, webhookURL, baseURL string) (string, error) {
	if !IsDiscordWebhookURL(webhookURL) {
		return "", ErrInvalidInput
	}

	id, err := s.mintID(ctx)
	if err != nil {
		return "", err
	}

	key := Key(id)
	if err := s.Repo.Set(ctx, key, webhookURL); err != nil {
		s.Logger.Error().Err(err).Str("key", key).Msg("db_write_fail")
		return "", fmt.Errorf("%w: storing mapping: %w", ErrStorageWrite, err)
	}
	s.Logger.Info().Str("key", key).Msg("db_write_ok")

	return ProxyURL(baseURL, id), nil
}

/* mintID draws IDs until one is not present in the store
 * The lookup and the later Set are not atomic, two concurrent registrations
 * drawing the same ID still overwrite each other (last writer wins)
 */
func (s *Service) mintID(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		id, err := s.NewID(s.IDLength)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}

		_, err = s.Repo.Get(ctx, Key(id))
		if errors.Is(err, ErrNotFound) {
			return id, nil
		}
		if err != nil {
			s.Logger.Error().Err(err).Str("key", Key(id)).Msg("db_read_fail")
			return "", fmt.Errorf("%w: probing id: %w", ErrStorageRead, err)
		}
		s.Logger.Warn().Str("key", Key(id)).Int("attempt", attempt).Msg("proxy id collision")
	}
	return "", fmt.Errorf("%w: no free id after %d attempts", ErrStorageWrite, maxIDAttempts)
}

// Forward resolves id and relays payload to the stored webhook URL
func (s *Service) Forward(ctx context.Context, id string, payload []byte) error {
	if id == "" {
		return ErrMissingIdentifier
	}

	key := Key(id)
	webhookURL, err := s.Repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.Logger.Info().Str("key", key).Str("reason", "not found").Msg("db_read_fail")
		return ErrNotFound
	}
	if err != nil {
		s.Logger.Error().Err(err).Str("key", key).Msg("db_read_fail")
		return fmt.Errorf("%w: loading mapping: %w", ErrStorageRead, err)
	}
	s.Logger.Info().Str("key", key).Msg("db_read_ok")

	// once started, the attempt is not aborted by the caller going away
	relayCtx := context.WithoutCancel(ctx)
	relayID := RelayIDFrom(ctx)
	if err := s.Relayer.Relay(relayCtx, webhookURL, payload); err != nil {
		ev := s.Logger.Error().Err(err).Str("key", key).Str("relay_id", relayID)
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			ev = ev.Int("upstream_status", upstream.StatusCode).Str("upstream_body", upstream.Body)
		}
		ev.Msg("proxy_fail")
		return fmt.Errorf("%w: %w", ErrUpstreamForward, err)
	}
	s.Logger.Info().Str("key", key).Str("relay_id", relayID).Msg("relayed")

	return nil
}

type relayIDKey struct{}

// WithRelayID tags ctx with the id used to correlate a relay with its request log line
func WithRelayID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, relayIDKey{}, id)
}

// RelayIDFrom returns the relay id carried by ctx, minting one when absent
func RelayIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(relayIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
