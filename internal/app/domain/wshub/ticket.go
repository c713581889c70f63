package wshub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-search/internal/app/models"
	"github.com/FACorreiaa/loci-search/internal/pkg/cache"
)

const (
	ticketTTL       = 60 * time.Second
	redeemMarkerTTL = 2 * ticketTTL
)

var (
	// ErrStoreUnavailable maps to 503 + Retry-After so clients fall back
	// to HTTP polling instead of retry-storming the ticket endpoint.
	ErrStoreUnavailable = errors.New("ticket store unavailable")
	ErrInvalidTicket    = errors.New("invalid or expired ticket")
	ErrTicketUsed       = errors.New("ticket already redeemed")
)

type ticketClaims struct {
	jwt.RegisteredClaims
}

// TicketService issues and redeems single-use WS tickets. The ticket is a
// signed JWT bound to the session; single-use enforcement lives in Redis so
// it holds across instances.
type TicketService struct {
	signingKey []byte
	redis      *cache.RedisStore
	logger     *zap.Logger
}

func NewTicketService(signingKey string, redis *cache.RedisStore, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{signingKey: []byte(signingKey), redis: redis, logger: logger}
}

// Issue creates a 60s ticket for the session. The issuance record must land
// in Redis; if it cannot, the caller gets ErrStoreUnavailable.
func (s *TicketService) Issue(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: missing session", models.ErrUnauthenticated)
	}

	jti := uuid.NewString()
	now := time.Now()
	claims := ticketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ticketTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign ticket: %w", err)
	}

	if s.redis == nil {
		return "", ErrStoreUnavailable
	}
	if err := s.redis.Set(ctx, "wsticket:"+jti, []byte(sessionID), ticketTTL); err != nil {
		s.logger.Error("ws_ticket_store_unavailable", zap.Error(err))
		return "", ErrStoreUnavailable
	}

	return token, nil
}

// Redeem validates the ticket and consumes it. The SetNX marker makes the
// first redeemer win; everyone else gets ErrTicketUsed.
func (s *TicketService) Redeem(ctx context.Context, ticket string) (string, error) {
	claims := &ticketClaims{}
	token, err := jwt.ParseWithClaims(ticket, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return "", ErrInvalidTicket
	}

	if s.redis == nil {
		return "", ErrStoreUnavailable
	}

	// The issuance record must still exist; its TTL is the real expiry.
	_, found, err := s.redis.Get(ctx, "wsticket:"+claims.ID)
	if err != nil {
		s.logger.Error("ws_ticket_store_unavailable", zap.Error(err))
		return "", ErrStoreUnavailable
	}
	if !found {
		return "", ErrInvalidTicket
	}

	won, err := s.redis.SetNX(ctx, "wsticket:used:"+claims.ID, []byte("1"), redeemMarkerTTL)
	if err != nil {
		s.logger.Error("ws_ticket_store_unavailable", zap.Error(err))
		return "", ErrStoreUnavailable
	}
	if !won {
		return "", ErrTicketUsed
	}

	return claims.Subject, nil
}
