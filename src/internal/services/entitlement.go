package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxshorts/fluxshorts/src/internal/domain"
	"github.com/fluxshorts/fluxshorts/src/internal/log"
	"github.com/fluxshorts/fluxshorts/src/internal/ports"
)

type EntitlementService struct {
	subs   ports.SubscriptionRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewEntitlementService(subs ports.SubscriptionRepository) *EntitlementService {
	return &EntitlementService{
		subs:   subs,
		logger: log.WithComponent("entitlement"),
		now:    time.Now,
	}
}

// IsPaid reports whether the viewer's latest subscription record is paid.
// Anonymous viewers and viewers without any record are not paid. Repository
// failures are returned to the caller, which decides how to degrade.
func (s *EntitlementService) IsPaid(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	sub, err := s.subs.Latest(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup subscription for %s: %w", userID, err)
	}
	return sub.Paid, nil
}

// CheckerFor binds an entitlement check to one viewer. Every call performs a
// fresh lookup.
func (s *EntitlementService) CheckerFor(userID string) ports.EntitlementChecker {
	return ports.EntitlementFunc(func(ctx context.Context) (bool, error) {
		paid, err := s.IsPaid(ctx, userID)
		if err == nil {
			s.logger.Debug().Str("user_id", userID).Bool("paid", paid).Msg("entitlement checked")
		}
		return paid, err
	})
}

// RecordPayment stores a paid subscription after a successful checkout.
func (s *EntitlementService) RecordPayment(ctx context.Context, userID, reference string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}

	now := s.now()
	if reference == "" {
		reference = fmt.Sprintf("flux_%d", now.UnixMilli())
	}

	sub := &domain.Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Paid:      true,
		Reference: reference,
		CreatedAt: now,
	}
	if err := s.subs.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("reference", reference).Msg("subscription recorded")
	return sub, nil
}
