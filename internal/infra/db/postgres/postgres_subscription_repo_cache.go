package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
	red "github.com/dheerurajpoot/quote-generator-sub001/internal/infra/redis"
)

var _ repository.SubscriptionRepository = (*subscriptionRepoCacheDecorator)(nil)

// noActive marks a cached "user has no active subscription" answer.
const noActive = "none"

// subscriptionRepoCacheDecorator caches FindActiveByUser for reads outside a
// transaction. Reads inside a transaction always hit the database so row
// locks are taken. Every write drops the owner's entry before it runs and
// again after the enclosing transaction commits.
type subscriptionRepoCacheDecorator struct {
	inner repository.SubscriptionRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewSubscriptionRepoCacheDecorator(inner repository.SubscriptionRepository, cache red.RedisClient, ttl time.Duration) repository.SubscriptionRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &subscriptionRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func activeKey(userID string) string { return fmt.Sprintf("entitlement:active:%s", userID) }

func (d *subscriptionRepoCacheDecorator) invalidate(ctx context.Context, userID string) {
	_ = d.cache.Del(ctx, activeKey(userID))
}

// invalidateOnCommit drops the entry now and again once the write is
// visible. A read outside the transaction may refill the key before commit.
func (d *subscriptionRepoCacheDecorator) invalidateOnCommit(ctx context.Context, userID string) {
	if !repository.OnCommit(ctx, func(ctx context.Context) { d.invalidate(ctx, userID) }) {
		d.invalidate(ctx, userID)
	}
}

func (d *subscriptionRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	d.invalidate(ctx, s.UserID)
	if err := d.inner.Create(ctx, tx, s); err != nil {
		return err
	}
	d.invalidateOnCommit(ctx, s.UserID)
	return nil
}

func (d *subscriptionRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	d.invalidate(ctx, s.UserID)
	if err := d.inner.Save(ctx, tx, s); err != nil {
		return err
	}
	d.invalidateOnCommit(ctx, s.UserID)
	return nil
}

func (d *subscriptionRepoCacheDecorator) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if tx != nil {
		return d.inner.FindActiveByUser(ctx, tx, userID)
	}
	key := activeKey(userID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		if val == noActive {
			metrics.IncCacheRequest("entitlement", "hit")
			return nil, domain.ErrNotFound
		}
		var s model.Subscription
		if json.Unmarshal([]byte(val), &s) == nil {
			metrics.IncCacheRequest("entitlement", "hit")
			return &s, nil
		}
	}

	metrics.IncCacheRequest("entitlement", "miss")
	s, err := d.inner.FindActiveByUser(ctx, tx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		_ = d.cache.Set(ctx, key, noActive, d.ttl)
		return nil, err
	case err != nil:
		return nil, err
	}
	if b, mErr := json.Marshal(s); mErr == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return s, nil
}

// Pass-through methods that don't need caching
func (d *subscriptionRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return d.inner.FindByID(ctx, tx, id)
}

func (d *subscriptionRepoCacheDecorator) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	return d.inner.FindByGatewayOrderID(ctx, tx, orderID)
}

func (d *subscriptionRepoCacheDecorator) FindByGatewaySubscriptionID(ctx context.Context, tx repository.Tx, gatewaySubID string) (*model.Subscription, error) {
	return d.inner.FindByGatewaySubscriptionID(ctx, tx, gatewaySubID)
}

func (d *subscriptionRepoCacheDecorator) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	return d.inner.FindPendingByUserAndPlan(ctx, tx, userID, planID)
}

func (d *subscriptionRepoCacheDecorator) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	return d.inner.ListByUser(ctx, tx, userID)
}

func (d *subscriptionRepoCacheDecorator) ListWithUsers(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus, offset, limit int) ([]*model.PendingPayment, error) {
	return d.inner.ListWithUsers(ctx, tx, status, offset, limit)
}

func (d *subscriptionRepoCacheDecorator) CountByStatus(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus) (int, error) {
	return d.inner.CountByStatus(ctx, tx, status)
}

func (d *subscriptionRepoCacheDecorator) CountAllByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	return d.inner.CountAllByStatus(ctx, tx)
}

func (d *subscriptionRepoCacheDecorator) ListExpiredActive(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	return d.inner.ListExpiredActive(ctx, tx, now, limit)
}
