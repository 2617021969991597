//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
)

// -----------------------------
// In-memory store shared by the repo mocks
// -----------------------------

// memStore mimics the Postgres schema: unique indexes are enforced and a
// failed unit of work is rolled back by MockTxManager.
type memStore struct {
	mu   sync.Mutex
	subs map[string]*model.Subscription
	txns map[string]*model.Transaction
	// journal records subscription reads and user locks in call order.
	journal []string
}

func (s *memStore) note(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, entry)
}

func (s *memStore) takeJournal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.journal
	s.journal = nil
	return out
}

func newMemStore() *memStore {
	return &memStore{subs: map[string]*model.Subscription{}, txns: map[string]*model.Transaction{}}
}

func (s *memStore) snapshot() (map[string]model.Subscription, map[string]model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make(map[string]model.Subscription, len(s.subs))
	for k, v := range s.subs {
		subs[k] = *v
	}
	txns := make(map[string]model.Transaction, len(s.txns))
	for k, v := range s.txns {
		txns[k] = *v
	}
	return subs, txns
}

func (s *memStore) restore(subs map[string]model.Subscription, txns map[string]model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = map[string]*model.Subscription{}
	for k, v := range subs {
		cp := v
		s.subs[k] = &cp
	}
	s.txns = map[string]*model.Transaction{}
	for k, v := range txns {
		cp := v
		s.txns[k] = &cp
	}
}

func (s *memStore) byStatus(userID string, st model.SubscriptionStatus) []*model.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Subscription
	for _, v := range s.subs {
		if v.UserID == userID && v.Status == st {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out
}

// -----------------------------
// Tx manager & user locker
// -----------------------------

type MockTxManager struct {
	store      *memStore
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
	Commits    int
	Rollbacks  int
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(store *memStore) *MockTxManager {
	return &MockTxManager{store: store}
}

// WithTx runs fn with NoTX and restores the store when fn fails.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	subs, txns := m.store.snapshot()
	if err := fn(ctx, repository.NoTX); err != nil {
		m.store.restore(subs, txns)
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

type MockUserLocker struct {
	mu     sync.Mutex
	store  *memStore
	Locked []string
	Err    error
}

func (l *MockUserLocker) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Locked = append(l.Locked, userID)
	if l.store != nil {
		l.store.note("lock")
	}
	return l.Err
}

// -----------------------------
// Subscription repo
// -----------------------------

type MockSubscriptionRepo struct {
	store *memStore

	SaveFunc             func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
	FindActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
	ListWithUsersFunc    func(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus, offset, limit int) ([]*model.PendingPayment, error)
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo(store *memStore) *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: store}
}

func (r *MockSubscriptionRepo) checkUnique(s *model.Subscription) error {
	for id, o := range r.store.subs {
		if id == s.ID || o.UserID != s.UserID {
			continue
		}
		if s.Status == model.SubscriptionStatusActive && o.Status == model.SubscriptionStatusActive {
			return domain.ErrInvalidState
		}
		if s.Status == model.SubscriptionStatusPending && o.Status == model.SubscriptionStatusPending && o.PlanID == s.PlanID {
			return domain.ErrDuplicatePendingRequest
		}
	}
	if s.GatewayOrderID != "" {
		for id, o := range r.store.subs {
			if id != s.ID && o.GatewayOrderID == s.GatewayOrderID {
				return domain.ErrDuplicateTransaction
			}
		}
	}
	return nil
}

func (r *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, ok := r.store.subs[s.ID]; ok {
		return domain.ErrOperationFailed
	}
	if err := r.checkUnique(s); err != nil {
		return err
	}
	s.Version = 1
	cp := *s
	r.store.subs[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, s)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cur, ok := r.store.subs[s.ID]
	if !ok || cur.Version != s.Version {
		return domain.ErrConcurrentUpdate
	}
	if err := r.checkUnique(s); err != nil {
		return err
	}
	s.Version++
	cp := *s
	r.store.subs[s.ID] = &cp
	return nil
}

func (r *MockSubscriptionRepo) findOne(match func(*model.Subscription) bool) (*model.Subscription, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.journal = append(r.store.journal, "read")
	for _, s := range r.store.subs {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.findOne(func(s *model.Subscription) bool { return s.ID == id })
}

func (r *MockSubscriptionRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	return r.findOne(func(s *model.Subscription) bool { return orderID != "" && s.GatewayOrderID == orderID })
}

func (r *MockSubscriptionRepo) FindByGatewaySubscriptionID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.findOne(func(s *model.Subscription) bool { return id != "" && s.GatewaySubscriptionID == id })
}

func (r *MockSubscriptionRepo) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	return r.findOne(func(s *model.Subscription) bool {
		return s.UserID == userID && s.PlanID == planID && s.Status == model.SubscriptionStatusPending
	})
}

func (r *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if r.FindActiveByUserFunc != nil {
		return r.FindActiveByUserFunc(ctx, tx, userID)
	}
	return r.findOne(func(s *model.Subscription) bool {
		return s.UserID == userID && s.Status == model.SubscriptionStatusActive
	})
}

func (r *MockSubscriptionRepo) sorted(match func(*model.Subscription) bool) []*model.Subscription {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.store.subs {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *MockSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	return r.sorted(func(s *model.Subscription) bool { return s.UserID == userID }), nil
}

func (r *MockSubscriptionRepo) ListWithUsers(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus, offset, limit int) ([]*model.PendingPayment, error) {
	if r.ListWithUsersFunc != nil {
		return r.ListWithUsersFunc(ctx, tx, status, offset, limit)
	}
	all := r.sorted(func(s *model.Subscription) bool { return s.Status == status })
	var out []*model.PendingPayment
	for i := offset; i < len(all) && i < offset+limit; i++ {
		out = append(out, &model.PendingPayment{Subscription: all[i], UserName: "user " + all[i].UserID})
	}
	return out, nil
}

func (r *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus) (int, error) {
	return len(r.sorted(func(s *model.Subscription) bool { return s.Status == status })), nil
}

func (r *MockSubscriptionRepo) CountAllByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	out := map[model.SubscriptionStatus]int{}
	for _, s := range r.sorted(func(*model.Subscription) bool { return true }) {
		out[s.Status]++
	}
	return out, nil
}

func (r *MockSubscriptionRepo) ListExpiredActive(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	all := r.sorted(func(s *model.Subscription) bool {
		return s.Status == model.SubscriptionStatusActive && s.CurrentPeriodEnd.Before(now)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// -----------------------------
// Transaction ledger
// -----------------------------

type MockTransactionRepo struct {
	store *memStore

	SaveFunc func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo(store *memStore) *MockTransactionRepo {
	return &MockTransactionRepo{store: store}
}

func (r *MockTransactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, o := range r.store.txns {
		if o.TransactionID == t.TransactionID {
			return domain.ErrDuplicateTransaction
		}
	}
	cp := *t
	r.store.txns[t.ID] = &cp
	return nil
}

func (r *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, t)
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cur, ok := r.store.txns[t.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != model.TransactionStatusPending && cur.Status != t.Status {
		return domain.ErrConcurrentUpdate
	}
	cp := *t
	r.store.txns[t.ID] = &cp
	return nil
}

func (r *MockTransactionRepo) findOne(match func(*model.Transaction) bool) (*model.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, t := range r.store.txns {
		if match(t) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return r.findOne(func(t *model.Transaction) bool { return t.ID == id })
}

func (r *MockTransactionRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, externalID string) (*model.Transaction, error) {
	return r.findOne(func(t *model.Transaction) bool { return t.TransactionID == externalID })
}

func (r *MockTransactionRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subID string) (*model.Transaction, error) {
	return r.findOne(func(t *model.Transaction) bool { return t.SubscriptionID == subID })
}

func (r *MockTransactionRepo) SumSuccessfulSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sum int64
	for _, t := range r.store.txns {
		if t.Status == model.TransactionStatusSuccess && t.PaidAt != nil && !t.PaidAt.Before(since) {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r *MockTransactionRepo) all() []*model.Transaction {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*model.Transaction
	for _, t := range r.store.txns {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// -----------------------------
// Webhook audit
// -----------------------------

type MockWebhookEventRepo struct {
	mu      sync.Mutex
	Events  []*model.WebhookEvent
	SaveErr error
}

func (r *MockWebhookEventRepo) Save(ctx context.Context, tx repository.Tx, ev *model.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SaveErr != nil {
		return r.SaveErr
	}
	cp := *ev
	r.Events = append(r.Events, &cp)
	return nil
}

func (r *MockWebhookEventRepo) CountByKey(ctx context.Context, tx repository.Tx, provider, eventType, key string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.Events {
		if e.Provider == provider && e.EventType == eventType && e.EventKey == key {
			n++
		}
	}
	return n, nil
}

// -----------------------------
// Adapters
// -----------------------------

type MockPaymentGateway struct {
	mu                     sync.Mutex
	CreateOrderFunc        func(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error)
	CreateSubscriptionFunc func(ctx context.Context, planID string, total int, notes map[string]string) (*adapter.GatewaySubscription, error)
	Orders                 []int64
	SubscriptionCalls      int
}

func (m *MockPaymentGateway) Name() string  { return "mock" }
func (m *MockPaymentGateway) KeyID() string { return "rzp_test_key" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error) {
	m.mu.Lock()
	m.Orders = append(m.Orders, amount)
	n := len(m.Orders)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, amount, currency, receipt, notes)
	}
	return &adapter.GatewayOrder{ID: "order_" + string(rune('A'+n-1)), Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (m *MockPaymentGateway) CreateSubscription(ctx context.Context, planID string, total int, notes map[string]string) (*adapter.GatewaySubscription, error) {
	m.mu.Lock()
	m.SubscriptionCalls++
	m.mu.Unlock()
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, planID, total, notes)
	}
	return &adapter.GatewaySubscription{ID: "sub_gw_1", PlanID: planID, Status: "created"}, nil
}

type MockNotifier struct {
	mu       sync.Mutex
	Messages []string
	Err      error
}

func (n *MockNotifier) NotifyAdmins(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, text)
	return n.Err
}

type MockEvents struct {
	mu     sync.Mutex
	Events []adapter.LifecycleEvent
}

func (e *MockEvents) Publish(ctx context.Context, ev adapter.LifecycleEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, ev)
	return nil
}

func (e *MockEvents) Close() {}

func (e *MockEvents) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.Events))
	for _, ev := range e.Events {
		out = append(out, ev.Type)
	}
	return out
}

type MockLimiter struct {
	Allow bool
	Err   error
	Calls int
}

func (l *MockLimiter) AllowSubmission(ctx context.Context, userID string) (bool, error) {
	l.Calls++
	return l.Allow, l.Err
}

// MockLocker is an in-memory cross-instance lock.
type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrConcurrentUpdate
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
