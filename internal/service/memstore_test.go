package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"kotoba_backend/internal/model"
	"kotoba_backend/internal/repository"
)

// In-memory store fakes. The mutex-guarded check-and-mutate in
// deductCredits mirrors the conditional UPDATE the SQL store runs, so
// the concurrency tests exercise the same contract.

type memSubscriptionStore struct {
	mu     sync.Mutex
	subs   map[uint]*model.Subscription // keyed by user id
	ledger []model.CreditTransaction
	nextID uint
}

func newMemSubscriptionStore() *memSubscriptionStore {
	return &memSubscriptionStore{subs: make(map[uint]*model.Subscription)}
}

func (s *memSubscriptionStore) GetByUserID(_ context.Context, userID uint) (*model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

func (s *memSubscriptionStore) Create(_ context.Context, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.UserID]; exists {
		return repository.ErrDuplicate
	}
	s.nextID++
	sub.ID = s.nextID
	sub.CreatedAt = time.Now()
	copied := *sub
	s.subs[sub.UserID] = &copied
	return nil
}

func (s *memSubscriptionStore) Save(_ context.Context, sub *model.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.subs[sub.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	// Balance is owned by the atomic credit operations.
	sub.CreditsAvailable = stored.CreditsAvailable
	copied := *sub
	s.subs[sub.UserID] = &copied
	return nil
}

func (s *memSubscriptionStore) DeductCredits(_ context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if sub.CreditsAvailable < amount {
		return 0, repository.ErrInsufficientCredits
	}
	sub.CreditsAvailable -= amount
	s.appendLedger(userID, -amount, usage, sub.CreditsAvailable, description)
	return sub.CreditsAvailable, nil
}

func (s *memSubscriptionStore) GrantCredits(_ context.Context, userID uint, amount int, usage model.UsageType, description string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	sub.CreditsAvailable += amount
	s.appendLedger(userID, amount, usage, sub.CreditsAvailable, description)
	return sub.CreditsAvailable, nil
}

func (s *memSubscriptionStore) appendLedger(userID uint, delta int, usage model.UsageType, balance int, description string) {
	s.ledger = append(s.ledger, model.CreditTransaction{
		Model:        gorm.Model{ID: uint(len(s.ledger) + 1), CreatedAt: time.Now()},
		UserID:       userID,
		Delta:        delta,
		UsageType:    usage,
		BalanceAfter: balance,
		Description:  description,
	})
}

func (s *memSubscriptionStore) ListDueTierChanges(_ context.Context, now time.Time) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Subscription
	for _, sub := range s.subs {
		if sub.ScheduledTier != nil && sub.ScheduledTierDate != nil && !sub.ScheduledTierDate.After(now) {
			due = append(due, *sub)
		}
	}
	return due, nil
}

func (s *memSubscriptionStore) ApplyScheduledTierChange(_ context.Context, subID uint, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.ID != subID {
			continue
		}
		if sub.ScheduledTier == nil || sub.ScheduledTierDate == nil || sub.ScheduledTierDate.After(now) {
			return false, nil
		}
		sub.Tier = *sub.ScheduledTier
		sub.ScheduledTier = nil
		sub.ScheduledTierDate = nil
		return true, nil
	}
	return false, nil
}

func (s *memSubscriptionStore) ListExpiredTrials(_ context.Context, now time.Time) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Subscription
	for _, sub := range s.subs {
		if sub.Status == model.StatusTrialing && sub.TrialEndDate != nil && !sub.TrialEndDate.After(now) {
			due = append(due, *sub)
		}
	}
	return due, nil
}

func (s *memSubscriptionStore) ExpireTrial(_ context.Context, subID uint, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.ID != subID {
			continue
		}
		if sub.Status != model.StatusTrialing || sub.TrialEndDate == nil || sub.TrialEndDate.After(now) {
			return false, nil
		}
		sub.Status = model.StatusActive
		sub.Tier = model.TierFree
		return true, nil
	}
	return false, nil
}

func (s *memSubscriptionStore) ListTrialsEndingWithin(_ context.Context, now time.Time, days int) ([]model.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until := now.AddDate(0, 0, days)
	var result []model.Subscription
	for _, sub := range s.subs {
		if sub.Status == model.StatusTrialing && sub.TrialEndDate != nil &&
			sub.TrialEndDate.After(now) && sub.TrialEndDate.Before(until) {
			result = append(result, *sub)
		}
	}
	return result, nil
}

// memSubscriptionStore also serves as the ledger read side.

func (s *memSubscriptionStore) List(_ context.Context, userID uint, filter repository.HistoryFilter) ([]model.CreditTransaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []model.CreditTransaction
	for _, tx := range s.ledger {
		if tx.UserID != userID {
			continue
		}
		if filter.Type != "" && tx.UsageType != filter.Type {
			continue
		}
		if filter.Start != nil && tx.CreatedAt.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && tx.CreatedAt.After(*filter.End) {
			continue
		}
		matched = append(matched, tx)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *memSubscriptionStore) SumDeltas(_ context.Context, userID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := 0
	for _, tx := range s.ledger {
		if tx.UserID == userID {
			sum += tx.Delta
		}
	}
	return sum, nil
}

func (s *memSubscriptionStore) UsageTotals(_ context.Context, userID uint, since time.Time) (map[model.UsageType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[model.UsageType]int)
	for _, tx := range s.ledger {
		if tx.UserID == userID && tx.Delta < 0 && !tx.CreatedAt.Before(since) {
			totals[tx.UsageType] += -tx.Delta
		}
	}
	return totals, nil
}

type memVoucherStore struct {
	mu          sync.Mutex
	vouchers    map[string]*model.Voucher
	redemptions []*model.VoucherRedemption
	nextID      uint
}

func newMemVoucherStore() *memVoucherStore {
	return &memVoucherStore{vouchers: make(map[string]*model.Voucher)}
}

func (s *memVoucherStore) add(voucher *model.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	voucher.ID = s.nextID
	s.vouchers[strings.ToUpper(voucher.Code)] = voucher
}

func (s *memVoucherStore) GetByCode(_ context.Context, code string) (*model.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	voucher, ok := s.vouchers[strings.ToUpper(code)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *voucher
	return &copied, nil
}

func (s *memVoucherStore) CountRedemptions(_ context.Context, voucherID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, r := range s.redemptions {
		if r.VoucherID == voucherID && r.Status != model.RedemptionCancelled {
			count++
		}
	}
	return count, nil
}

func (s *memVoucherStore) CountUserRedemptions(_ context.Context, voucherID, userID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, r := range s.redemptions {
		if r.VoucherID == voucherID && r.UserID == userID && r.Status != model.RedemptionCancelled {
			count++
		}
	}
	return count, nil
}

func (s *memVoucherStore) CreateRedemption(_ context.Context, redemption *model.VoucherRedemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Same shape as the partial unique index: cancelled rows don't block.
	for _, r := range s.redemptions {
		if r.VoucherID == redemption.VoucherID && r.UserID == redemption.UserID && r.Status != model.RedemptionCancelled {
			return repository.ErrDuplicate
		}
	}

	s.nextID++
	redemption.ID = s.nextID
	redemption.CreatedAt = time.Now()
	s.redemptions = append(s.redemptions, redemption)
	return nil
}

func (s *memVoucherStore) GetRedemption(_ context.Context, id uint) (*model.VoucherRedemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.redemptions {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memVoucherStore) AttachPayment(_ context.Context, redemptionID, paymentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.redemptions {
		if r.ID == redemptionID {
			id := paymentID
			r.PendingPaymentID = &id
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memVoucherStore) UpdateRedemptionStatus(_ context.Context, id uint, status model.RedemptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.redemptions {
		if r.ID == id {
			r.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memVoucherStore) ListUserRedemptions(_ context.Context, userID uint) ([]model.VoucherRedemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.VoucherRedemption
	for _, r := range s.redemptions {
		if r.UserID == userID {
			copied := *r
			if voucher := s.voucherByID(r.VoucherID); voucher != nil {
				copied.Voucher = *voucher
			}
			result = append(result, copied)
		}
	}
	return result, nil
}

func (s *memVoucherStore) voucherByID(id uint) *model.Voucher {
	for _, v := range s.vouchers {
		if v.ID == id {
			return v
		}
	}
	return nil
}

type memPaymentStore struct {
	mu       sync.Mutex
	payments map[uint]*model.PendingPayment
	nextID   uint
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{payments: make(map[uint]*model.PendingPayment)}
}

func (s *memPaymentStore) Create(_ context.Context, payment *model.PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.StripeSessionID == payment.StripeSessionID {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	payment.ID = s.nextID
	payment.CreatedAt = time.Now()
	copied := *payment
	s.payments[payment.ID] = &copied
	return nil
}

func (s *memPaymentStore) GetBySessionID(_ context.Context, sessionID string) (*model.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.StripeSessionID == sessionID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memPaymentStore) TransitionStatus(_ context.Context, id uint, from, to model.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok || payment.Status != from {
		return false, nil
	}
	payment.Status = to
	return true, nil
}

type memUserStore struct {
	mu     sync.Mutex
	users  map[uint]*model.User
	nextID uint
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uint]*model.User)}
}

func (s *memUserStore) add(user *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	s.users[user.ID] = user
	return user
}

func (s *memUserStore) GetByID(_ context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memUserStore) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	s.nextID++
	user.ID = s.nextID
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *memUserStore) Save(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}
