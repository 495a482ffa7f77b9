package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/ainotes/internal/model"
)

// MemoryStore はプロセス内メモリを使用したリポジトリ実装。
// 開発用の STORE_DRIVER=memory とテストで使用する。
// 返却値は常にコピーであり、呼び出し側の変更はストアに影響しない。
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]*model.Identity
	subscriptions map[subscriptionKey]*model.SubscriptionRecord
	events        map[string]*model.WebhookEventLog
}

type subscriptionKey struct {
	customerID     string
	subscriptionID string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.Identity),
		subscriptions: make(map[subscriptionKey]*model.SubscriptionRecord),
		events:        make(map[string]*model.WebhookEventLog),
	}
}

// FindByUsername はユーザー名でアカウントを取得する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*model.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	return copyIdentity(u), nil
}

// Insert はアカウントを作成する。
func (s *MemoryStore) Insert(_ context.Context, identity *model.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[identity.Username]; ok {
		return model.ErrUsernameTaken
	}
	stored := copyIdentity(identity)
	if !stored.HasBillingCustomer() {
		stored.BillingCustomerID = nil
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.users[identity.Username] = stored
	return nil
}

// UpdatePasswordHash はパスワードハッシュを更新しエポックを進める。
func (s *MemoryStore) UpdatePasswordHash(_ context.Context, username, hash string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return 0, model.ErrInvalidAccount
	}
	u.PasswordHash = hash
	u.TokenEpoch++
	return u.TokenEpoch, nil
}

// Delete はアカウントを削除する。
func (s *MemoryStore) Delete(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return model.ErrInvalidAccount
	}
	delete(s.users, username)
	return nil
}

// InsertSubscription はサブスクリプションを作成する。
func (s *MemoryStore) InsertSubscription(_ context.Context, rec *model.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := subscriptionKey{customerID: rec.CustomerID, subscriptionID: rec.SubscriptionID}
	if _, ok := s.subscriptions[key]; ok {
		return model.ErrDuplicateSubscription
	}
	cp := *rec
	s.subscriptions[key] = &cp
	return nil
}

// UpdateSubscriptionStatus は一致する行の状態を更新する。
func (s *MemoryStore) UpdateSubscriptionStatus(_ context.Context, customerID, subscriptionID string, status model.SubscriptionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.subscriptions[subscriptionKey{customerID: customerID, subscriptionID: subscriptionID}]
	if !ok {
		return model.ErrRecordNotFound
	}
	rec.Status = status
	return nil
}

// FindSubscriptionsByUsername はユーザーに紐づくサブスクリプションを作成日時順に返す。
func (s *MemoryStore) FindSubscriptionsByUsername(_ context.Context, username string) ([]*model.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok || !u.HasBillingCustomer() {
		return nil, nil
	}

	var records []*model.SubscriptionRecord
	for key, rec := range s.subscriptions {
		if key.customerID != *u.BillingCustomerID {
			continue
		}
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Created.Equal(records[j].Created) {
			return records[i].Created.Before(records[j].Created)
		}
		return records[i].SubscriptionID < records[j].SubscriptionID
	})
	return records, nil
}

// Record はWebhookイベントの処理結果を記録する。
func (s *MemoryStore) Record(_ context.Context, event *model.WebhookEventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *event
	if cp.ReceivedAt.IsZero() {
		cp.ReceivedAt = time.Now()
	}
	cp.DeliveryCount = 1
	if prev, ok := s.events[event.EventID]; ok {
		cp.DeliveryCount = prev.DeliveryCount + 1
	}
	s.events[event.EventID] = &cp
	return nil
}

// DeleteOlderThan はcutoffより前に受信した記録を削除する。
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, ev := range s.events {
		if ev.ReceivedAt.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// WebhookEvent はイベントIDの処理記録を返す。見つからない場合はnilを返す。
func (s *MemoryStore) WebhookEvent(eventID string) *model.WebhookEventLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil
	}
	cp := *ev
	return &cp
}

func copyIdentity(src *model.Identity) *model.Identity {
	cp := *src
	cp.Roles = model.NewRoleSet(src.Roles.Slice()...)
	if src.BillingCustomerID != nil {
		id := *src.BillingCustomerID
		cp.BillingCustomerID = &id
	}
	return &cp
}

// compile-time interface check
var (
	_ UserRepository         = (*MemoryStore)(nil)
	_ SubscriptionRepository = (*MemoryStore)(nil)
	_ WebhookEventRepository = (*MemoryStore)(nil)
)
