package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ainotes/internal/model"
)

// 以下の関数はMemoryStoreとPostgreSQL実装の両方で同じ振る舞いを検証する。

func newTestIdentity(username string, customerID *string) *model.Identity {
	return &model.Identity{
		ID:                uuid.NewString(),
		Email:             username + "@example.com",
		Username:          username,
		PasswordHash:      "$2a$10$abcdefghijklmnopqrstuv",
		Roles:             model.NewRoleSet(model.RoleUser),
		BillingCustomerID: customerID,
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

func strPtr(s string) *string { return &s }

func runUserRepositoryContract(t *testing.T, repo UserRepository) {
	ctx := context.Background()

	t.Run("存在しないユーザーはnilを返す", func(t *testing.T) {
		got, err := repo.FindByUsername(ctx, "nobody")
		if err != nil {
			t.Fatalf("FindByUsername returned error: %v", err)
		}
		if got != nil {
			t.Errorf("FindByUsername = %+v, want nil", got)
		}
	})

	t.Run("作成したユーザーを取得できる", func(t *testing.T) {
		in := newTestIdentity("alice", strPtr("cus_alice"))
		in.Roles = model.NewRoleSet(model.RoleUser, model.RoleAdmin)
		if err := repo.Insert(ctx, in); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}

		got, err := repo.FindByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("FindByUsername returned error: %v", err)
		}
		if got == nil {
			t.Fatal("expected identity, got nil")
		}
		if got.Email != in.Email {
			t.Errorf("Email = %q, want %q", got.Email, in.Email)
		}
		if got.PasswordHash != in.PasswordHash {
			t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, in.PasswordHash)
		}
		if !got.Roles.Has(model.RoleUser) || !got.Roles.Has(model.RoleAdmin) {
			t.Errorf("Roles = %v, want USER and ADMIN", got.Roles.Slice())
		}
		if !got.HasBillingCustomer() || *got.BillingCustomerID != "cus_alice" {
			t.Errorf("BillingCustomerID = %v, want cus_alice", got.BillingCustomerID)
		}
		if got.TokenEpoch != 0 {
			t.Errorf("TokenEpoch = %d, want 0", got.TokenEpoch)
		}
	})

	t.Run("決済顧客IDなしで作成できる", func(t *testing.T) {
		if err := repo.Insert(ctx, newTestIdentity("nocustomer", nil)); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
		got, err := repo.FindByUsername(ctx, "nocustomer")
		if err != nil {
			t.Fatalf("FindByUsername returned error: %v", err)
		}
		if got.HasBillingCustomer() {
			t.Errorf("HasBillingCustomer = true, want false")
		}
	})

	t.Run("ユーザー名の重複はErrUsernameTaken", func(t *testing.T) {
		err := repo.Insert(ctx, newTestIdentity("alice", nil))
		if !errors.Is(err, model.ErrUsernameTaken) {
			t.Errorf("Insert error = %v, want ErrUsernameTaken", err)
		}
	})

	t.Run("パスワード更新でエポックが進む", func(t *testing.T) {
		epoch, err := repo.UpdatePasswordHash(ctx, "alice", "new-hash")
		if err != nil {
			t.Fatalf("UpdatePasswordHash returned error: %v", err)
		}
		if epoch != 1 {
			t.Errorf("epoch = %d, want 1", epoch)
		}
		epoch, err = repo.UpdatePasswordHash(ctx, "alice", "newer-hash")
		if err != nil {
			t.Fatalf("UpdatePasswordHash returned error: %v", err)
		}
		if epoch != 2 {
			t.Errorf("epoch = %d, want 2", epoch)
		}

		got, err := repo.FindByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("FindByUsername returned error: %v", err)
		}
		if got.PasswordHash != "newer-hash" {
			t.Errorf("PasswordHash = %q, want %q", got.PasswordHash, "newer-hash")
		}
		if got.TokenEpoch != 2 {
			t.Errorf("TokenEpoch = %d, want 2", got.TokenEpoch)
		}
	})

	t.Run("存在しないユーザーのパスワード更新はErrInvalidAccount", func(t *testing.T) {
		_, err := repo.UpdatePasswordHash(ctx, "ghost", "hash")
		if !errors.Is(err, model.ErrInvalidAccount) {
			t.Errorf("UpdatePasswordHash error = %v, want ErrInvalidAccount", err)
		}
	})

	t.Run("削除後は取得できず二度目の削除はErrInvalidAccount", func(t *testing.T) {
		if err := repo.Delete(ctx, "nocustomer"); err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}
		got, err := repo.FindByUsername(ctx, "nocustomer")
		if err != nil {
			t.Fatalf("FindByUsername returned error: %v", err)
		}
		if got != nil {
			t.Errorf("FindByUsername after delete = %+v, want nil", got)
		}
		if err := repo.Delete(ctx, "nocustomer"); !errors.Is(err, model.ErrInvalidAccount) {
			t.Errorf("second Delete error = %v, want ErrInvalidAccount", err)
		}
	})
}

// runSubscriptionRepositoryContract は事前に "subscriber"（顧客ID cus_sub）が
// 作成済みであることを前提とする。
func runSubscriptionRepositoryContract(t *testing.T, repo SubscriptionRepository) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first := &model.SubscriptionRecord{
		CustomerID:         "cus_sub",
		SubscriptionID:     "sub_1",
		Status:             model.SubscriptionStatusActive,
		StartDate:          base,
		Created:            base,
		CurrentPeriodStart: base,
		CurrentPeriodEnd:   base.AddDate(0, 1, 0),
		PriceID:            "price_basic",
	}

	t.Run("作成したサブスクリプションを一覧できる", func(t *testing.T) {
		if err := repo.InsertSubscription(ctx, first); err != nil {
			t.Fatalf("InsertSubscription returned error: %v", err)
		}
		second := *first
		second.SubscriptionID = "sub_2"
		second.Created = base.Add(time.Hour)
		if err := repo.InsertSubscription(ctx, &second); err != nil {
			t.Fatalf("InsertSubscription returned error: %v", err)
		}

		got, err := repo.FindSubscriptionsByUsername(ctx, "subscriber")
		if err != nil {
			t.Fatalf("FindSubscriptionsByUsername returned error: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].SubscriptionID != "sub_1" || got[1].SubscriptionID != "sub_2" {
			t.Errorf("order = [%s %s], want [sub_1 sub_2]", got[0].SubscriptionID, got[1].SubscriptionID)
		}
		if !got[0].CurrentPeriodEnd.Equal(first.CurrentPeriodEnd) {
			t.Errorf("CurrentPeriodEnd = %v, want %v", got[0].CurrentPeriodEnd, first.CurrentPeriodEnd)
		}
		if got[0].PriceID != "price_basic" {
			t.Errorf("PriceID = %q, want %q", got[0].PriceID, "price_basic")
		}
	})

	t.Run("同じ組の作成はErrDuplicateSubscription", func(t *testing.T) {
		err := repo.InsertSubscription(ctx, first)
		if !errors.Is(err, model.ErrDuplicateSubscription) {
			t.Errorf("InsertSubscription error = %v, want ErrDuplicateSubscription", err)
		}
	})

	t.Run("状態を更新できる", func(t *testing.T) {
		if err := repo.UpdateSubscriptionStatus(ctx, "cus_sub", "sub_1", model.SubscriptionStatusPastDue); err != nil {
			t.Fatalf("UpdateSubscriptionStatus returned error: %v", err)
		}
		// 同じ値での再適用も成功する
		if err := repo.UpdateSubscriptionStatus(ctx, "cus_sub", "sub_1", model.SubscriptionStatusPastDue); err != nil {
			t.Fatalf("repeated UpdateSubscriptionStatus returned error: %v", err)
		}
		got, err := repo.FindSubscriptionsByUsername(ctx, "subscriber")
		if err != nil {
			t.Fatalf("FindSubscriptionsByUsername returned error: %v", err)
		}
		if got[0].Status != model.SubscriptionStatusPastDue {
			t.Errorf("Status = %q, want %q", got[0].Status, model.SubscriptionStatusPastDue)
		}
	})

	t.Run("一致しない組の更新はErrRecordNotFound", func(t *testing.T) {
		err := repo.UpdateSubscriptionStatus(ctx, "cus_other", "sub_1", model.SubscriptionStatusCanceled)
		if !errors.Is(err, model.ErrRecordNotFound) {
			t.Errorf("UpdateSubscriptionStatus error = %v, want ErrRecordNotFound", err)
		}
	})

	t.Run("顧客IDのないユーザーは空", func(t *testing.T) {
		got, err := repo.FindSubscriptionsByUsername(ctx, "nobody")
		if err != nil {
			t.Fatalf("FindSubscriptionsByUsername returned error: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})
}

func runWebhookEventRepositoryContract(t *testing.T, repo WebhookEventRepository) {
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Record(ctx, &model.WebhookEventLog{
		EventID: "evt_old", EventType: "customer.subscription.created",
		Outcome: model.WebhookOutcomeApplied, ReceivedAt: now.Add(-48 * time.Hour),
	}); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if err := repo.Record(ctx, &model.WebhookEventLog{
		EventID: "evt_new", EventType: "customer.subscription.updated",
		Outcome: model.WebhookOutcomeFailed, Error: "subscription record not found", ReceivedAt: now,
	}); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	// 再配信は上書きされる
	if err := repo.Record(ctx, &model.WebhookEventLog{
		EventID: "evt_new", EventType: "customer.subscription.updated",
		Outcome: model.WebhookOutcomeApplied, ReceivedAt: now,
	}); err != nil {
		t.Fatalf("Record redelivery returned error: %v", err)
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan returned error: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	deleted, err = repo.DeleteOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("second DeleteOlderThan returned error: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second deleted = %d, want 0", deleted)
	}
}
