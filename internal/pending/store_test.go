package pending

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewStore(rdb, "preg")
}

func testRegistration() *Registration {
	return &Registration{
		Email:     "a@x.com",
		Password:  "Aa1!aaaa",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+15551234567",
		Bio:       "first programmer",
		Role:      "student",
		OTPExpiry: time.Now().Add(15 * time.Minute).Unix(),
	}
}

func TestSaveGetDelete(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	rec := testRegistration()
	if err := store.Save(ctx, "tok-1", rec, 15*time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	loaded, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if *loaded != *rec {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, rec)
	}

	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := store.Get(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestPhoneDedup(t *testing.T) {
	_, store := newTestStore(t)
	ctx := context.Background()

	first := testRegistration()
	if err := store.Save(ctx, "tok-1", first, 15*time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	second := testRegistration()
	second.Email = "b@x.com"
	if err := store.Save(ctx, "tok-2", second, 15*time.Minute); !errors.Is(err, ErrPhoneInFlight) {
		t.Fatalf("expected ErrPhoneInFlight for duplicate phone, got %v", err)
	}

	// Releasing the first registration frees the phone.
	if err := store.Delete(ctx, "tok-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := store.Save(ctx, "tok-2", second, 15*time.Minute); err != nil {
		t.Fatalf("Save after release error: %v", err)
	}
}

func TestRecordExpires(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "tok-1", testRegistration(), time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, "tok-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL, got %v", err)
	}

	// The phone claim shares the record's TTL, so a fresh submission works.
	if err := store.Save(ctx, "tok-2", testRegistration(), time.Minute); err != nil {
		t.Fatalf("Save after expiry error: %v", err)
	}
}

func TestUpdateRefreshesRecordAndTTL(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()

	rec := testRegistration()
	if err := store.Save(ctx, "tok-1", rec, 5*time.Minute); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	mr.FastForward(4 * time.Minute)

	rec.OTPExpiry = time.Now().Add(10 * time.Minute).Unix()
	if err := store.Update(ctx, "tok-1", rec, 15*time.Minute); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	// The old TTL would have expired here; the update restarted it.
	mr.FastForward(2 * time.Minute)
	loaded, err := store.Get(ctx, "tok-1")
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if loaded.OTPExpiry != rec.OTPExpiry {
		t.Fatal("update did not persist the new record")
	}
}

func TestUpdateMissingToken(t *testing.T) {
	_, store := newTestStore(t)

	err := store.Update(context.Background(), "absent", testRegistration(), time.Minute)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMissingIsNoOp(t *testing.T) {
	_, store := newTestStore(t)
	if err := store.Delete(context.Background(), "absent"); err != nil {
		t.Fatalf("Delete of missing token should be a no-op, got %v", err)
	}
}

func TestBackendUnavailable(t *testing.T) {
	mr, store := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	if err := store.Save(ctx, "tok-1", testRegistration(), time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := store.Get(ctx, "tok-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCodecRejectsCorruptData(t *testing.T) {
	if _, err := decodeRegistration([]byte{}); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := decodeRegistration([]byte{99, 0, 0}); err == nil {
		t.Fatal("expected error for unknown version")
	}

	valid, err := encodeRegistration(testRegistration())
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	if _, err := decodeRegistration(valid[:len(valid)-3]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
