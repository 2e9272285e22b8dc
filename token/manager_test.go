package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "eduauth-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 30 * 24 * time.Hour,
		ResetTTL:   30 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueAndParseAccess(t *testing.T) {
	m := testManager(t)

	signed, issued, err := m.IssueAccess("user-1", "student")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if !strings.HasPrefix(issued.ID, "at-") {
		t.Fatalf("access jti missing prefix: %s", issued.ID)
	}

	claims, err := m.Parse(signed, KindAccess)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != "student" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID != issued.ID {
		t.Fatalf("jti mismatch: %s vs %s", claims.ID, issued.ID)
	}
}

func TestRefreshAndAccessNamespacesAreDistinct(t *testing.T) {
	m := testManager(t)

	access, accessClaims, err := m.IssueAccess("user-1", "student")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	refresh, refreshClaims, err := m.IssueRefresh("user-1", "student")
	if err != nil {
		t.Fatalf("IssueRefresh error: %v", err)
	}

	if strings.HasPrefix(refreshClaims.ID, "at-") || strings.HasPrefix(accessClaims.ID, "rt-") {
		t.Fatalf("jti namespaces overlap: %s / %s", accessClaims.ID, refreshClaims.ID)
	}

	if _, err := m.Parse(access, KindRefresh); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for access-as-refresh, got %v", err)
	}
	if _, err := m.Parse(refresh, KindAccess); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for refresh-as-access, got %v", err)
	}
}

func TestResetTokenIsolation(t *testing.T) {
	m := testManager(t)

	reset, _, err := m.IssueReset("user-1")
	if err != nil {
		t.Fatalf("IssueReset error: %v", err)
	}

	if _, err := m.Parse(reset, KindAccess); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for reset-as-access, got %v", err)
	}
	if _, err := m.Parse(reset, KindRefresh); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind for reset-as-refresh, got %v", err)
	}
	if _, err := m.Parse(reset, KindReset); err != nil {
		t.Fatalf("Parse reset error: %v", err)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	m, err := NewManager(Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:  time.Nanosecond,
		RefreshTTL: time.Hour,
		ResetTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	signed, _, err := m.IssueAccess("user-1", "student")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := m.Parse(signed, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := testManager(t)

	signed, _, err := m.IssueAccess("user-1", "student")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}

	tampered := signed[:len(signed)-2] + "xx"
	if _, err := m.Parse(tampered, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for tampered token, got %v", err)
	}
}

func TestForeignSecretRejected(t *testing.T) {
	m := testManager(t)
	other, err := NewManager(Config{
		Secret:     []byte("ffffffffffffffffffffffffffffffff"),
		AccessTTL:  time.Hour,
		RefreshTTL: time.Hour,
		ResetTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	signed, _, err := other.IssueAccess("user-1", "student")
	if err != nil {
		t.Fatalf("IssueAccess error: %v", err)
	}
	if _, err := m.Parse(signed, KindAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign secret, got %v", err)
	}
}

func TestManagerConfigValidation(t *testing.T) {
	if _, err := NewManager(Config{Secret: []byte("short"), AccessTTL: time.Hour, RefreshTTL: time.Hour, ResetTTL: time.Hour}); err == nil {
		t.Fatal("expected short secret rejection")
	}
	if _, err := NewManager(Config{Secret: []byte("0123456789abcdef0123456789abcdef"), RefreshTTL: time.Hour, ResetTTL: time.Hour}); err == nil {
		t.Fatal("expected zero access TTL rejection")
	}
	if _, err := NewManager(Config{Secret: []byte("0123456789abcdef0123456789abcdef"), AccessTTL: time.Hour, RefreshTTL: time.Hour, ResetTTL: time.Hour, Leeway: 10 * time.Minute}); err == nil {
		t.Fatal("expected oversized leeway rejection")
	}
}
