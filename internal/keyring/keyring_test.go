package keyring

import (
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestAccountSeparatesFiles(t *testing.T) {
	a := Account("/tmp/one/vault.db", "default")
	b := Account("/tmp/two/vault.db", "default")
	if a == b {
		t.Error("Different database files share a keyring account")
	}
	if !strings.HasSuffix(a, ":default") {
		t.Errorf("Account should end with the profile id, got %q", a)
	}
	if Account("/tmp/one/vault.db", "default") != a {
		t.Error("Account is not stable")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	keyring.MockInit()

	account := Account("/tmp/vault.db", "work")
	if HasPassword(account) {
		t.Fatal("Fresh keyring already has a password")
	}

	if err := SavePassword(account, "work-password"); err != nil {
		t.Fatalf("Failed to save password: %v", err)
	}
	got, err := GetPassword(account)
	if err != nil {
		t.Fatalf("Failed to get password: %v", err)
	}
	if got != "work-password" {
		t.Errorf("Password mismatch: got %q", got)
	}

	if err := DeletePassword(account); err != nil {
		t.Fatalf("Failed to delete password: %v", err)
	}
	if err := DeletePassword(account); err != nil {
		t.Errorf("Deleting a missing entry should succeed, got %v", err)
	}
	if _, err := GetPassword(account); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
