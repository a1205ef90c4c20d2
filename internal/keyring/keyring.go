// Package keyring remembers master passwords in the OS keyring, one entry
// per profile and database file.
package keyring

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

const serviceName = "vaultkeep"

// ErrNotFound is returned when no password is stored for the entry
var ErrNotFound = keyring.ErrNotFound

// Account builds the keyring account for a profile of the database at
// dbPath, so two vault files with the same profile ids stay apart.
func Account(dbPath, profileID string) string {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:8]) + ":" + profileID
}

// SavePassword stores a password in the OS keyring
func SavePassword(account, password string) error {
	return keyring.Set(serviceName, account, password)
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(account string) (string, error) {
	return keyring.Get(serviceName, account)
}

// DeletePassword removes a password from the OS keyring. A missing entry
// is not an error.
func DeletePassword(account string) error {
	err := keyring.Delete(serviceName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(account string) bool {
	_, err := keyring.Get(serviceName, account)
	return err == nil
}
