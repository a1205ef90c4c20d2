package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/keyring"
	"github.com/illarion/vaultkeep/internal/prompt"
)

// KeyringSave verifies the current profile's password and stores it in
// the OS keyring
func KeyringSave(ctx context.Context, cfg config.Config) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	profileID := s.Vault.CurrentProfile()

	password := prompt.GetPasswordFromEnv()
	if password == nil {
		var err error
		password, err = prompt.ReadPassword("Enter password: ")
		if err != nil {
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(password)

	if _, err := s.Vault.Unlock(ctx, string(password), profileID); err != nil {
		HandleError(err)
	}

	if err := keyring.SavePassword(s.Account(profileID), string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("Password of %s saved to keyring\n", profileID)
}

// KeyringDelete removes the current profile's password from the keyring
func KeyringDelete(ctx context.Context, cfg config.Config) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	account := s.Account(s.Vault.CurrentProfile())
	if !keyring.HasPassword(account) {
		fmt.Println("No password stored in keyring")
		return
	}
	if err := keyring.DeletePassword(account); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove from keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus reports whether the current profile's password is stored
func KeyringStatus(ctx context.Context, cfg config.Config) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	if keyring.HasPassword(s.Account(s.Vault.CurrentProfile())) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
