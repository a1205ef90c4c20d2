package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/crypto"
)

// Unlock checks the password of a profile, makes it current and offers to
// remember the password in the keyring
func Unlock(ctx context.Context, cfg config.Config, profileID string) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	if profileID == "" {
		profileID = s.Vault.CurrentProfile()
	}

	account := s.Account(profileID)
	password, source, err := GetPasswordWithRetry("Enter password: ", account, func(pw []byte) error {
		_, err := s.Vault.Unlock(ctx, string(pw), profileID)
		return err
	})
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	fmt.Printf("Unlocked profile %s\n", profileID)

	// A sweep left unfinished by an earlier setup is completed here
	n, err := s.Vault.EncryptExisting(ctx, profileID)
	if err != nil {
		HandleError(err)
	}
	if n > 0 {
		fmt.Printf("Sealed %d plaintext records\n", n)
	}

	if source == SourcePrompt {
		OfferToSavePassword(account, password)
	}
}
