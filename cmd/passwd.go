package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/keyring"
	"github.com/illarion/vaultkeep/internal/storage"
)

// EnvNewPassword supplies the new password to passwd without a prompt
const EnvNewPassword = "VAULTKEEP_NEW_PASSWORD"

// Passwd re-encrypts a profile under a new password
func Passwd(ctx context.Context, cfg config.Config, profileID string) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	if profileID == "" {
		profileID = s.Vault.CurrentProfile()
	}
	account := s.Account(profileID)

	current, _, err := GetPassword("Enter current password: ", account)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(current)

	newPassword, err := GetNewPassword(EnvNewPassword, "Enter new password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(newPassword)

	report, err := s.Vault.ChangePassword(ctx, string(current), string(newPassword), profileID)
	if err != nil {
		if report != nil {
			fmt.Fprintf(os.Stderr, "Interrupted after %d records\n", report.Reencrypted+report.Sealed)
		}
		HandleError(err)
	}

	if report.Resumed {
		fmt.Println("Resumed an interrupted password change")
	}
	fmt.Printf("Re-encrypted: %d, sealed: %d, already current: %d\n",
		report.Reencrypted, report.Sealed, report.AlreadyCurrent)
	if len(report.Skipped) > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d records could not be decrypted and were left untouched:\n", len(report.Skipped))
		for _, k := range report.Skipped {
			fmt.Fprintf(os.Stderr, "  %s\n", k)
		}
	}

	// Keep a remembered password in step with the vault
	if keyring.HasPassword(account) {
		if err := keyring.SavePassword(account, string(newPassword)); err == nil {
			fmt.Println("Keyring updated with new password")
		}
	}

	// Every record was rewritten, reclaim the old pages
	if c, ok := s.KV.(storage.Compactor); ok {
		if err := c.Compact(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
		}
	}

	fmt.Println("Password changed successfully")
}
