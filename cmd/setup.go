package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/prompt"
)

// Setup creates the vault of the current profile
func Setup(ctx context.Context, cfg config.Config, name string) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	profileID := s.Vault.CurrentProfile()
	hasVault, err := s.Vault.HasVault(ctx, profileID)
	if err != nil {
		HandleError(err)
	}
	if hasVault {
		fmt.Printf("Profile %s already has a vault\n", profileID)
		return
	}

	password, err := GetNewPassword(prompt.PasswordEnv, "Enter new master password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	id, err := s.Vault.Setup(ctx, string(password), name)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Vault created for profile %s\n", id)
	fmt.Println("The password is not stored anywhere - you must remember it.")
	OfferToSavePassword(s.Account(id), password)
}
