package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/keyring"
	"github.com/illarion/vaultkeep/internal/prompt"
	"github.com/illarion/vaultkeep/internal/vault"
)

// ProfileList prints the registry
func ProfileList(ctx context.Context, cfg config.Config) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	profiles, err := s.Vault.ListProfiles(ctx)
	if err != nil {
		HandleError(err)
	}
	if len(profiles) == 0 {
		fmt.Println("No profiles")
		fmt.Println("Run 'vaultkeep setup' to create the first one")
		return
	}

	current := s.Vault.CurrentProfile()
	for _, p := range profiles {
		marker := " "
		if p.ID == current {
			marker = "*"
		}
		state := "no vault"
		if ok, err := s.Vault.HasVault(ctx, p.ID); err == nil && ok {
			state = "vault"
		}
		fmt.Printf("%s %-12s %-20s [%s]  created %s\n", marker, p.ID, p.Name, state, p.CreatedAt.Format("2006-01-02"))
		if p.Note != "" {
			fmt.Printf("    %s\n", p.Note)
		}
	}
}

// ProfileCreate registers a profile and makes it current
func ProfileCreate(ctx context.Context, cfg config.Config, name, id string) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	id, err := s.Vault.CreateProfile(ctx, name, id)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Created profile %s (%s)\n", name, id)
	fmt.Println("Run 'vaultkeep setup' to set its password")
}

// ProfileSelect makes a profile current
func ProfileSelect(ctx context.Context, cfg config.Config, id string) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	if err := s.Vault.SelectProfile(ctx, id); err != nil {
		HandleError(err)
	}
	fmt.Printf("Current profile: %s\n", id)
}

// ProfileUpdate renames or annotates a profile; nil values are kept
func ProfileUpdate(ctx context.Context, cfg config.Config, id string, name, note *string) {
	if name == nil && note == nil {
		fmt.Fprintln(os.Stderr, "Error: nothing to update, pass --name or --note")
		os.Exit(1)
	}

	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	p, err := s.Vault.UpdateProfile(ctx, id, vault.ProfileUpdate{Name: name, Note: note})
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Updated profile %s (%s)\n", p.Name, p.ID)
}

// ProfileDelete irreversibly removes a profile and all of its data
func ProfileDelete(ctx context.Context, cfg config.Config, id string, force bool) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	if !force {
		question := fmt.Sprintf("This permanently deletes profile %s and every record in it.", id)
		if err := prompt.Confirm(os.Stdin, os.Stderr, question, id); err != nil {
			fmt.Println("Aborted")
			return
		}
	}

	account := s.Account(id)
	password, _, err := GetPassword(fmt.Sprintf("Enter password of %s: ", id), account)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	res, err := s.Vault.DeleteProfile(ctx, id, string(password))
	if err != nil {
		HandleError(err)
	}
	_ = keyring.DeletePassword(account)

	fmt.Printf("Deleted profile %s\n", id)
	if res.NextProfileID != "" {
		fmt.Printf("Current profile: %s\n", res.NextProfileID)
	} else {
		fmt.Println("No profiles left")
	}
}
