package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/keyring"
)

// Status shows the vault state without asking for a password
func Status(ctx context.Context, cfg config.Config, asJSON bool) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	st, err := s.Vault.Status(ctx)
	if err != nil {
		HandleError(err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			HandleError(err)
		}
		return
	}

	fmt.Printf("Database: %s (%s)\n", cfg.DBPath, cfg.Backend)
	fmt.Printf("Current profile: %s\n", st.CurrentProfile)
	if !st.HasVault {
		fmt.Println("Vault: not set up")
		fmt.Println("Run 'vaultkeep setup' to create one")
	} else {
		fmt.Println("Vault: set up (locked until a command unlocks it)")
		if keyring.HasPassword(s.Account(st.CurrentProfile)) {
			fmt.Println("Password: stored in keyring")
		}
	}
	if st.RotationPending {
		fmt.Println("Warning: an interrupted password change is pending")
		fmt.Println("Re-run 'vaultkeep passwd' with the same passwords to finish it")
	}

	fmt.Println()
	fmt.Println("Profiles:")
	if len(st.Profiles) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, p := range st.Profiles {
		marker := " "
		if p.ID == st.CurrentProfile {
			marker = "*"
		}
		fmt.Printf("  %s %s (%s)", marker, p.Name, p.ID)
		if stats, ok := st.Stats[p.ID]; ok {
			fmt.Printf(" - %d accounts, %d projects", stats.Accounts, stats.Projects)
		}
		fmt.Println()
	}
}
