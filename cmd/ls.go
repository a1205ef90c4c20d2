package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/vaultkeep/internal/config"
)

// Ls lists the keys of the current profile. No password is required:
// key names are not encrypted.
func Ls(ctx context.Context, cfg config.Config) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	keys, err := s.Store.Keys(ctx)
	if err != nil {
		HandleError(err)
	}

	profileID := s.Vault.CurrentProfile()
	if len(keys) == 0 {
		fmt.Printf("No records in profile %s\n", profileID)
		return
	}

	fmt.Printf("Records in profile %s:\n", profileID)
	for _, k := range keys {
		fmt.Printf("  %s\n", k)
	}
}
