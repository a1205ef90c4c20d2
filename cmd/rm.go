package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/namespace"
)

// Remove deletes keys of the current profile
func Remove(ctx context.Context, cfg config.Config, keys []string) {
	if len(keys) == 0 {
		fmt.Fprintf(os.Stderr, "Error: rm requires at least one key\n")
		fmt.Fprintf(os.Stderr, "Usage: vaultkeep rm <key> [key...]\n")
		os.Exit(1)
	}
	for _, k := range keys {
		if namespace.IsReserved(k) {
			fmt.Fprintf(os.Stderr, "Error: %s is managed by vaultkeep and cannot be removed directly\n", k)
			os.Exit(1)
		}
	}

	s := OpenOrExit(ctx, cfg)
	defer s.Close()

	// Deleting needs no key, but only the owner of the vault may do it
	s.RequireUnlocked(ctx)

	for _, k := range keys {
		if err := s.Store.Delete(ctx, k); err != nil {
			HandleError(err)
		}
		fmt.Printf("Removed %s\n", k)
	}
}
