package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/vaultkeep/internal/bundle"
	"github.com/illarion/vaultkeep/internal/config"
)

// Diff previews what importing a bundle file would change
func Diff(ctx context.Context, cfg config.Config, file string) {
	pv := openWorkdir()
	defer pv.Close()
	b := readBundle(pv, file)

	s := OpenOrExit(ctx, cfg)
	defer s.Close()
	s.RequireUnlocked(ctx)

	out, err := bundle.Diff(ctx, s.Store, b)
	if err != nil {
		HandleError(err)
	}
	if out == "" {
		fmt.Printf("Project %s is identical in the vault and in %s\n", b.Project.ID(), file)
		return
	}
	fmt.Print(out)
}
