package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/illarion/vaultkeep/internal/bundle"
	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/git"
	"github.com/illarion/vaultkeep/internal/security"
)

// bundleFilePerm keeps exported plaintext readable by the owner only
const bundleFilePerm = 0600

func openWorkdir() *security.PathValidator {
	pv, err := security.New(".")
	if err != nil {
		HandleError(err)
	}
	return pv
}

// readBundle loads and parses a bundle file from the working directory
func readBundle(pv *security.PathValidator, file string) *bundle.Bundle {
	data, err := pv.ReadFile(file)
	if err != nil {
		HandleError(err)
	}
	b, err := bundle.Parse(data)
	if err != nil {
		HandleError(err)
	}
	return b
}

// Export writes one project and its accounts to a plaintext JSON file
func Export(ctx context.Context, cfg config.Config, projectID, output string, force bool) {
	if output == "" {
		output = projectID + ".json"
	}

	pv := openWorkdir()
	defer pv.Close()

	s := OpenOrExit(ctx, cfg)
	defer s.Close()
	s.RequireUnlocked(ctx)

	b, err := bundle.Export(ctx, s.Store, projectID, time.Now())
	if err != nil {
		HandleError(err)
	}
	data, err := b.Marshal()
	if err != nil {
		HandleError(err)
	}
	if err := pv.WriteFile(output, data, bundleFilePerm, force); err != nil {
		HandleError(err)
	}

	fmt.Printf("Exported project %s with %d accounts to %s\n", projectID, len(b.Accounts), output)
	fmt.Println("warning: the bundle is NOT encrypted")
	if msg := git.CheckExposure(pv.Dir(), output).Warning(); msg != "" {
		fmt.Println(msg)
	}
}

// Import reads a bundle file into the current profile
func Import(ctx context.Context, cfg config.Config, file string, overwrite bool) {
	pv := openWorkdir()
	defer pv.Close()
	b := readBundle(pv, file)

	s := OpenOrExit(ctx, cfg)
	defer s.Close()
	s.RequireUnlocked(ctx)

	res, err := bundle.Import(ctx, s.Store, b, overwrite)
	if err != nil {
		HandleError(err)
	}

	action := "Imported"
	if res.ProjectReplaced {
		action = "Replaced"
	}
	fmt.Printf("%s project %s: %d accounts added, %d replaced\n",
		action, res.ProjectID, res.AccountsAdded, res.AccountsReplaced)
}
