package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/namespace"
)

// Set stores a JSON value under key. A value of "-" is read from stdin.
// With asString the value is stored as a JSON string instead of parsed.
func Set(ctx context.Context, cfg config.Config, key, value string, asString bool) {
	if namespace.IsReserved(key) {
		fmt.Fprintf(os.Stderr, "Error: %s is managed by vaultkeep and cannot be set directly\n", key)
		os.Exit(1)
	}

	if value == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			HandleError(fmt.Errorf("failed to read stdin: %w", err))
		}
		value = strings.TrimRight(string(data), "\r\n")
	}

	var v any
	if asString {
		v = value
	} else {
		if !json.Valid([]byte(value)) {
			fmt.Fprintln(os.Stderr, "Error: value is not valid JSON")
			fmt.Fprintln(os.Stderr, "Use --string to store it as text")
			os.Exit(1)
		}
		v = json.RawMessage(value)
	}

	s := OpenOrExit(ctx, cfg)
	defer s.Close()
	unlocked, err := s.UnlockCurrent(ctx)
	if err != nil {
		HandleError(err)
	}

	if err := s.Store.Set(ctx, key, v); err != nil {
		HandleError(err)
	}
	if unlocked {
		fmt.Printf("Stored %s (encrypted)\n", key)
	} else {
		fmt.Printf("Stored %s (no vault yet, stored as plain JSON)\n", key)
	}
}
