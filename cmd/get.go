package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/illarion/vaultkeep/internal/config"
)

// Get prints the value of a key, optionally filtered through a jq query.
// With raw set, string results are printed without quotes.
func Get(ctx context.Context, cfg config.Config, key, query string, raw bool) {
	s := OpenOrExit(ctx, cfg)
	defer s.Close()
	s.RequireUnlocked(ctx)

	data, err := s.Store.Get(ctx, key)
	if err != nil {
		HandleError(err)
	}
	if data == nil {
		fmt.Fprintf(os.Stderr, "Error: %s not found\n", key)
		os.Exit(1)
	}

	if query == "" {
		printValue(data, raw)
		return
	}

	results, err := runQuery(ctx, data, query)
	if err != nil {
		HandleError(err)
	}
	for _, r := range results {
		out, err := json.Marshal(r)
		if err != nil {
			HandleError(err)
		}
		printValue(out, raw)
	}
}

func printValue(data []byte, raw bool) {
	if raw {
		var str string
		if json.Unmarshal(data, &str) == nil {
			fmt.Println(str)
			return
		}
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(buf.String())
}
