package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// runQuery evaluates a jq filter against a JSON value and returns every
// output. Environment access is blocked: decrypted secrets never mix with
// the process environment.
func runQuery(ctx context.Context, data json.RawMessage, expr string) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}
	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expr, err)
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("stored value is not JSON: %w", err)
	}

	var results []any
	iter := code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("query %q failed: %w", expr, err)
		}
		results = append(results, v)
	}
	return results, nil
}
