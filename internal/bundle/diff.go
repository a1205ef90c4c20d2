package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// snapshot is the part of a bundle that is compared; the export time is not
type snapshot struct {
	Project  Record   `json:"project"`
	Accounts []Record `json:"accounts"`
}

func render(b *Bundle) (string, error) {
	if b == nil {
		return "", nil
	}
	data, err := json.MarshalIndent(snapshot{Project: b.Project, Accounts: b.Accounts}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// Diff shows what importing b would change for its project, as a line
// diff of the stored records against the incoming ones. Lines only in the
// vault start with "-", lines only in the bundle with "+". The result is
// empty when nothing would change.
func Diff(ctx context.Context, s Store, b *Bundle) (string, error) {
	if err := b.validate(); err != nil {
		return "", err
	}
	projectID := b.Project.ID()

	current, err := Export(ctx, s, projectID, b.ExportedAt)
	if err != nil && !errors.Is(err, ErrProjectNotFound) {
		return "", err
	}

	vaultText, err := render(current)
	if err != nil {
		return "", err
	}
	bundleText, err := render(b)
	if err != nil {
		return "", err
	}
	if vaultText == bundleText {
		return "", nil
	}

	dmp := diffmatchpatch.New()
	a, c, lineArray := dmp.DiffLinesToChars(vaultText, bundleText)
	diffs := dmp.DiffMain(a, c, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var out strings.Builder
	fmt.Fprintf(&out, "--- vault/%s\n", projectID)
	fmt.Fprintf(&out, "+++ bundle/%s\n", projectID)
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String(), nil
}
