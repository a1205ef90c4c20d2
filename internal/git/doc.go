// Package git checks whether plaintext files written by vaultkeep, such
// as exported bundles, are at risk of being committed.
//
// Checks performed:
//   - Whether the file is tracked by git (it should not be)
//   - Whether the file is in .gitignore (it should be)
package git
