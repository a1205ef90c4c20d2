// Package vault owns the profile lifecycle and every derived key.
//
// Each profile moves through three states:
//   - NoVault: registered, no VaultMeta yet; its rows are plain JSON
//   - Locked: VaultMeta exists, no key in memory
//   - Unlocked: key held in a memguard enclave inside the Manager
//
// The current-profile pointer is independent of lock state and is persisted
// as a reserved key so it survives restarts.
//
// Operations:
//   - Setup: create a profile's vault, migrate legacy rows, seal plaintext rows
//   - Unlock/Lock: verify a password against the stored verifier
//   - ChangePassword: re-encrypt every row of a profile under a new key
//   - CreateProfile/SelectProfile/UpdateProfile/DeleteProfile: registry management
//
// All operations are serialized by a single mutex.
package vault
