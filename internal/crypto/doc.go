// Package crypto provides cryptographic operations for vaultkeep.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the master password
//   - 12-byte random nonce per encryption operation
//   - 16-byte authentication tag, stored apart from the ciphertext
//
// Every encrypted value is stored as a self-describing JSON Envelope so that
// ciphertext rows can be told apart from legacy plaintext rows on read.
//
// Key derivation uses argon2id with:
//   - 16-byte random salt (stored unencrypted)
//   - configurable time, memory and thread cost (DefaultKDF for production)
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
package crypto
