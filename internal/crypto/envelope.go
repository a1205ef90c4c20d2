package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	EnvelopeTag       = "vaultkeep:encrypted"
	EnvelopeAlgorithm = "aes-256-gcm"
)

var (
	// ErrDecrypt covers wrong keys, tampered tags and corrupted ciphertext
	ErrDecrypt         = errors.New("decryption failed")
	ErrInvalidEnvelope = errors.New("invalid envelope")
	ErrInvalidKey      = errors.New("invalid key size")
)

// Envelope is the stored form of an encrypted value
type Envelope struct {
	Tag        string `json:"tag"`
	Algorithm  string `json:"algorithm"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
	AuthTag    string `json:"authTag"`
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with AES-256-GCM under a fresh random nonce
func Encrypt(plaintext, key []byte) (*Envelope, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the tag to the ciphertext
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return &Envelope{
		Tag:        EnvelopeTag,
		Algorithm:  EnvelopeAlgorithm,
		IV:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:split]),
		AuthTag:    base64.StdEncoding.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt opens an envelope. Any failure to authenticate is ErrDecrypt.
func Decrypt(env *Envelope, key []byte) ([]byte, error) {
	if env == nil || env.Tag != EnvelopeTag || env.Algorithm != EnvelopeAlgorithm {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, ErrInvalidEnvelope)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: bad iv", ErrDecrypt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrDecrypt)
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil || len(tag) != TagSize {
		return nil, fmt.Errorf("%w: bad auth tag", ErrDecrypt)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// Marshal returns the JSON form stored in the KV
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// IsEnvelope reports whether raw JSON has the shape of an Envelope
func IsEnvelope(raw []byte) bool {
	_, ok := asEnvelope(raw)
	return ok
}

func asEnvelope(raw []byte) (*Envelope, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var probe struct {
		Tag        *string `json:"tag"`
		Algorithm  *string `json:"algorithm"`
		IV         *string `json:"iv"`
		Ciphertext *string `json:"ciphertext"`
		AuthTag    *string `json:"authTag"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, false
	}
	if probe.Tag == nil || *probe.Tag != EnvelopeTag ||
		probe.Algorithm == nil || probe.IV == nil || probe.Ciphertext == nil || probe.AuthTag == nil {
		return nil, false
	}
	return &Envelope{
		Tag:        *probe.Tag,
		Algorithm:  *probe.Algorithm,
		IV:         *probe.IV,
		Ciphertext: *probe.Ciphertext,
		AuthTag:    *probe.AuthTag,
	}, true
}

// Stored is a raw KV value classified once at read time: exactly one of
// Envelope and Plain is set.
type Stored struct {
	Envelope *Envelope
	Plain    json.RawMessage
}

// Encrypted reports whether the value is ciphertext
func (s Stored) Encrypted() bool {
	return s.Envelope != nil
}

// ParseStored classifies a raw stored value. Values that are not valid
// JSON are rejected.
func ParseStored(raw []byte) (Stored, error) {
	if env, ok := asEnvelope(raw); ok {
		return Stored{Envelope: env}, nil
	}
	if !json.Valid(raw) {
		return Stored{}, fmt.Errorf("stored value is not valid JSON")
	}
	return Stored{Plain: json.RawMessage(raw)}, nil
}
