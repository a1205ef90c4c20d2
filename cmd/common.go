package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/illarion/vaultkeep/internal/bundle"
	"github.com/illarion/vaultkeep/internal/config"
	"github.com/illarion/vaultkeep/internal/crypto"
	"github.com/illarion/vaultkeep/internal/datastore"
	"github.com/illarion/vaultkeep/internal/keyring"
	"github.com/illarion/vaultkeep/internal/logging"
	"github.com/illarion/vaultkeep/internal/prompt"
	"github.com/illarion/vaultkeep/internal/security"
	"github.com/illarion/vaultkeep/internal/storage"
	"github.com/illarion/vaultkeep/internal/vault"
)

// maxPromptAttempts bounds interactive password retries
const maxPromptAttempts = 3

// Session is what a command works against: the open database, the vault
// manager and the data facade
type Session struct {
	Config config.Config
	KV     storage.KV
	Vault  *vault.Manager
	Store  *datastore.Store
	Log    zerolog.Logger
}

// Open opens the configured database and builds the vault on top of it
func Open(ctx context.Context, cfg config.Config) (*Session, error) {
	log, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	kv, err := storage.OpenBackend(cfg.Backend, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.DBPath, err)
	}

	m, err := vault.New(ctx, kv, vault.Options{
		Logger: &log,
		// One immediate attempt, then one per second
		Limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	})
	if err != nil {
		kv.Close()
		return nil, err
	}

	return &Session{
		Config: cfg,
		KV:     kv,
		Vault:  m,
		Store:  datastore.New(kv, m, &log),
		Log:    log,
	}, nil
}

// OpenOrExit is like Open but exits on error
func OpenOrExit(ctx context.Context, cfg config.Config) *Session {
	s, err := Open(ctx, cfg)
	if err != nil {
		HandleError(err)
	}
	return s
}

// Close drops every key and closes the database
func (s *Session) Close() {
	s.Vault.LockAll()
	if err := s.KV.Close(); err != nil {
		s.Log.Warn().Err(err).Msg("failed to close database")
	}
}

// Account is the keyring account of a profile of this database
func (s *Session) Account(profileID string) string {
	return keyring.Account(s.Config.DBPath, profileID)
}

// PasswordSource tells where a password came from
type PasswordSource int

const (
	SourceEnv PasswordSource = iota
	SourceKeyring
	SourcePrompt
)

// GetPassword retrieves a password from the environment, then the keyring
// entry of account, then the terminal. The caller is responsible for
// calling crypto.ClearBytes on the returned password.
func GetPassword(promptText, account string) ([]byte, PasswordSource, error) {
	if password := prompt.GetPasswordFromEnv(); password != nil {
		return password, SourceEnv, nil
	}

	if account != "" {
		if stored, err := keyring.GetPassword(account); err == nil {
			return []byte(stored), SourceKeyring, nil
		}
	}

	password, err := prompt.ReadPassword(promptText)
	if err != nil {
		return nil, SourcePrompt, err
	}
	return password, SourcePrompt, nil
}

// GetPasswordWithRetry gets a password and checks it with verify. A stale
// keyring entry is removed and the user is prompted instead; prompted
// passwords are retried a few times. Passwords from the environment are
// not retried.
func GetPasswordWithRetry(promptText, account string, verify func([]byte) error) ([]byte, PasswordSource, error) {
	password, source, err := GetPassword(promptText, account)
	if err != nil {
		return nil, source, err
	}

	attempts := 0
	for {
		err := verify(password)
		if err == nil {
			return password, source, nil
		}
		crypto.ClearBytes(password)
		if !errors.Is(err, vault.ErrWrongPassword) {
			return nil, source, err
		}

		switch source {
		case SourceEnv:
			return nil, source, err
		case SourceKeyring:
			fmt.Fprintln(os.Stderr, "Password in keyring is no longer valid, removing it")
			_ = keyring.DeletePassword(account)
		case SourcePrompt:
			attempts++
			if attempts >= maxPromptAttempts {
				return nil, source, err
			}
			fmt.Fprintln(os.Stderr, "Wrong password, try again")
		}

		password, err = prompt.ReadPassword(promptText)
		if err != nil {
			return nil, source, err
		}
		source = SourcePrompt
	}
}

// GetNewPassword reads a new password from the environment variable given
// or asks for it twice
func GetNewPassword(envName, promptText string) ([]byte, error) {
	if v := os.Getenv(envName); v != "" {
		return []byte(v), nil
	}
	return prompt.ReadPasswordConfirm(promptText)
}

// UnlockCurrent unlocks the current profile when it has a vault. It
// reports whether a vault was unlocked.
func (s *Session) UnlockCurrent(ctx context.Context) (bool, error) {
	profileID := s.Vault.CurrentProfile()
	hasVault, err := s.Vault.HasVault(ctx, profileID)
	if err != nil || !hasVault {
		return false, err
	}

	account := s.Account(profileID)
	password, source, err := GetPasswordWithRetry("Enter password: ", account, func(pw []byte) error {
		_, err := s.Vault.Unlock(ctx, string(pw), profileID)
		return err
	})
	if err != nil {
		return false, err
	}
	defer crypto.ClearBytes(password)

	if source == SourcePrompt {
		OfferToSavePassword(account, password)
	}
	return true, nil
}

// RequireUnlocked unlocks the current profile or exits
func (s *Session) RequireUnlocked(ctx context.Context) {
	if _, err := s.UnlockCurrent(ctx); err != nil {
		HandleError(err)
	}
}

// OfferToSavePassword asks whether to remember a typed password
func OfferToSavePassword(account string, password []byte) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || keyring.HasPassword(account) {
		return
	}

	fmt.Fprint(os.Stderr, "Save password to OS keyring? [y/N]: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	if answer != "y" && answer != "yes" {
		return
	}

	if err := keyring.SavePassword(account, string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save to keyring: %s\n", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Password saved to keyring")
}

// describeError maps known errors to a message and an optional hint
func describeError(err error) (string, string) {
	switch {
	case errors.Is(err, vault.ErrNoVault):
		return "no vault for this profile", "Run 'vaultkeep setup' first"
	case errors.Is(err, vault.ErrVaultExists):
		return "vault already set up for this profile", "Use 'vaultkeep passwd' to change its password"
	case errors.Is(err, vault.ErrWrongPassword):
		return "wrong password", ""
	case errors.Is(err, vault.ErrWeakPassword):
		return fmt.Sprintf("password must be at least %d characters", vault.MinPasswordLength), ""
	case errors.Is(err, vault.ErrLocked):
		return "vault is locked", "Run 'vaultkeep unlock' or set VAULTKEEP_PASSWORD"
	case errors.Is(err, vault.ErrNotFound):
		return err.Error(), "Use 'vaultkeep profile list' to see profiles"
	case errors.Is(err, vault.ErrRotationPending):
		return "an interrupted password change is pending",
			"Re-run 'vaultkeep passwd' with the same current and new passwords"
	case errors.Is(err, crypto.ErrDecrypt):
		return "stored value failed to decrypt (corrupted or written with another key)", ""
	case errors.Is(err, security.ErrPathEscapes), errors.Is(err, security.ErrAbsolutePath):
		return err.Error(), "Bundle files must be inside the current directory"
	case errors.Is(err, security.ErrFileExists):
		return err.Error(), "Use --force to overwrite"
	case errors.Is(err, bundle.ErrProjectExists):
		return err.Error(), "Use --overwrite to replace it"
	case errors.Is(err, prompt.ErrNotATerminal):
		return err.Error(), ""
	case errors.Is(err, storage.ErrUnknownBackend):
		return err.Error(), "Supported backends: bolt, libsql"
	default:
		return err.Error(), ""
	}
}

// HandleError prints err for the user and exits
func HandleError(err error) {
	msg, hint := describeError(err)
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	if hint != "" {
		fmt.Fprintln(os.Stderr, hint)
	}
	os.Exit(1)
}
