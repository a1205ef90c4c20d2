// Package prompt reads passwords and confirmations from the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/illarion/vaultkeep/internal/crypto"
)

// PasswordEnv names the environment variable checked before prompting
const PasswordEnv = "VAULTKEEP_PASSWORD"

var (
	ErrMismatch     = errors.New("passwords do not match")
	ErrNotATerminal = errors.New("stdin is not a terminal")
	ErrNotConfirmed = errors.New("not confirmed")
)

// ReadPassword reads a password from the terminal without echoing
func ReadPassword(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: set %s to pass the password", ErrNotATerminal, PasswordEnv)
	}

	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm(prompt string) ([]byte, error) {
	password1, err := ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, ErrMismatch
	}

	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// GetPasswordFromEnv returns a copy of VAULTKEEP_PASSWORD, or nil when unset
func GetPasswordFromEnv() []byte {
	password := os.Getenv(PasswordEnv)
	if password == "" {
		return nil
	}
	result := make([]byte, len(password))
	copy(result, password)
	return result
}

// Confirm asks the user to type want back. Anything else is ErrNotConfirmed.
func Confirm(in io.Reader, out io.Writer, question, want string) error {
	fmt.Fprintf(out, "%s\nType %q to confirm: ", question, want)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != want {
		return ErrNotConfirmed
	}
	return nil
}
