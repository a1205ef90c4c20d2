package vault

import "errors"

var (
	ErrWeakPassword    = errors.New("password too short")
	ErrValidation      = errors.New("validation failed")
	ErrNoVault         = errors.New("no vault for profile")
	ErrVaultExists     = errors.New("vault already set up for profile")
	ErrWrongPassword   = errors.New("wrong password")
	ErrDuplicateID     = errors.New("profile id already exists")
	ErrNotFound        = errors.New("profile not found")
	ErrLocked          = errors.New("vault is locked")
	ErrRotationPending = errors.New("an interrupted password change is pending")
)
