package domain

import "errors"

var (
	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected by the current entity state.
	ErrConflict = errors.New("conflict")
	// ErrProviderNotConfigured marks a send attempted without a configured
	// delivery provider. It is deliberately distinct from delivery failures.
	ErrProviderNotConfigured = errors.New("email provider not configured")
	// ErrNoRecipients marks a dispatch that resolved zero pending recipients.
	ErrNoRecipients = errors.New("no recipients to send")
)
