// Package email delivers rendered reminder digests through an EmailProvider.
// It owns the per-group send: recipient redaction for logs, the test-mode
// bypass, and classification of provider failures.
package email

import (
	"errors"

	"garasiku/internal/types"
)

// ErrRecipientBlocked indicates the provider refused one of the recipients.
var ErrRecipientBlocked = errors.New("recipient blocked by provider")

// ErrNoRecipients is returned when a message has an empty To list.
var ErrNoRecipients = errors.New("message has no recipients")

// IsBlocklistError reports whether err means the provider refused a recipient,
// either as the sentinel or as an AppError with ErrCodeEmailBlocked.
func IsBlocklistError(err error) bool {
	return errors.Is(err, ErrRecipientBlocked) || types.CodeOf(err) == types.ErrCodeEmailBlocked
}

// classify maps a send error to the status recorded on the receipt.
func classify(err error) DeliveryStatus {
	switch {
	case err == nil:
		return StatusSent
	case IsBlocklistError(err):
		return StatusBlocked
	default:
		return StatusFailed
	}
}
