package access

import (
	"errors"

	"nguide/admin/internal/utils"
)

var (
	// ErrValidation marks malformed input such as a missing quotation id or code.
	ErrValidation = errors.New("invalid access request")
	// ErrNotFound is returned for any lookup that found no quotation.
	ErrNotFound = errors.New("quotation not found")
	// ErrUnauthorized collapses every credential failure into one condition.
	ErrUnauthorized = errors.New("invalid or expired access credentials")
	// ErrAllocationExhausted is returned when no free access code was found.
	ErrAllocationExhausted = utils.ErrAllocationExhausted
	// ErrMissingSecret is a configuration error raised at construction time.
	ErrMissingSecret = errors.New("quotation token signing secret is not configured")

	// ErrAccessCodeTaken is reported by stores when the unique index rejected a code.
	ErrAccessCodeTaken = errors.New("access code already assigned to another quotation")
	// ErrSharingChanged is reported by stores when a conditional code write
	// found the sharing state different from what the caller expected.
	ErrSharingChanged = errors.New("quotation sharing state changed concurrently")
)
