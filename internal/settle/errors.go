package settle

import "errors"

// Error kinds surfaced to callers. The API layer maps these to response
// codes with errors.Is; nothing in this package retries or swallows them.
var (
	// ErrUnbalanced means the nets handed to the solver did not sum to zero.
	// That is corrupted upstream data, never a recoverable condition.
	ErrUnbalanced = errors.New("settlement does not balance")

	ErrTabNotFound         = errors.New("tab not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrTransferNotFound    = errors.New("no transfer exists between this pair")
	ErrAckNotFound         = errors.New("acknowledgement not found")
	ErrForbidden           = errors.New("caller does not control this participant")
	ErrAlreadyAcknowledged = errors.New("transfer is already acknowledged")
	ErrTabClosed           = errors.New("tab is closed")
	ErrTabOpen             = errors.New("tab is still open")
)
