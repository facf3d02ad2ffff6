package rowsync

import (
	"errors"

	"github.com/rzpsarthak13/rowsync/internal/core"
)

// Errors returned by the client and the handles it creates. Match them with
// errors.Is.
var (
	ErrNoCodecRegistered  = core.ErrNoCodecRegistered
	ErrTypeMismatch       = core.ErrTypeMismatch
	ErrInvalidEnumMember  = core.ErrInvalidEnumMember
	ErrUnsupportedType    = core.ErrUnsupportedType
	ErrRowNotFound        = core.ErrRowNotFound
	ErrBackendUnavailable = core.ErrBackendUnavailable
	ErrStoreClosed        = core.ErrStoreClosed
	ErrUnknownColumn      = core.ErrUnknownColumn
	ErrQueueClosed        = core.ErrQueueClosed
	ErrTableNotRegistered = core.ErrTableNotRegistered

	// ErrReconcileDisabled is returned by Schedule when the client has no queue.
	ErrReconcileDisabled = errors.New("reconciliation is not enabled")
)
