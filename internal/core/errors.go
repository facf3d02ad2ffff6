package core

import "errors"

var (
	// ErrNoCodecRegistered is returned when a column type tag or a structural
	// value type has no codec.
	ErrNoCodecRegistered = errors.New("no codec registered")

	// ErrTypeMismatch is returned when a value does not have the type a codec
	// expects, or when stored text cannot be parsed back.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidEnumMember is returned when an enumeration name is unknown.
	ErrInvalidEnumMember = errors.New("invalid enum member")

	// ErrUnsupportedType is returned when the enum codec is given a target
	// that is not an enumeration.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrRowNotFound is returned when the relational row does not exist.
	ErrRowNotFound = errors.New("row not found")

	// ErrBackendUnavailable wraps connection failures of either backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrStoreClosed is returned by stores after Close.
	ErrStoreClosed = errors.New("store is closed")

	// ErrUnknownColumn is returned when a column name is not part of a schema.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrQueueClosed is returned by reconcile queues after Close.
	ErrQueueClosed = errors.New("reconcile queue is closed")

	// ErrTableNotRegistered is returned for tables that were never defined.
	ErrTableNotRegistered = errors.New("table is not registered")
)
