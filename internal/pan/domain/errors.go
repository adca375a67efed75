package domain

import (
	apperrors "github.com/allisson/panvault/internal/errors"
)

var (
	// ErrPanNotFound is returned when no encrypted PAN exists for an HPAN.
	ErrPanNotFound = apperrors.Wrap(apperrors.ErrNotFound, "pan not found")

	// ErrInvalidPan is returned when a value is not a well-formed PAN.
	ErrInvalidPan = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid pan")

	// ErrHpanMismatch is returned when a supplied HPAN does not match the
	// keyed hash of the supplied PAN.
	ErrHpanMismatch = apperrors.Wrap(apperrors.ErrInvalidInput, "hpan does not match pan")

	// ErrDekIntegrity is returned when a stored PAN references a DEK that no
	// longer exists. The referential constraint makes this unreachable in
	// normal operation; seeing it means the store was modified out of band.
	ErrDekIntegrity = apperrors.Wrap(apperrors.ErrIntegrity, "encrypted pan references missing dek")
)
