package service

import (
	"errors"

	"github.com/emrgen/communication/internal/timeline"
)

var (
	// ErrCircularLinking aborts a save when a communication is linked back to
	// itself, through the primary reference chain or the timeline links.
	ErrCircularLinking = timeline.ErrCircularLinking
	// ErrInvalidSenderAddress is returned when an outbound email sender does not parse.
	ErrInvalidSenderAddress = errors.New("invalid sender email address")
	// ErrPermissionDenied is returned when the session user may not modify the record.
	ErrPermissionDenied = errors.New("permission denied")
)
