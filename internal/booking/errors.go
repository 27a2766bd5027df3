package booking

import (
	"errors"
	"fmt"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
)

var (
	ErrProviderNotFound    = fmt.Errorf("booking: provider %w", apperr.ErrNotFound)
	ErrBookingNotFound     = fmt.Errorf("booking: booking %w", apperr.ErrNotFound)
	ErrSlotTaken           = fmt.Errorf("booking: slot already taken: %w", apperr.ErrConflict)
	ErrNotWorkingDay       = fmt.Errorf("booking: provider does not work that day: %w", apperr.ErrInvalidArgument)
	ErrOutsideWorkingHours = fmt.Errorf("booking: time outside working hours: %w", apperr.ErrInvalidArgument)
	ErrInvalidDate         = fmt.Errorf("booking: invalid date, expected YYYY-MM-DD: %w", apperr.ErrInvalidArgument)
	ErrInvalidTime         = fmt.Errorf("booking: invalid time, expected HH:MM: %w", apperr.ErrInvalidArgument)
	ErrClientNameRequired  = fmt.Errorf("booking: client name required: %w", apperr.ErrInvalidArgument)

	// errCodeTaken signals a confirmation code collision inside one tenant.
	errCodeTaken = errors.New("booking: confirmation code taken")
)
