package confspace

import (
	"errors"

	"github.com/LynnColeArt/confecalc"
)

var (
	// ErrInvalidAssignment is wrapped by every assignment validation failure
	ErrInvalidAssignment = errors.New("invalid assignment")

	// ErrBadMagic indicates the input is not an encoded conformation space
	ErrBadMagic = errors.New("bad magic")

	// ErrUnsupportedVersion indicates an encoding version this package cannot read
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrUnsupportedCompression indicates a compression id this package cannot read
	ErrUnsupportedCompression = errors.New("unsupported compression")

	// ErrPrecisionMismatch indicates the encoded precision differs from the requested one
	ErrPrecisionMismatch = errors.New("precision mismatch")
)

func invalidArg(op, message string, cause error) error {
	return &confecalc.Error{
		Type:    confecalc.ErrTypeInvalidArg,
		Op:      op,
		Message: message,
		Err:     cause,
	}
}
