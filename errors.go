package dynahist

import "errors"

var (
	// ErrInvalidArgument is wrapped by all argument validation failures:
	// NaN samples, negative counts, ranks out of bounds, and illegal
	// serialization parameters.
	ErrInvalidArgument = errors.New("dynahist: invalid argument")

	// ErrTotalCountOverflow reports an addition that would push the
	// total count past the int64 range. The histogram is left unchanged.
	ErrTotalCountOverflow = errors.New("dynahist: total count overflow")

	// ErrUnsupportedOperation reports a mutation attempted on an
	// immutable (preprocessed) histogram.
	ErrUnsupportedOperation = errors.New("dynahist: unsupported operation on immutable histogram")

	// ErrUnknownSerialVersion reports a serialized histogram whose
	// version byte is not recognized.
	ErrUnknownSerialVersion = errors.New("dynahist: unknown serial version")
)
