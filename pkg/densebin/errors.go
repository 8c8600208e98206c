package densebin

import "errors"

var (
	ErrInvalidMagic       = errors.New("invalid densebin magic")
	ErrUnsupportedVersion = errors.New("unsupported densebin version")
	ErrCorruptFile        = errors.New("corrupt densebin file")
)
