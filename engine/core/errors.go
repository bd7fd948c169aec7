package core

import (
	"errors"
)

// ErrDescriptorPoolExhausted means descriptor allocation failed even after
// growing the arena; callers treat it as fatal.
var ErrDescriptorPoolExhausted = errors.New("descriptor pool exhausted")

// ErrFenceTimeout is raised when a bounded fence wait expires. Treated as
// fatal by the frame loop.
var ErrFenceTimeout = errors.New("fence wait timed out")
