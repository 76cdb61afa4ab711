package ptree

import "errors"

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrConsistency = errors.New("consistency error")
)
