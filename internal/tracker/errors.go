package tracker

import "errors"

// Repository errors.
var (
	ErrLinkNotFound       = errors.New("link not found")
	ErrLinkAlreadyTracked = errors.New("link already tracked")
)

// Registry errors.
var (
	ErrDuplicateProvider = errors.New("duplicate provider for link type")
	ErrNoProvider        = errors.New("no provider registered for link type")
)
