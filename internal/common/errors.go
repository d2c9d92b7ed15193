// Package common defines shared constants and sentinel errors used across
// the migrator packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrorNotFound = errors.New("not found")

	// Period errors.
	ErrInvalidPeriod = errors.New("invalid period")

	// Per-period and per-item pipeline errors.
	ErrChainResolution     = errors.New("folder chain resolution failed")
	ErrUnsupportedItemType = errors.New("unsupported item type")
	ErrMaterialize         = errors.New("materialize failed")
	ErrUpload              = errors.New("upload failed")
	ErrTransition          = errors.New("completion transition failed")

	// Run-level errors. Only these abort a run before any period is processed.
	ErrAuthentication = errors.New("remote store authentication failed")
	ErrLocked         = errors.New("branch is locked by another run")
	ErrInvalidConfig  = errors.New("invalid configuration")
)
