// Copyright (c) 2026 Riskledger Team
// Riskledger - governance, risk and compliance management
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import "errors"

var (
	// ErrFileNotFound is returned when a backup file does not exist.
	ErrFileNotFound = errors.New("backup file not found")
	// ErrDecompression is returned when compressed input cannot be inflated.
	ErrDecompression = errors.New("decompression failed")
	// ErrMalformed is returned when the content is not valid JSON.
	ErrMalformed = errors.New("malformed structured content")
	// ErrValidation is returned when an artifact fails validation.
	ErrValidation = errors.New("backup validation failed")
	// ErrUnknownModule is returned for module names missing from the module map.
	ErrUnknownModule = errors.New("unknown module")
	// ErrInvalidFilename is returned for custom artifact names without a
	// usable base name.
	ErrInvalidFilename = errors.New("invalid backup filename")
	// ErrInvalidStrategy is returned for strategies other than skip and update.
	ErrInvalidStrategy = errors.New("invalid existing data strategy")
)
