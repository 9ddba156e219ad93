// SPDX-License-Identifier: BSD-3-Clause

package kiln

import "errors"

var (
	// ErrInvalidSegmentCount indicates a profile has zero or more than MaxSegments segments.
	ErrInvalidSegmentCount = errors.New("segment count must be in [1, 16]")
	// ErrMaxTempInconsistent indicates a profile's MaxTempC is below its highest segment target.
	ErrMaxTempInconsistent = errors.New("profile max_temp below highest segment target")
	// ErrInvalidUnit indicates a KilnSettings.Unit value other than Celsius or Fahrenheit.
	ErrInvalidUnit = errors.New("temperature unit must be C or F")
	// ErrInvalidMaxSafeTemp indicates a KilnSettings.MaxSafeTempC outside [100, hardware max].
	ErrInvalidMaxSafeTemp = errors.New("max safe temperature out of range")
)
