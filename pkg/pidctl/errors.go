// SPDX-License-Identifier: BSD-3-Clause

package pidctl

import "errors"

var (
	// ErrInvalidTuneParams indicates Start was called with a non-positive
	// setpoint or hysteresis.
	ErrInvalidTuneParams = errors.New("auto-tune setpoint and hysteresis must both be positive")
)
