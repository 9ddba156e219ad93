// SPDX-License-Identifier: BSD-3-Clause

package persistence

import "errors"

var (
	// ErrProfileNotFound indicates a LoadProfile or DeleteProfile id has no stored blob.
	ErrProfileNotFound = errors.New("persistence: profile not found")
	// ErrInvalidProfileID indicates a profile id failed ValidProfileID.
	ErrInvalidProfileID = errors.New("persistence: invalid profile id")
	// ErrProfileCapacity indicates SaveProfile would exceed MaxProfiles for a new id.
	ErrProfileCapacity = errors.New("persistence: profile store at capacity")
)
