// SPDX-License-Identifier: BSD-3-Clause

package persistence

import (
	"context"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

// DefaultProfiles are the factory-installed firing profiles, seeded into a
// store the first time it is found empty. Segment ramp/hold/target values
// are carried over from the original firmware's default profile table.
var DefaultProfiles = []kiln.FiringProfile{
	{
		ID:          "bisque-04",
		Name:        "Bisque Cone 04",
		Description: "Standard bisque firing to cone 04",
		MaxTempC:    1060.0,
		EstimatedDuration: 540 * time.Minute,
		Segments: []kiln.FiringSegment{
			{ID: "1", Name: "Warm-up", RampRateCPerHour: 100.0, TargetTempC: 200.0, HoldMinutes: 60},
			{ID: "2", Name: "Water smoke", RampRateCPerHour: 50.0, TargetTempC: 600.0, HoldMinutes: 30},
			{ID: "3", Name: "Ramp to top", RampRateCPerHour: 150.0, TargetTempC: 1060.0, HoldMinutes: 15},
		},
	},
	{
		ID:          "glaze-6",
		Name:        "Glaze Cone 6",
		Description: "Mid-fire glaze for stoneware",
		MaxTempC:    1222.0,
		EstimatedDuration: 480 * time.Minute,
		Segments: []kiln.FiringSegment{
			{ID: "1", Name: "Initial heat", RampRateCPerHour: 150.0, TargetTempC: 600.0, HoldMinutes: 0},
			{ID: "2", Name: "Medium ramp", RampRateCPerHour: 100.0, TargetTempC: 1000.0, HoldMinutes: 0},
			{ID: "3", Name: "Final ramp", RampRateCPerHour: 80.0, TargetTempC: 1222.0, HoldMinutes: 10},
		},
	},
	{
		ID:          "glaze-10",
		Name:        "Glaze Cone 10",
		Description: "High-fire glaze for porcelain",
		MaxTempC:    1305.0,
		EstimatedDuration: 600 * time.Minute,
		Segments: []kiln.FiringSegment{
			{ID: "1", Name: "Low heat", RampRateCPerHour: 120.0, TargetTempC: 500.0, HoldMinutes: 0},
			{ID: "2", Name: "Medium heat", RampRateCPerHour: 150.0, TargetTempC: 1000.0, HoldMinutes: 15},
			{ID: "3", Name: "High heat", RampRateCPerHour: 100.0, TargetTempC: 1305.0, HoldMinutes: 20},
		},
	},
	{
		ID:          "low-fire",
		Name:        "Low Fire Cone 06",
		Description: "Low temp for earthenware and decals",
		MaxTempC:    999.0,
		EstimatedDuration: 420 * time.Minute,
		Segments: []kiln.FiringSegment{
			{ID: "1", Name: "Warm-up", RampRateCPerHour: 100.0, TargetTempC: 400.0, HoldMinutes: 30},
			{ID: "2", Name: "Ramp to top", RampRateCPerHour: 120.0, TargetTempC: 999.0, HoldMinutes: 10},
		},
	},
	{
		ID:          "crystalline",
		Name:        "Crystalline Glaze",
		Description: "Controlled cooling for crystal growth",
		MaxTempC:    1260.0,
		EstimatedDuration: 720 * time.Minute,
		Segments: []kiln.FiringSegment{
			{ID: "1", Name: "Initial ramp", RampRateCPerHour: 200.0, TargetTempC: 1260.0, HoldMinutes: 30},
			{ID: "2", Name: "Crystal growth", RampRateCPerHour: -200.0, TargetTempC: 1100.0, HoldMinutes: 120},
			{ID: "3", Name: "Cool down", RampRateCPerHour: -150.0, TargetTempC: 800.0, HoldMinutes: 0},
		},
	},
}

// SeedDefaultProfiles installs DefaultProfiles into store if and only if it
// currently holds no profiles, mirroring the original firmware's
// load_default_profiles guard. A failure to save any single profile is
// logged by the caller and does not prevent the remaining profiles from
// being attempted.
func SeedDefaultProfiles(ctx context.Context, store Store) error {
	existing, err := store.ListProfiles(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	var firstErr error
	for _, p := range DefaultProfiles {
		if err := store.SaveProfile(ctx, p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
