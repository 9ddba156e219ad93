// SPDX-License-Identifier: BSD-3-Clause

package firingengine

import (
	"context"
	"time"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

// enqueue submits cmd for the engine's next tick. It never blocks longer
// than the configured enqueue timeout (100ms by default); a caller racing
// a full queue gets ErrCommandQueueFull rather than an indefinite wait.
func (e *Engine) enqueue(cmd kiln.FiringCommand) error {
	select {
	case e.cmdCh <- cmd:
		return nil
	case <-time.After(e.config.enqueueTimeout):
		return ErrCommandQueueFull
	}
}

// drainCommands applies every command queued since the previous tick, in
// order, before the tick's control computation runs.
func (e *Engine) drainCommands(ctx context.Context, now time.Time) {
	for {
		select {
		case cmd := <-e.cmdCh:
			e.applyCommand(ctx, cmd, now)
		default:
			return
		}
	}
}

func (e *Engine) applyCommand(ctx context.Context, cmd kiln.FiringCommand, now time.Time) {
	switch cmd.Kind {
	case kiln.CmdStart:
		e.applyStart(ctx, cmd, now)
	case kiln.CmdStop:
		e.applyStop(ctx, now)
	case kiln.CmdPause:
		e.applyPause(ctx, now)
	case kiln.CmdResume:
		e.applyResume(ctx)
	case kiln.CmdSkipSegment:
		e.applySkipSegment(ctx, now)
	case kiln.CmdAutoTuneStart:
		e.applyAutoTuneStart(ctx, cmd, now)
	case kiln.CmdAutoTuneStop:
		e.applyAutoTuneStop(ctx, now)
	}
}

func (e *Engine) isActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Active
}

func (e *Engine) status() kiln.FiringStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Status
}

func (e *Engine) applyStart(ctx context.Context, cmd kiln.FiringCommand, now time.Time) {
	if e.isActive() || e.delayActive {
		e.logger.WarnContext(ctx, "Start requested while already active, ignoring", "error", ErrAlreadyActive)
		return
	}
	if cmd.Profile == nil {
		e.logger.WarnContext(ctx, "Start requested with no profile, ignoring", "error", ErrNoProfile)
		return
	}
	if err := cmd.Profile.Validate(); err != nil {
		e.logger.WarnContext(ctx, "Start requested with invalid profile, ignoring", "error", err)
		return
	}

	if cmd.DelayMin <= 0 {
		e.beginSegmentZero(ctx, cmd.Profile, now)
		return
	}

	e.profile = cmd.Profile
	e.delayActive = true
	e.delayDeadline = now.Add(time.Duration(cmd.DelayMin) * time.Minute)

	e.mu.Lock()
	e.progress = kiln.FiringProgress{
		Active:       true,
		ProfileID:    cmd.Profile.ID,
		SegmentCount: len(cmd.Profile.Segments),
		Status:       kiln.StatusIdle,
	}
	e.mu.Unlock()
}

func (e *Engine) applyStop(ctx context.Context, now time.Time) {
	if e.isActive() {
		dur := now.Sub(e.recordStartTime)
		if err := e.history.FinishRecord(ctx, e.recordID, kiln.OutcomeAborted, kiln.ErrorNone, e.peakTempC, dur); err != nil {
			e.logger.WarnContext(ctx, "Failed to finish history record on stop", "error", err)
		}
	}
	if err := e.config.modulator.SetDuty(0, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to set SSR duty to 0 on stop", "error", err)
	}
	e.delayActive = false
	e.pid.Reset()

	e.mu.Lock()
	e.progress.Active = false
	e.progress.Status = kiln.StatusIdle
	e.mu.Unlock()
	_ = e.fsm.Stop(ctx)
}

func (e *Engine) applyPause(ctx context.Context, now time.Time) {
	if !e.isActive() || e.delayActive {
		e.logger.WarnContext(ctx, "Pause requested while not active, ignoring", "error", ErrNotActive)
		return
	}
	if err := e.fsm.Pause(ctx); err != nil {
		e.logger.WarnContext(ctx, "Pause rejected by status machine", "error", err)
		return
	}
	if err := e.config.modulator.SetDuty(0, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to set SSR duty to 0 on pause", "error", err)
	}
	e.mu.Lock()
	e.progress.Status = kiln.StatusPaused
	e.mu.Unlock()
}

func (e *Engine) applyResume(ctx context.Context) {
	if e.status() != kiln.StatusPaused {
		e.logger.WarnContext(ctx, "Resume requested while not paused, ignoring", "error", ErrNotPaused)
		return
	}
	var status kiln.FiringStatus
	if e.holding {
		if err := e.fsm.ResumeHolding(ctx); err != nil {
			e.logger.WarnContext(ctx, "Resume-to-holding rejected by status machine", "error", err)
			return
		}
		status = kiln.StatusHolding
	} else {
		if err := e.fsm.ResumeHeating(ctx); err != nil {
			e.logger.WarnContext(ctx, "Resume-to-heating rejected by status machine", "error", err)
			return
		}
		status = kiln.StatusHeating
	}
	e.mu.Lock()
	e.progress.Status = status
	e.mu.Unlock()
}

func (e *Engine) applySkipSegment(ctx context.Context, now time.Time) {
	if !e.isActive() || e.delayActive || e.profile == nil {
		e.logger.WarnContext(ctx, "SkipSegment requested while not active, ignoring", "error", ErrNotActive)
		return
	}
	reading := e.sampleTemperature(ctx)
	nextIdx := e.segmentIndex + 1
	if nextIdx < len(e.profile.Segments) {
		e.advanceSegment(ctx, nextIdx, reading.TempC, now)
		return
	}
	e.completeFiring(ctx, now)
}

func (e *Engine) applyAutoTuneStart(ctx context.Context, cmd kiln.FiringCommand, now time.Time) {
	if e.isActive() || e.delayActive {
		e.logger.WarnContext(ctx, "AutoTuneStart requested while a firing is active, ignoring", "error", ErrTuneInProgress)
		return
	}
	if err := e.tuner.Start(cmd.AutoTuneSetpointC, cmd.AutoTuneHysteresisC, now); err != nil {
		e.logger.WarnContext(ctx, "AutoTuneStart rejected", "error", err)
		return
	}
	if err := e.fsm.AutoTuneStart(ctx); err != nil {
		e.logger.WarnContext(ctx, "AutoTuneStart rejected by status machine", "error", err)
		return
	}
	e.mu.Lock()
	e.progress = kiln.FiringProgress{Active: true, Status: kiln.StatusAutoTune}
	e.mu.Unlock()
}

func (e *Engine) applyAutoTuneStop(ctx context.Context, now time.Time) {
	if e.status() != kiln.StatusAutoTune {
		return
	}
	e.tuner.Stop()
	if err := e.config.modulator.SetDuty(0, now); err != nil {
		e.logger.ErrorContext(ctx, "Failed to set SSR duty to 0 on auto-tune stop", "error", err)
	}
	e.mu.Lock()
	e.progress.Active = false
	e.progress.Status = kiln.StatusIdle
	e.mu.Unlock()
	_ = e.fsm.AutoTuneDone(ctx)
}
