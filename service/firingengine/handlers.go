// SPDX-License-Identifier: BSD-3-Clause

package firingengine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/micro"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kilnctl/kilnctl/pkg/ipc"
	"github.com/kilnctl/kilnctl/pkg/kiln"
	"github.com/kilnctl/kilnctl/pkg/telemetry"
)

// StartRequest carries the profile to run and an optional delayed start.
type StartRequest struct {
	Profile      kiln.FiringProfile `json:"profile"`
	DelayMinutes int                `json:"delay_minutes"`
}

// AutoTuneStartRequest carries the relay-method tuner's target setpoint and
// hysteresis band.
type AutoTuneStartRequest struct {
	SetpointC   float64 `json:"setpoint_c"`
	HysteresisC float64 `json:"hysteresis_c"`
}

// ackResponse is the body of every command endpoint that has nothing more
// to say than "accepted".
type ackResponse struct {
	Accepted bool `json:"accepted"`
}

// setMaxTempRequest mirrors safetymon.SetMaxTempRequest's wire shape. It is
// defined locally rather than imported to keep the two services coupled
// only through the subjects in pkg/ipc, not through each other's packages.
type setMaxTempRequest struct {
	MaxSafeTempC float64 `json:"max_safe_temp_c"`
}

func (e *Engine) registerEndpoints(ctx context.Context) error {
	groups := make(map[string]micro.Group)

	endpoints := []struct {
		subject string
		handler func(context.Context, micro.Request)
	}{
		{ipc.SubjectFiringStart, e.handleStart},
		{ipc.SubjectFiringStop, e.handleStop},
		{ipc.SubjectFiringPause, e.handlePause},
		{ipc.SubjectFiringResume, e.handleResume},
		{ipc.SubjectFiringSkip, e.handleSkip},
		{ipc.SubjectFiringProgress, e.handleProgress},
		{ipc.SubjectFiringSettingsGet, e.handleSettingsGet},
		{ipc.SubjectFiringSettingsSet, e.handleSettingsSet},
		{ipc.SubjectAutotuneStart, e.handleAutoTuneStart},
		{ipc.SubjectAutotuneStop, e.handleAutoTuneStop},
	}

	for _, ep := range endpoints {
		if err := ipc.RegisterEndpointWithGroupCache(e.microService, ep.subject,
			micro.HandlerFunc(e.createRequestHandler(ctx, ep.handler)), groups); err != nil {
			return fmt.Errorf("%w: %w", ErrEndpointRegistrationFailed, err)
		}
	}
	return nil
}

func (e *Engine) createRequestHandler(parentCtx context.Context, handler func(context.Context, micro.Request)) micro.HandlerFunc {
	return func(req micro.Request) {
		ctx := telemetry.GetCtxFromReq(req)
		ctx = context.WithoutCancel(ctx)

		if e.tracer != nil {
			_, span := e.tracer.Start(ctx, "firingengine.handleRequest")
			span.SetAttributes(
				attribute.String("subject", req.Subject()),
				attribute.String("service", e.config.serviceName),
			)
			defer span.End()
		}

		handler(ctx, req) //nolint:contextcheck
	}
}

func (e *Engine) respondJSON(ctx context.Context, req micro.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to marshal response", "error", err)
		_ = req.Error("500", "failed to marshal response", nil)
		return
	}
	if err := req.Respond(data); err != nil {
		e.logger.ErrorContext(ctx, "Failed to send response", "error", err)
	}
}

func (e *Engine) handleStart(ctx context.Context, req micro.Request) {
	var reqBody StartRequest
	if err := json.Unmarshal(req.Data(), &reqBody); err != nil {
		_ = req.Error("400", "invalid start request", nil)
		return
	}
	cmd := kiln.FiringCommand{Kind: kiln.CmdStart, Profile: &reqBody.Profile, DelayMin: reqBody.DelayMinutes}
	if err := e.enqueue(cmd); err != nil {
		_ = req.Error("503", err.Error(), nil)
		return
	}
	e.respondJSON(ctx, req, ackResponse{Accepted: true})
}

func (e *Engine) handleStop(ctx context.Context, req micro.Request) {
	e.respondCommand(ctx, req, kiln.FiringCommand{Kind: kiln.CmdStop})
}

func (e *Engine) handlePause(ctx context.Context, req micro.Request) {
	e.respondCommand(ctx, req, kiln.FiringCommand{Kind: kiln.CmdPause})
}

func (e *Engine) handleResume(ctx context.Context, req micro.Request) {
	e.respondCommand(ctx, req, kiln.FiringCommand{Kind: kiln.CmdResume})
}

func (e *Engine) handleSkip(ctx context.Context, req micro.Request) {
	e.respondCommand(ctx, req, kiln.FiringCommand{Kind: kiln.CmdSkipSegment})
}

func (e *Engine) handleAutoTuneStop(ctx context.Context, req micro.Request) {
	e.respondCommand(ctx, req, kiln.FiringCommand{Kind: kiln.CmdAutoTuneStop})
}

func (e *Engine) respondCommand(ctx context.Context, req micro.Request, cmd kiln.FiringCommand) {
	if err := e.enqueue(cmd); err != nil {
		_ = req.Error("503", err.Error(), nil)
		return
	}
	e.respondJSON(ctx, req, ackResponse{Accepted: true})
}

func (e *Engine) handleAutoTuneStart(ctx context.Context, req micro.Request) {
	var reqBody AutoTuneStartRequest
	if err := json.Unmarshal(req.Data(), &reqBody); err != nil {
		_ = req.Error("400", "invalid auto-tune start request", nil)
		return
	}
	cmd := kiln.FiringCommand{
		Kind:                kiln.CmdAutoTuneStart,
		AutoTuneSetpointC:   reqBody.SetpointC,
		AutoTuneHysteresisC: reqBody.HysteresisC,
	}
	e.respondCommand(ctx, req, cmd)
}

func (e *Engine) handleProgress(ctx context.Context, req micro.Request) {
	e.mu.Lock()
	progress := e.progress
	e.mu.Unlock()
	e.respondJSON(ctx, req, progress)
}

func (e *Engine) handleSettingsGet(ctx context.Context, req micro.Request) {
	e.mu.Lock()
	settings := e.settings
	e.mu.Unlock()
	e.respondJSON(ctx, req, settings)
}

func (e *Engine) handleSettingsSet(ctx context.Context, req micro.Request) {
	var settings kiln.KilnSettings
	if err := json.Unmarshal(req.Data(), &settings); err != nil {
		_ = req.Error("400", "invalid settings", nil)
		return
	}
	if settings.Unit != kiln.UnitCelsius && settings.Unit != kiln.UnitFahrenheit {
		e.logger.WarnContext(ctx, "Settings update rejected", "error", kiln.ErrInvalidUnit)
		_ = req.Error("400", kiln.ErrInvalidUnit.Error(), nil)
		return
	}
	settings = settings.Clamp(e.config.hardwareMaxTempC)

	if err := e.config.store.SaveSettings(ctx, settings); err != nil {
		e.logger.ErrorContext(ctx, "Failed to persist settings", "error", err)
		_ = req.Error("500", "failed to persist settings", nil)
		return
	}

	e.mu.Lock()
	e.settings = settings
	e.mu.Unlock()

	if e.nc != nil {
		payload, err := json.Marshal(setMaxTempRequest{MaxSafeTempC: settings.MaxSafeTempC})
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to marshal max-temp write-through", "error", err)
		} else if _, err := e.nc.RequestWithContext(ctx, ipc.SubjectSafetyMaxTemp, payload); err != nil {
			e.logger.WarnContext(ctx, "Failed to write through max safe temp to safety monitor", "error", err)
		}
	}

	e.respondJSON(ctx, req, settings)
}
