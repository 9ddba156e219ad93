// SPDX-License-Identifier: BSD-3-Clause

// Command kilnctl runs the kiln control core: sensor reading, safety
// auditing, and firing orchestration supervised as a single process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/kilnctl/kilnctl/pkg/gpio"
	"github.com/kilnctl/kilnctl/pkg/persistence"
	"github.com/kilnctl/kilnctl/pkg/ssrmod"
	"github.com/kilnctl/kilnctl/pkg/thermocouple"
	"github.com/kilnctl/kilnctl/service/firingengine"
	"github.com/kilnctl/kilnctl/service/operator"
	"github.com/kilnctl/kilnctl/service/safetymon"
	"github.com/kilnctl/kilnctl/service/sensorreader"
)

func main() {
	// Kiln controllers typically run on small single-board computers;
	// keep the same headroom discipline the BMC targets use.
	debug.SetMemoryLimit(128 * 1024 * 1024)

	var (
		gpioChip    = flag.String("gpio-chip", "/dev/gpiochip0", "GPIO chip device for the SSR and alarm/vent lines")
		ssrLine     = flag.String("ssr-line", "KILN_SSR", "GPIO line name driving the SSR")
		alarmLine   = flag.String("alarm-line", "KILN_ALARM", "GPIO line name driving the audible alarm")
		ventLine    = flag.String("vent-line", "KILN_VENT", "GPIO line name driving the vent damper")
		spiBus      = flag.String("spi-bus", "/dev/spidev0.0", "SPI bus for the MAX31855 thermocouple amplifier")
		maxSafeTemp = flag.Float64("max-safe-temp-c", safetymon.DefaultMaxSafeTempC, "factory-default user temperature ceiling")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ssrGPIO, err := gpio.Open(*gpioChip, *ssrLine, gpio.AsOutputValue(0))
	if err != nil {
		slog.Error("Failed to open SSR GPIO line", "error", err)
		panic(err)
	}
	defer ssrGPIO.Close()

	alarmGPIO, err := gpio.Open(*gpioChip, *alarmLine, gpio.AsOutputValue(0))
	if err != nil {
		slog.Error("Failed to open alarm GPIO line", "error", err)
		panic(err)
	}
	defer alarmGPIO.Close()

	ventGPIO, err := gpio.Open(*gpioChip, *ventLine, gpio.AsOutputValue(0))
	if err != nil {
		slog.Error("Failed to open vent GPIO line", "error", err)
		panic(err)
	}
	defer ventGPIO.Close()

	spi, err := thermocouple.OpenSPI(*spiBus)
	if err != nil {
		slog.Error("Failed to open thermocouple SPI bus", "error", err)
		panic(err)
	}
	defer spi.Close()

	// Shared hardware: a single Modulator and AlarmHelper are handed to
	// both the safety monitor and the firing engine, since forcing the
	// SSR off or sounding the alarm on an emergency cannot wait for a
	// NATS round trip.
	modulator := ssrmod.New(ssrGPIO)
	alarm := gpio.NewAlarmHelper(alarmGPIO, ventGPIO)

	store := persistence.NewMemoryStore()

	sm := safetymon.New(
		safetymon.WithMaxSafeTemp(*maxSafeTemp),
		safetymon.WithModulator(modulator),
		safetymon.WithAlarmVent(alarm),
	)

	op := operator.New(
		operator.WithName("kilnctl"),
		operator.WithTimeout(15*time.Second),
		operator.WithSensorReader(sensorreader.WithSource(spi)),
		operator.WithSafetyMonitor(sm),
		operator.WithFiringEngine(
			firingengine.WithStore(store),
			firingengine.WithModulator(modulator),
			firingengine.WithAlarmVent(alarm),
			firingengine.WithSafetySource(sm),
			firingengine.WithSafetyTrigger(sm),
			firingengine.WithHardwareMaxTemp(safetymon.DefaultHardwareMaxTempC),
		),
	)

	if err := op.Run(ctx, nil); err != nil {
		slog.Error("Operator exited with error", "error", err)
		panic(err)
	}
}
