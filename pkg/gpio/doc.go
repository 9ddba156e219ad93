// SPDX-License-Identifier: BSD-3-Clause

//go:build linux
// +build linux

// Package gpio provides a high-level abstraction for GPIO line access, used
// by the kiln core to drive the SSR control line, the vent/damper line, and
// the alarm indicator, and to read any digital safety interlocks.
//
// # Key Concepts
//
// GPIO Chip: the controller that owns a collection of GPIO lines, addressed
// as a character device (e.g. /dev/gpiochip0).
//
// GPIO Line: an individual pin on a chip, requested by name or offset and
// configured as input or output with optional bias and edge detection.
//
// # Basic Usage
//
//	ssrLine, err := gpio.Open("/dev/gpiochip0", "ssr-control",
//		gpio.AsOutputValue(0),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ssrLine.Close()
//
//	if err := ssrLine.SetValue(1); err != nil {
//		log.Fatal(err)
//	}
//
// # Blink Patterns
//
// AlarmHelper wraps the alarm and vent lines together so the safety monitor
// can sound the alarm and close the vent on emergency stop:
//
//	alarm := gpio.NewAlarmHelper(alarmLine, ventLine)
//	if err := alarm.Sound(); err != nil {
//		log.Printf("failed to sound alarm: %v", err)
//	}
//	alarm.CloseVent()
//
// # Event Monitoring
//
// Lines configured with edge detection deliver events on a channel:
//
//	doorSwitch, err := gpio.Open("/dev/gpiochip0", "door-interlock",
//		gpio.AsInput(),
//		gpio.WithEdge(gpio.EdgeBoth),
//	)
//	for event := range doorSwitch.Events() {
//		fmt.Printf("door interlock changed, rising=%v\n", event.Rising)
//	}
//
// # Error Handling
//
//	line, err := gpio.Open("/dev/gpiochip0", "non-existent-line")
//	if err != nil {
//		switch {
//		case errors.Is(err, gpio.ErrChipNotFound):
//			log.Fatal("GPIO chip not available")
//		case errors.Is(err, gpio.ErrLineNotFound):
//			log.Fatal("GPIO line not found")
//		}
//	}
//
// # Platform Considerations
//
// This package requires a Linux kernel with GPIO character device support
// (CONFIG_GPIO_CDEV) and is guarded by a linux build tag; non-Linux builds
// (e.g. for unit tests of higher-level packages) simply omit it.
package gpio
