// SPDX-License-Identifier: BSD-3-Clause

// Package mount sets up the pseudo-filesystems a bare-metal Linux target
// needs before any kiln service touches /sys or /dev: proc, sysfs, the
// cgroup/security/trace filesystems, and the device/tmp filesystems. It is
// idempotent and tolerant of mounts the init system already made.
package mount
