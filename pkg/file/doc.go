// SPDX-License-Identifier: BSD-3-Clause

// Package file provides atomic create/update primitives for the small set
// of persisted files the kiln core touches outside its persistence.Store
// port: the device's persistent id file. A crash mid-write must never
// leave a half-written file in place, so every write goes through a temp
// file and a rename.
package file
