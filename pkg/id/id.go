// SPDX-License-Identifier: BSD-3-Clause

// Package id generates the device identifier the operator logs and
// advertises over IPC on startup: a random id per process, or a
// persistent one that survives restarts, stored as a single atomically
// written file.
package id

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/kilnctl/kilnctl/pkg/file"
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.New().String()
}

// GetOrCreatePersistentID reads the UUID stored at path/name, creating it
// with a freshly generated UUID if the file does not yet exist. Concurrent
// callers racing to create the file converge on whichever one wins the
// atomic create.
func GetOrCreatePersistentID(name, path string) (string, error) {
	fullPath := filepath.Join(path, name)

	if _, err := os.Stat(fullPath); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %w", ErrFileStat, err)
		}

		if err := os.MkdirAll(path, 0o700); err != nil {
			return "", fmt.Errorf("%w: %w", ErrDirectoryCreation, err)
		}

		newID := uuid.New()
		if err := file.AtomicCreateFile(fullPath, []byte(newID.String()), 0o600); err != nil {
			if !errors.Is(err, file.ErrFileAlreadyExists) {
				return "", fmt.Errorf("%w: %w", ErrFileCreation, err)
			}
			// Another process won the race; fall through to read it back.
		} else {
			return newID.String(), nil
		}
	}

	b, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFileRead, err)
	}

	parsed, err := uuid.ParseBytes(bytes.TrimSpace(b))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidUUID, err)
	}
	return parsed.String(), nil
}
