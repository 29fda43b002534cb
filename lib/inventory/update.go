// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"errors"
	"fmt"
)

// ErrInvalidUpdate is wrapped by validation failures of update records.
var ErrInvalidUpdate = errors.New("invalid process update")

// Update is one record of an update batch. Exactly one field is set.
type Update struct {
	// TerminatedPID removes the process and its proxy record.
	TerminatedPID *int32 `json:"terminated_pid,omitempty"`

	// Process is merged into the stored process record.
	Process *ProcessInfo `json:"process,omitempty"`

	// Proxy is merged into the stored proxy record.
	Proxy *ProxyInfo `json:"proxy,omitempty"`
}

// Terminated returns an update removing pid.
func Terminated(pid int32) Update {
	return Update{TerminatedPID: &pid}
}

// ProcessUpdated returns an update merging info.
func ProcessUpdated(info ProcessInfo) Update {
	return Update{Process: &info}
}

// ProxyUpdated returns an update merging info.
func ProxyUpdated(info ProxyInfo) Update {
	return Update{Proxy: &info}
}

// Validate checks that exactly one payload is set.
func (u Update) Validate() error {
	count := 0
	if u.TerminatedPID != nil {
		count++
	}
	if u.Process != nil {
		count++
	}
	if u.Proxy != nil {
		count++
	}
	if count != 1 {
		return fmt.Errorf("%w: %d payloads set, want exactly one", ErrInvalidUpdate, count)
	}
	return nil
}

// ValidateBatch validates every record of batch.
func ValidateBatch(batch []Update) error {
	for index, update := range batch {
		if err := update.Validate(); err != nil {
			return fmt.Errorf("update %d: %w", index, err)
		}
	}
	return nil
}
