// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"errors"
	"fmt"
)

// DefaultSessionID is the session identifier used by writers that do
// not distinguish between ADB server instances. Serial numbers are
// assumed unique across every ADB server the inventory deals with.
const DefaultSessionID = "<adblib-generic-session-id-v1>"

// DeviceID identifies one device. It is comparable and used as a map
// key by the device directory.
type DeviceID struct {
	SessionID    string `json:"session_id"`
	SerialNumber string `json:"serial_number"`
}

// NewDeviceID returns the DeviceID for serial under DefaultSessionID.
func NewDeviceID(serial string) DeviceID {
	return DeviceID{SessionID: DefaultSessionID, SerialNumber: serial}
}

// Validate reports an error if the serial number is missing.
func (d DeviceID) Validate() error {
	if d.SerialNumber == "" {
		return errors.New("device id: missing serial number")
	}
	return nil
}

func (d DeviceID) String() string {
	return fmt.Sprintf("%s/%s", d.SessionID, d.SerialNumber)
}
