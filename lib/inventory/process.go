// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"bytes"
	"slices"
	"strings"
)

// ProcessInfo is the state of one debuggable process on a device.
type ProcessInfo struct {
	// PID identifies the process. Unique within a device at a point
	// in time.
	PID int32 `json:"pid"`

	// Completed is set once the writer has finished collecting the
	// process properties, successfully or not.
	Completed bool `json:"completed"`

	// CompletedError is the failure that ended property collection.
	CompletedError *RemoteError `json:"completed_error,omitempty"`

	ProcessName  *string `json:"process_name,omitempty"`
	PackageName  *string `json:"package_name,omitempty"`
	UserID       *int32  `json:"user_id,omitempty"`
	ABI          *string `json:"abi,omitempty"`
	VMIdentifier *string `json:"vm_identifier,omitempty"`
	JVMFlags     *string `json:"jvm_flags,omitempty"`

	NativeDebuggable *bool `json:"native_debuggable,omitempty"`

	// WaitPacketReceived reports whether the process announced that it
	// is waiting for a debugger to attach.
	WaitPacketReceived *bool `json:"wait_packet_received,omitempty"`

	Features *Features `json:"features,omitempty"`
}

// Features is the set of VM feature names reported by a process. It is
// a struct so that "no features reported" (nil *Features) and "reported
// an empty set" stay distinguishable.
type Features struct {
	Names []string `json:"names"`
}

// RemoteError is a serialized error chain produced on a writer and
// carried through the inventory unchanged.
type RemoteError struct {
	ClassName string       `json:"class_name"`
	Message   string       `json:"message"`
	Cause     *RemoteError `json:"cause,omitempty"`
}

func (e *RemoteError) Error() string {
	var builder strings.Builder
	for current := e; current != nil; current = current.Cause {
		if current != e {
			builder.WriteString(": caused by ")
		}
		builder.WriteString(current.ClassName)
		if current.Message != "" {
			builder.WriteString(": ")
			builder.WriteString(current.Message)
		}
	}
	return builder.String()
}

// Merge returns p updated with update. PID and Completed come from
// update; every optional attribute comes from update when present and
// from p otherwise.
func (p ProcessInfo) Merge(update ProcessInfo) ProcessInfo {
	return ProcessInfo{
		PID:                update.PID,
		Completed:          update.Completed,
		CompletedError:     takePresent(update.CompletedError, p.CompletedError),
		ProcessName:        takePresent(update.ProcessName, p.ProcessName),
		PackageName:        takePresent(update.PackageName, p.PackageName),
		UserID:             takePresent(update.UserID, p.UserID),
		ABI:                takePresent(update.ABI, p.ABI),
		VMIdentifier:       takePresent(update.VMIdentifier, p.VMIdentifier),
		JVMFlags:           takePresent(update.JVMFlags, p.JVMFlags),
		NativeDebuggable:   takePresent(update.NativeDebuggable, p.NativeDebuggable),
		WaitPacketReceived: takePresent(update.WaitPacketReceived, p.WaitPacketReceived),
		Features:           takePresent(update.Features, p.Features),
	}
}

// Equal reports full structural equality, comparing pointed-to values
// rather than pointers.
func (p ProcessInfo) Equal(other ProcessInfo) bool {
	return p.PID == other.PID &&
		p.Completed == other.Completed &&
		p.CompletedError.Equal(other.CompletedError) &&
		equalPresent(p.ProcessName, other.ProcessName) &&
		equalPresent(p.PackageName, other.PackageName) &&
		equalPresent(p.UserID, other.UserID) &&
		equalPresent(p.ABI, other.ABI) &&
		equalPresent(p.VMIdentifier, other.VMIdentifier) &&
		equalPresent(p.JVMFlags, other.JVMFlags) &&
		equalPresent(p.NativeDebuggable, other.NativeDebuggable) &&
		equalPresent(p.WaitPacketReceived, other.WaitPacketReceived) &&
		p.Features.Equal(other.Features)
}

// Equal compares two feature sets. Order matters: features are
// reported in a stable order by the VM.
func (f *Features) Equal(other *Features) bool {
	if f == nil || other == nil {
		return f == other
	}
	return slices.Equal(f.Names, other.Names)
}

// Equal compares two error chains link by link.
func (e *RemoteError) Equal(other *RemoteError) bool {
	for e != nil && other != nil {
		if e.ClassName != other.ClassName || e.Message != other.Message {
			return false
		}
		e, other = e.Cause, other.Cause
	}
	return e == nil && other == nil
}

// SocketAddress is a TCP endpoint. IPAddress holds the raw 4 or 16
// address bytes; Hostname is informational and never resolved.
type SocketAddress struct {
	Hostname  string `json:"hostname,omitempty"`
	IPAddress []byte `json:"ip_address"`
	TCPPort   int32  `json:"tcp_port"`
}

// Equal compares two addresses.
func (a *SocketAddress) Equal(other *SocketAddress) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Hostname == other.Hostname &&
		a.TCPPort == other.TCPPort &&
		bytes.Equal(a.IPAddress, other.IPAddress)
}

// ProxyInfo describes the debugger proxy attached to a process. It
// shares the PID namespace with ProcessInfo but is stored separately.
type ProxyInfo struct {
	PID int32 `json:"pid"`

	WaitingForDebugger *bool `json:"waiting_for_debugger,omitempty"`

	// SocketAddress is where an external debugger can connect to the
	// proxy.
	SocketAddress *SocketAddress `json:"socket_address,omitempty"`

	ExternalDebuggerAttached *bool `json:"external_debugger_attached,omitempty"`
}

// Merge returns p updated with update, following the same presence
// rule as ProcessInfo.Merge.
func (p ProxyInfo) Merge(update ProxyInfo) ProxyInfo {
	return ProxyInfo{
		PID:                      update.PID,
		WaitingForDebugger:       takePresent(update.WaitingForDebugger, p.WaitingForDebugger),
		SocketAddress:            takePresent(update.SocketAddress, p.SocketAddress),
		ExternalDebuggerAttached: takePresent(update.ExternalDebuggerAttached, p.ExternalDebuggerAttached),
	}
}

// Equal reports full structural equality.
func (p ProxyInfo) Equal(other ProxyInfo) bool {
	return p.PID == other.PID &&
		equalPresent(p.WaitingForDebugger, other.WaitingForDebugger) &&
		p.SocketAddress.Equal(other.SocketAddress) &&
		equalPresent(p.ExternalDebuggerAttached, other.ExternalDebuggerAttached)
}

func takePresent[T any](update, current *T) *T {
	if update != nil {
		return update
	}
	return current
}

func equalPresent[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
