// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/procinv/lib/inventory"
)

// deviceFlags binds --session for commands that take a serial number.
type deviceFlags struct {
	session string
}

func (d *deviceFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&d.session, "session", inventory.DefaultSessionID, "ADB session the serial number belongs to")
}

func (d *deviceFlags) device(serial string) (inventory.DeviceID, error) {
	device := inventory.DeviceID{SessionID: d.session, SerialNumber: serial}
	if err := device.Validate(); err != nil {
		return inventory.DeviceID{}, usageError("%v", err)
	}
	return device, nil
}

func (a *app) trackCommand() *command {
	var flags deviceFlags
	var snapshot bool
	return &command{
		name:    "track",
		summary: "Print the inventory of a device and every change to it as JSON lines",
		usage:   binaryName + " track [--session ID] [--snapshot] <serial>",
		flags: func(flagSet *pflag.FlagSet) {
			flags.register(flagSet)
			flagSet.BoolVar(&snapshot, "snapshot", false, "print the whole inventory after each change instead of the diff")
		},
		run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return usageError("track: expected exactly one serial number")
			}
			device, err := flags.device(args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(a.stdout)
			if !snapshot {
				return a.client.TrackDevice(ctx, device, func(diff inventory.Diff) error {
					return encoder.Encode(diff)
				})
			}
			var current inventory.Snapshot
			return a.client.TrackDevice(ctx, device, func(diff inventory.Diff) error {
				current = current.ApplyDiff(diff)
				return encoder.Encode(snapshotRecord{
					Processes: current.Processes(),
					Proxies:   current.Proxies(),
				})
			})
		},
	}
}

// snapshotRecord is the JSON form of a snapshot printed by track.
type snapshotRecord struct {
	Processes []inventory.ProcessInfo `json:"processes"`
	Proxies   []inventory.ProxyInfo   `json:"proxies"`
}

func (a *app) updateCommand() *command {
	var flags deviceFlags
	var file string
	return &command{
		name:    "update",
		summary: "Apply a batch of JSON update records to the inventory of a device",
		usage:   binaryName + " update [--session ID] [--file PATH] <serial>",
		flags: func(flagSet *pflag.FlagSet) {
			flags.register(flagSet)
			flagSet.StringVar(&file, "file", "-", "file of JSON update records, - for stdin")
		},
		run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return usageError("update: expected exactly one serial number")
			}
			device, err := flags.device(args[0])
			if err != nil {
				return err
			}

			input := a.stdin
			if file != "-" {
				opened, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("opening update file: %w", err)
				}
				defer opened.Close()
				input = opened
			}
			updates, err := readUpdates(input)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				return usageError("update: no update records in input")
			}
			if err := inventory.ValidateBatch(updates); err != nil {
				return usageError("update: %v", err)
			}
			return a.client.UpdateDevice(ctx, device, updates)
		},
	}
}

func (a *app) terminateCommand() *command {
	var flags deviceFlags
	return &command{
		name:    "terminate",
		summary: "Remove the process and proxy records of a PID",
		usage:   binaryName + " terminate [--session ID] <serial> <pid>",
		flags:   flags.register,
		run: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return usageError("terminate: expected a serial number and a PID")
			}
			device, err := flags.device(args[0])
			if err != nil {
				return err
			}
			pid, err := strconv.ParseInt(args[1], 10, 32)
			if err != nil {
				return usageError("terminate: invalid PID %q: %v", args[1], err)
			}
			return a.client.SendProcessRemoval(ctx, device, int32(pid))
		},
	}
}

// readUpdates decodes a sequence of JSON update records. Records may
// be separated by any whitespace, so both JSON lines and
// pretty-printed input work.
func readUpdates(input io.Reader) ([]inventory.Update, error) {
	decoder := json.NewDecoder(input)
	decoder.DisallowUnknownFields()
	var updates []inventory.Update
	for {
		var update inventory.Update
		err := decoder.Decode(&update)
		if errors.Is(err, io.EOF) {
			return updates, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading update record %d: %w", len(updates)+1, err)
		}
		updates = append(updates, update)
	}
}
