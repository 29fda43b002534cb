// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/procinv/lib/config"
	"github.com/bureau-foundation/procinv/lib/inventory"
	"github.com/bureau-foundation/procinv/lib/process"
	"github.com/bureau-foundation/procinv/lib/service"
	"github.com/bureau-foundation/procinv/lib/testutil"
)

func startServer(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvConfig, "")
	os.Unsetenv(config.EnvConfig)

	server, err := service.NewServer(service.Config{
		ServerDescription: "cli-test-server",
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	instance, err := server.Listen(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(instance.Close)
	return instance.Addr().String()
}

func newTestApp(stdin string) (*app, *bytes.Buffer) {
	var stderr bytes.Buffer
	return &app{
		stdin:  strings.NewReader(stdin),
		stdout: io.Discard,
		stderr: &stderr,
	}, &stderr
}

func TestUpdateTrackTerminate(t *testing.T) {
	address := startServer(t)
	ctx := context.Background()

	updates := `{"process": {"pid": 7, "package_name": "com.example.app"}}
{"proxy": {"pid": 7, "waiting_for_debugger": true, "socket_address": {"ip_address": "fwAAAQ==", "tcp_port": 8700}}}
{"process": {"pid": 9}}
`
	updater, _ := newTestApp(updates)
	if err := updater.run(ctx, []string{"--address", address, "update", "emulator-5554"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	terminator, _ := newTestApp("")
	if err := terminator.run(ctx, []string{"--address", address, "terminate", "emulator-5554", "9"}); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	reader, writer := io.Pipe()
	tracker, _ := newTestApp("")
	tracker.stdout = writer
	trackContext, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- tracker.run(trackContext, []string{"--address", address, "track", "emulator-5554"})
		writer.Close()
	}()

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(reader)
		if scanner.Scan() {
			lines <- scanner.Text()
		}
		io.Copy(io.Discard, reader)
	}()

	line := testutil.RequireReceive(t, lines, 5*time.Second, "first diff line")
	var diff inventory.Diff
	if err := json.Unmarshal([]byte(line), &diff); err != nil {
		t.Fatalf("decoding diff line %q: %v", line, err)
	}
	if len(diff.AddedProcesses) != 1 || diff.AddedProcesses[0].PID != 7 {
		t.Errorf("added processes = %+v, want only pid 7", diff.AddedProcesses)
	}
	if got := diff.AddedProcesses[0].PackageName; got == nil || *got != "com.example.app" {
		t.Errorf("package name = %v, want com.example.app", got)
	}
	if len(diff.AddedProxies) != 1 || diff.AddedProxies[0].PID != 7 {
		t.Errorf("added proxies = %+v, want only pid 7", diff.AddedProxies)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "track stopped"); err != nil {
		t.Errorf("track: %v", err)
	}
}

func TestTrackSnapshotFollowsChanges(t *testing.T) {
	address := startServer(t)
	ctx := context.Background()

	updates := `{"process": {"pid": 7, "package_name": "com.example.app"}}
{"proxy": {"pid": 7, "waiting_for_debugger": true}}
{"process": {"pid": 9}}
`
	updater, _ := newTestApp(updates)
	if err := updater.run(ctx, []string{"--address", address, "update", "emulator-5554"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reader, writer := io.Pipe()
	tracker, _ := newTestApp("")
	tracker.stdout = writer
	trackContext, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- tracker.run(trackContext, []string{"--address", address, "track", "--snapshot", "emulator-5554"})
		writer.Close()
	}()

	lines := make(chan string, 8)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(reader)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	nextRecord := func(label string) snapshotRecord {
		t.Helper()
		line := testutil.RequireReceive(t, lines, 5*time.Second, label)
		var record snapshotRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decoding snapshot line %q: %v", line, err)
		}
		return record
	}
	processPIDs := func(record snapshotRecord) []int32 {
		var result []int32
		for _, process := range record.Processes {
			result = append(result, process.PID)
		}
		return result
	}

	initial := nextRecord("initial snapshot")
	if got := processPIDs(initial); len(got) != 2 || got[0] != 7 || got[1] != 9 {
		t.Errorf("initial processes = %v, want [7 9]", got)
	}
	if len(initial.Proxies) != 1 || initial.Proxies[0].PID != 7 {
		t.Errorf("initial proxies = %+v, want only pid 7", initial.Proxies)
	}

	terminator, _ := newTestApp("")
	if err := terminator.run(ctx, []string{"--address", address, "terminate", "emulator-5554", "9"}); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	after := nextRecord("snapshot after terminate")
	if got := processPIDs(after); len(got) != 1 || got[0] != 7 {
		t.Errorf("processes after terminate = %v, want [7]", got)
	}
	if got := after.Processes[0].PackageName; got == nil || *got != "com.example.app" {
		t.Errorf("package name = %v, want com.example.app", got)
	}
	if len(after.Proxies) != 1 || after.Proxies[0].PID != 7 {
		t.Errorf("proxies after terminate = %+v, want only pid 7", after.Proxies)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "track stopped"); err != nil {
		t.Errorf("track: %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	address := startServer(t)

	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr string
	}{
		{"no command", []string{}, "", "command required"},
		{"unknown command", []string{"list"}, "", `unknown command "list"`},
		{"missing serial", []string{"--address", address, "track"}, "", "expected exactly one serial number"},
		{"bad pid", []string{"--address", address, "terminate", "emulator-5554", "twelve"}, "", "invalid PID"},
		{"empty update", []string{"--address", address, "update", "emulator-5554"}, "", "no update records"},
		{"mixed update record", []string{"--address", address, "update", "emulator-5554"}, `{"terminated_pid": 3, "process": {"pid": 3}}`, "invalid process update"},
		{"unknown flag", []string{"--address", address, "track", "--bogus", "emulator-5554"}, "", "unknown flag"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			app, _ := newTestApp(test.stdin)
			err := app.run(context.Background(), test.args)
			if err == nil {
				t.Fatalf("expected error containing %q", test.wantErr)
			}
			if !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("expected error containing %q, got %v", test.wantErr, err)
			}
			if code := process.ExitCode(err); code != 2 {
				t.Errorf("exit code = %d, want 2", code)
			}
		})
	}
}

func TestUpdateRejectsMalformedJSON(t *testing.T) {
	address := startServer(t)

	app, _ := newTestApp(`{"process": {"pid": "seven"}}`)
	err := app.run(context.Background(), []string{"--address", address, "update", "emulator-5554"})
	if err == nil {
		t.Fatal("expected malformed record to be rejected")
	}
	if !strings.Contains(err.Error(), "reading update record 1") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHelp(t *testing.T) {
	app, stderr := newTestApp("")
	if err := app.run(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("--help: %v", err)
	}
	for _, name := range []string{"track", "update", "terminate", "--address"} {
		if !strings.Contains(stderr.String(), name) {
			t.Errorf("help output missing %q:\n%s", name, stderr.String())
		}
	}
}
