// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

import (
	"cmp"
	"maps"
	"slices"
)

// Snapshot is the immutable state of one device: its process records
// and proxy records, each sorted by PID with at most one entry per PID.
// The zero value is the empty snapshot.
type Snapshot struct {
	processes []ProcessInfo
	proxies   []ProxyInfo
}

// NewSnapshot builds a snapshot from unsorted records. When a PID
// appears more than once the last record wins.
func NewSnapshot(processes []ProcessInfo, proxies []ProxyInfo) Snapshot {
	processMap := make(map[int32]ProcessInfo, len(processes))
	for _, process := range processes {
		processMap[process.PID] = process
	}
	proxyMap := make(map[int32]ProxyInfo, len(proxies))
	for _, proxy := range proxies {
		proxyMap[proxy.PID] = proxy
	}
	return snapshotFromMaps(processMap, proxyMap)
}

// Processes returns a copy of the process records, sorted by PID.
func (s Snapshot) Processes() []ProcessInfo {
	return slices.Clone(s.processes)
}

// Proxies returns a copy of the proxy records, sorted by PID.
func (s Snapshot) Proxies() []ProxyInfo {
	return slices.Clone(s.proxies)
}

// Process returns the process record for pid.
func (s Snapshot) Process(pid int32) (ProcessInfo, bool) {
	index, found := slices.BinarySearchFunc(s.processes, pid, func(p ProcessInfo, target int32) int {
		return cmp.Compare(p.PID, target)
	})
	if !found {
		return ProcessInfo{}, false
	}
	return s.processes[index], true
}

// IsEmpty reports whether the snapshot has no records at all.
func (s Snapshot) IsEmpty() bool {
	return len(s.processes) == 0 && len(s.proxies) == 0
}

// Equal reports whether both snapshots hold structurally equal records.
func (s Snapshot) Equal(other Snapshot) bool {
	return slices.EqualFunc(s.processes, other.processes, ProcessInfo.Equal) &&
		slices.EqualFunc(s.proxies, other.proxies, ProxyInfo.Equal)
}

// Apply returns the snapshot obtained by applying batch in order:
// a terminated PID is removed from both record sets, process and proxy
// updates are merged into the existing record for their PID (or
// inserted). Later records for the same PID override earlier ones.
func (s Snapshot) Apply(batch []Update) Snapshot {
	processes := s.processMap()
	proxies := s.proxyMap()

	for _, update := range batch {
		switch {
		case update.TerminatedPID != nil:
			delete(processes, *update.TerminatedPID)
			delete(proxies, *update.TerminatedPID)
		case update.Process != nil:
			pid := update.Process.PID
			processes[pid] = processes[pid].Merge(*update.Process)
		case update.Proxy != nil:
			pid := update.Proxy.PID
			proxies[pid] = proxies[pid].Merge(*update.Proxy)
		}
	}

	return snapshotFromMaps(processes, proxies)
}

// ApplyDiff returns the snapshot obtained by replaying diff on s.
// Added and updated records replace stored ones wholesale. Replaying
// ComputeDiff(a, b) on a yields b.
func (s Snapshot) ApplyDiff(diff Diff) Snapshot {
	processes := s.processMap()
	proxies := s.proxyMap()

	for _, removed := range diff.RemovedProcesses {
		delete(processes, removed.PID)
	}
	for _, process := range slices.Concat(diff.AddedProcesses, diff.UpdatedProcesses) {
		processes[process.PID] = process
	}
	for _, removed := range diff.RemovedProxies {
		delete(proxies, removed.PID)
	}
	for _, proxy := range slices.Concat(diff.AddedProxies, diff.UpdatedProxies) {
		proxies[proxy.PID] = proxy
	}

	return snapshotFromMaps(processes, proxies)
}

func (s Snapshot) processMap() map[int32]ProcessInfo {
	processes := make(map[int32]ProcessInfo, len(s.processes))
	for _, process := range s.processes {
		processes[process.PID] = process
	}
	return processes
}

func (s Snapshot) proxyMap() map[int32]ProxyInfo {
	proxies := make(map[int32]ProxyInfo, len(s.proxies))
	for _, proxy := range s.proxies {
		proxies[proxy.PID] = proxy
	}
	return proxies
}

func snapshotFromMaps(processes map[int32]ProcessInfo, proxies map[int32]ProxyInfo) Snapshot {
	return Snapshot{
		processes: sortedByPID(processes),
		proxies:   sortedByPID(proxies),
	}
}

func sortedByPID[T any](records map[int32]T) []T {
	if len(records) == 0 {
		return nil
	}
	pids := slices.Sorted(maps.Keys(records))
	sorted := make([]T, 0, len(pids))
	for _, pid := range pids {
		sorted = append(sorted, records[pid])
	}
	return sorted
}
