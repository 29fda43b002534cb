// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package inventory

// Diff is the difference between two snapshots. Process and proxy
// records are compared independently. Every list is sorted by PID.
// Removed lists carry the last record known before removal.
type Diff struct {
	AddedProcesses   []ProcessInfo `json:"added_processes,omitempty"`
	UpdatedProcesses []ProcessInfo `json:"updated_processes,omitempty"`
	RemovedProcesses []ProcessInfo `json:"removed_processes,omitempty"`

	AddedProxies   []ProxyInfo `json:"added_proxies,omitempty"`
	UpdatedProxies []ProxyInfo `json:"updated_proxies,omitempty"`
	RemovedProxies []ProxyInfo `json:"removed_proxies,omitempty"`
}

// IsEmpty reports whether the diff describes no observable change.
func (d Diff) IsEmpty() bool {
	return len(d.AddedProcesses) == 0 &&
		len(d.UpdatedProcesses) == 0 &&
		len(d.RemovedProcesses) == 0 &&
		len(d.AddedProxies) == 0 &&
		len(d.UpdatedProxies) == 0 &&
		len(d.RemovedProxies) == 0
}

// ComputeDiff returns the changes leading from previous to current.
// A record is updated when its PID is in both snapshots and the records
// are not structurally equal.
func ComputeDiff(previous, current Snapshot) Diff {
	var diff Diff
	diff.AddedProcesses, diff.UpdatedProcesses, diff.RemovedProcesses =
		diffSorted(previous.processes, current.processes, processPID, ProcessInfo.Equal)
	diff.AddedProxies, diff.UpdatedProxies, diff.RemovedProxies =
		diffSorted(previous.proxies, current.proxies, proxyPID, ProxyInfo.Equal)
	return diff
}

// InitialDiff returns the diff announcing every record of snapshot as
// added. It is what a new subscriber receives first.
func InitialDiff(snapshot Snapshot) Diff {
	return ComputeDiff(Snapshot{}, snapshot)
}

func processPID(p ProcessInfo) int32 { return p.PID }

func proxyPID(p ProxyInfo) int32 { return p.PID }

// diffSorted walks two PID-sorted lists in lockstep.
func diffSorted[T any](previous, current []T, pid func(T) int32, equal func(T, T) bool) (added, updated, removed []T) {
	i, j := 0, 0
	for i < len(previous) || j < len(current) {
		switch {
		case j == len(current) || (i < len(previous) && pid(previous[i]) < pid(current[j])):
			removed = append(removed, previous[i])
			i++
		case i == len(previous) || pid(current[j]) < pid(previous[i]):
			added = append(added, current[j])
			j++
		default:
			if !equal(previous[i], current[j]) {
				updated = append(updated, current[j])
			}
			i++
			j++
		}
	}
	return added, updated, removed
}
