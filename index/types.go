package index

import (
	"errors"
	"sort"
)

// State is the lifecycle state of an index.
type State int32

const (
	// StateEmpty is a never-built index.
	StateEmpty State = iota
	// StateBuilding is a graph index during Build.
	StateBuilding
	// StateTraining is a cluster index during k-means training.
	StateTraining
	// StateReady accepts inserts, deletes, searches and vacuum.
	StateReady
	// StateClosed is an index after Close.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateTraining:
		return "training"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Result is a single search hit.
type Result struct {
	// ID is the host identifier passed to Insert.
	ID uint64

	// Distance is the distance between the query and the stored vector.
	Distance float64
}

// SearchStats describes the work done by one search.
type SearchStats struct {
	// DistanceComputations counts distance evaluations.
	DistanceComputations int

	// Visited counts graph nodes or list members examined.
	Visited int

	// Partial is set when the search stopped early because its deadline
	// or budget ran out. The results are the best found so far.
	Partial bool
}

// VacuumReport summarizes a vacuum pass. Failures never abort the pass.
type VacuumReport struct {
	// Reclaimed counts removed nodes (graph) or members (cluster).
	Reclaimed int

	// Repaired counts nodes whose neighbor lists were rebuilt, or lists that
	// were compacted.
	Repaired int

	// Failed counts nodes or lists whose reclaim failed; they stay pending.
	Failed int

	// Errors holds one entry per failure.
	Errors []error
}

// Err joins the recorded failures, or returns nil.
func (r VacuumReport) Err() error {
	return errors.Join(r.Errors...)
}

// SortResults orders results by distance, then by id.
func SortResults(res []Result) {
	sort.Slice(res, func(i, j int) bool {
		if res[i].Distance != res[j].Distance {
			return res[i].Distance < res[j].Distance
		}
		return res[i].ID < res[j].ID
	})
}
