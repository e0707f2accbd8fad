package vecindex

import "github.com/hupe1980/vecindex/index"

type (
	// State is the lifecycle state of an Index.
	State = index.State

	// Result is one search hit.
	Result = index.Result

	// SearchStats describes the work done by one search.
	SearchStats = index.SearchStats

	// VacuumReport summarizes a vacuum pass.
	VacuumReport = index.VacuumReport
)

const (
	StateEmpty    = index.StateEmpty
	StateBuilding = index.StateBuilding
	StateTraining = index.StateTraining
	StateReady    = index.StateReady
	StateClosed   = index.StateClosed
)

// BulkFailure records a vector that BulkInsert rejected.
type BulkFailure struct {
	ID  uint64
	Err error
}

// BulkResult summarizes a BulkInsert.
type BulkResult struct {
	Inserted int
	Failures []BulkFailure
}

// LevelStats describes one graph layer.
type LevelStats struct {
	Level       int
	Nodes       int
	Connections int
}

// GraphStats describes an HNSW index.
type GraphStats struct {
	Nodes int
	// Pending counts deleted nodes not yet reclaimed by Vacuum.
	Pending  int
	MaxLayer int
	// EntryPoint is the id of the entry node; valid if HasEntry.
	EntryPoint uint64
	HasEntry   bool
	Levels     []LevelStats
	// Readers is the number of searches in flight.
	Readers int
}

// ListStats describes one inverted list.
type ListStats struct {
	List       int
	Members    int
	Tombstones int
	Pages      int
}

// ClusterStats describes an IVFFlat index.
type ClusterStats struct {
	Lists []ListStats
}

// StorageStats describes the page store.
type StorageStats struct {
	PageSize    int
	Pages       uint32
	FreePages   uint64
	CacheBytes  int64
	CacheHits   int64
	CacheMisses int64
}

// Stats is a snapshot of an Index.
type Stats struct {
	Params  Params
	State   State
	Len     int
	Graph   *GraphStats
	Cluster *ClusterStats
	Storage StorageStats
}
