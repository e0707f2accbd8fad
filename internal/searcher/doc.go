// Package searcher implements the priority queues, visited sets and pooled
// scratch state used by graph and list scans.
//
// Queue order is deterministic: items compare by distance, then by their
// sequence number, so equal distances resolve to the older insertion.
package searcher
