// Package graph composes build tasks into a tree of sequential and parallel
// steps and runs it.
//
// The tree (Node) is immutable once built and can be run any number of
// times, concurrently if needed. Every Run gets its own execution state, so
// a watch-triggered rebuild never interferes with the state of another run
// of the same node.
package graph
