// Package freeaccess is a concurrent memory-reclamation substrate for
// lock-free data structures: nodes are allocated through an Allocator
// instead of the host heap, and reclaimed only once a phased mark-and-
// sweep round has proven no goroutine can still observe them.
//
// A client data structure implements Node[T] on its node type's pointer
// receiver (enumerating outgoing edges) and Globals[T] on its entry
// point (enumerating global roots), then allocates nodes through
// Allocator.Allocate. See examples/linkedlist for a complete client.
package freeaccess
