// Package registry holds the cluster configuration: the organization's
// identity and key material references, the node set in slot order and the
// named collections with their schema identifiers.
//
// Slot order is part of the data model. Share i of every record is stored on
// the node at slot i, so the node list in a cluster config must never be
// reordered once data has been written.
package registry
