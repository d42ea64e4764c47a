// Package authstate holds the canonical per-tab authentication state and
// the sequence-fenced reducer that is the only place it changes.
//
// Every tab folds the same server-issued events into its own State. The
// reducer discards any event whose seq is not greater than the last applied
// one, so duplicate or reordered delivery across the replication channel
// cannot move a tab backwards.
package authstate
