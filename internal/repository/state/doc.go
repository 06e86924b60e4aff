// Package state implements persistence for studio timer records.
//
// The FileRepository stores every studio's record in one JSON file and
// exposes a Repository interface that the server service depends on.
package state
