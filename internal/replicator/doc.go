// Package replicator keeps one writer console and any number of follower
// consoles agreeing on a per-studio record over two transports: a reliable
// commit/read store and a best-effort push channel.
//
// Writers commit the whole record, apply it locally even when the commit
// fails, and publish it. Followers accept pushed records newer than what
// they hold, reconcile against the store on an interval, count down locally
// for display, and request a fresh snapshot when a running record stops
// receiving updates.
package replicator
