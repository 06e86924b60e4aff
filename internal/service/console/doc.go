// Package console runs an operator console for one studio.
//
// A producer console owns the studio's timer and signal records: every
// control is committed to the server and pushed to talent consoles. A talent
// console follows those records, keeps a local countdown between updates and
// recovers from a silent push channel by requesting a snapshot.
package console
