// Package callline implements the phone-line lifecycle of a studio.
//
// A Board owns the fixed pool of lines of one studio. Every transition runs
// under the board mutex, so at most one line per studio is ever on air, and
// readers get an immutable snapshot without taking the lock.
package callline
