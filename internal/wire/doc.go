// Package wire converts domain records to and from protobuf Struct values.
//
// The same representation travels over gRPC (binary protobuf), the push
// channel and the state file (protojson), so one codec per record type keeps
// every transport in agreement.
package wire
