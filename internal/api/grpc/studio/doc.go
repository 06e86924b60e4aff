// Package studio exposes the studio-server gRPC API: timer and signal
// commit/read endpoints and the call-control surface.
//
// Messages are google.protobuf.Struct values carried by the default proto
// codec, so the service is described by a hand-written grpc.ServiceDesc.
package studio
