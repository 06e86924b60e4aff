// Package push is the best-effort publish/subscribe channel consoles use to
// fan out records per studio. Messages may be dropped or duplicated; callers
// reconcile through the durable store.
//
// Two implementations exist: MQTT over paho for deployments and an in-process
// Broker used by single-process setups and tests.
package push
