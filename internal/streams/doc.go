// Package streams builds the reactive plumbing used by backends and the registry out of channels.
//
// Every stream is a receive-only channel owned by a goroutine that exits, and closes the channel,
// when its context is cancelled. Consumers stop a stream by cancelling the context they passed in.
//
// # Building blocks
//
//   - [Just] and [Once] emit a single value.
//   - [Watch] re-evaluates a function every time a [Signal] fires.
//   - [State] publishes a value atomically and lets readers watch it.
//   - [SwitchMap] maps each upstream value to an inner stream, cancelling the previous one.
//   - [Map] and [Distinct] transform and de-duplicate a stream.
package streams
