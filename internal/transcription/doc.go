// Package transcription dispatches audio segments to an inference engine.
// It defines the Engine interface, the bounded work queue with
// oldest-eviction, the single serialized inference worker, and an HTTP
// client implementation of Engine for remote inference servers.
package transcription
