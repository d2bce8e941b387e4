// Package transcript turns raw decoded text into a settled transcript.
// It removes text duplicated across overlapping audio windows, assembles
// fragments into finalized sentences, maintains the bounded session context
// log, and writes the optional transcript file.
package transcript
