// Package ffprobe inspects media containers through the ffprobe binary.
//
// Capture clients use it to read the duration of a picked file before
// validation, and the server optionally uses it to re-derive the duration of
// finalized uploads.
package ffprobe
