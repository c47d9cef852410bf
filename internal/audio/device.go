package audio

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable means microphone access was refused or no capture
// device exists.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Device is the microphone + streaming encoder primitive.
type Device interface {
	// Open acquires the microphone and starts encoding. It fails with an
	// error wrapping ErrDeviceUnavailable when access cannot be obtained.
	Open(ctx context.Context) (Stream, error)
}

// Stream delivers encoded chunks until it is closed.
type Stream interface {
	// Chunks is closed once the encoder has flushed its last chunk.
	Chunks() <-chan []byte
	// Close finalizes the encoder and releases the device. Callers must keep
	// draining Chunks until it is closed.
	Close() error
}
