// Package blob defines the opaque byte payloads the multiplexer moves
// around: the value a caller puts, and the value (plus optional ctime
// metadata) a backend returns from a read.
package blob

import "time"

// Blob is an opaque byte sequence supplied by a caller on Put.
type Blob []byte

// Size returns the length of the blob in bytes.
func (b Blob) Size() int64 {
	return int64(len(b))
}

// GetData is what a backend's Get returns: the bytes, plus an optional
// creation timestamp. ctime must never reach a caller of the multiplexer's
// normal Get — StripCTime() removes it; Scrub deliberately compares on
// RawBytes() instead, so ctime never participates in divergence detection
// either way.
type GetData struct {
	bytes []byte
	ctime *time.Time
}

// NewGetData wraps bytes with no ctime.
func NewGetData(data []byte) GetData {
	return GetData{bytes: data}
}

// NewGetDataWithCTime wraps bytes together with a creation timestamp.
func NewGetDataWithCTime(data []byte, ctime time.Time) GetData {
	return GetData{bytes: data, ctime: &ctime}
}

// RawBytes returns the underlying bytes, independent of ctime. Scrub uses
// this view to compare replicas for byte-identity.
func (g GetData) RawBytes() []byte {
	return g.bytes
}

// CTime returns the creation timestamp, if the backend supplied one.
func (g GetData) CTime() (time.Time, bool) {
	if g.ctime == nil {
		return time.Time{}, false
	}
	return *g.ctime, true
}

// StripCTime returns a copy of g with ctime cleared. Called on the winning
// value before it is returned from a normal Get.
func (g GetData) StripCTime() GetData {
	return GetData{bytes: g.bytes}
}

// Size returns the length of the wrapped bytes.
func (g GetData) Size() int64 {
	return int64(len(g.bytes))
}
