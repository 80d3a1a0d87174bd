// Package sample defines the payload types exchanged between pipeline
// stages and their shared-memory codecs.
package sample

import (
	"encoding/binary"
	"errors"
	"time"
)

// ErrMalformed is returned when a payload cannot be decoded.
var ErrMalformed = errors.New("malformed sample")

// Info is carried by every sample.
type Info struct {
	// Counter numbers samples from the stage that produced the first one.
	Counter uint64 `json:"counter"`
	// Timestamp is the acquisition time of the originating frame.
	Timestamp time.Time `json:"timestamp"`
	// Period is the nominal time between samples, zero when unknown.
	Period time.Duration `json:"period"`
}

// Rate returns the nominal sample rate in Hz, or 0.
func (i Info) Rate() float64 {
	if i.Period <= 0 {
		return 0
	}
	return float64(time.Second) / float64(i.Period)
}

const infoSize = 24

var le = binary.LittleEndian

func putInfo(dst []byte, i Info) {
	le.PutUint64(dst[0:], i.Counter)
	var ts int64
	if !i.Timestamp.IsZero() {
		ts = i.Timestamp.UnixNano()
	}
	le.PutUint64(dst[8:], uint64(ts))
	le.PutUint64(dst[16:], uint64(i.Period))
}

func getInfo(src []byte) Info {
	i := Info{
		Counter: le.Uint64(src[0:]),
		Period:  time.Duration(le.Uint64(src[16:])),
	}
	if ts := int64(le.Uint64(src[8:])); ts != 0 {
		i.Timestamp = time.Unix(0, ts)
	}
	return i
}
