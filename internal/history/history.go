// Package history provides the bounded, FIFO-evicting window of recent
// temperature readings kept by the polling loop.
package history

import "github.com/jpalmerr/thermoboard/internal/device"

// Buffer holds at most capacity readings in arrival order.
//
// When full, pushing a new reading evicts the oldest one. Buffer is not safe
// for concurrent use; it is owned by a single goroutine.
type Buffer struct {
	readings []device.Reading
	capacity int
}

// NewBuffer creates an empty buffer. A capacity below 1 is treated as 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		readings: make([]device.Reading, 0, capacity),
		capacity: capacity,
	}
}

// Push appends r, evicting the oldest reading if the buffer is full.
func (b *Buffer) Push(r device.Reading) {
	if len(b.readings) >= b.capacity {
		copy(b.readings, b.readings[1:])
		b.readings[len(b.readings)-1] = r
		return
	}
	b.readings = append(b.readings, r)
}

// Len returns the number of readings held.
func (b *Buffer) Len() int {
	return len(b.readings)
}

// Latest returns the most recently pushed reading.
func (b *Buffer) Latest() (device.Reading, bool) {
	if len(b.readings) == 0 {
		return device.Reading{}, false
	}
	return b.readings[len(b.readings)-1], true
}

// Readings returns a copy of the held readings, oldest first.
func (b *Buffer) Readings() []device.Reading {
	out := make([]device.Reading, len(b.readings))
	copy(out, b.readings)
	return out
}
