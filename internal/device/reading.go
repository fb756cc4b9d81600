package device

import "time"

// Reading is one temperature sample reported by the device.
//
// Reading is immutable once created by [Client.Fetch].
type Reading struct {
	// Temperature is the sampled value in degrees Celsius.
	Temperature float64 `json:"temperature"`

	// Timestamp is the sample time in epoch milliseconds. It is the value
	// reported by the device, or the receipt time when the device omits it.
	Timestamp int64 `json:"timestamp"`
}

// Time returns the reading timestamp as a [time.Time].
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}
