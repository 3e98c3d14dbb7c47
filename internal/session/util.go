package session

import (
	"encoding/json"
	"time"
)

func decodeBody(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, out)
}

var monotonicEpoch = time.Now()

// monotonicNow stamps output entries with the nanoseconds elapsed since
// process start, measured on the monotonic clock (time.Since uses the
// monotonic reading carried by time.Now), so ordering survives wall-clock
// adjustments. The value is for relative ordering, not wall-clock display.
func monotonicNow() int64 {
	return int64(time.Since(monotonicEpoch))
}
