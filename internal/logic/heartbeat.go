package logic

import "time"

// Heartbeat paces periodic status reports.
type Heartbeat struct {
	interval  time.Duration
	startTime time.Time
	last      time.Time
}

// NewHeartbeat creates a Heartbeat. An interval <= 0 disables it.
func NewHeartbeat(interval time.Duration, startTime time.Time) *Heartbeat {
	return &Heartbeat{
		interval:  interval,
		startTime: startTime,
		last:      startTime,
	}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or the
// heartbeat is disabled.
func (h *Heartbeat) Check(now time.Time) *HeartbeatData {
	if h.interval <= 0 {
		return nil
	}
	if now.Sub(h.last) < h.interval {
		return nil
	}

	h.last = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
	}
}

// Until returns the time left until the next heartbeat is due, for use as a
// wake deadline. It returns zero (no deadline) when disabled and never
// returns less than a millisecond otherwise.
func (h *Heartbeat) Until(now time.Time) time.Duration {
	if h.interval <= 0 {
		return 0
	}
	d := h.last.Add(h.interval).Sub(now)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}
