package logic

import (
	"testing"
	"time"
)

func TestCheckHeartbeatDisabledWithZeroInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(0, start)

	if hb := h.Check(start.Add(24 * time.Hour)); hb != nil {
		t.Error("expected no heartbeat with zero interval")
	}
	if d := h.Until(start); d != 0 {
		t.Errorf("expected no deadline, got %v", d)
	}
}

func TestCheckHeartbeatBeforeInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(15*time.Minute, start)

	if hb := h.Check(start.Add(14 * time.Minute)); hb != nil {
		t.Error("expected no heartbeat before interval")
	}
}

func TestCheckHeartbeatAtInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(15*time.Minute, start)

	now := start.Add(15 * time.Minute)
	hb := h.Check(now)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if !hb.Timestamp.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, hb.Timestamp)
	}
	if hb.Uptime != 15*time.Minute {
		t.Errorf("expected uptime 15m, got %v", hb.Uptime)
	}
}

func TestCheckHeartbeatUpdatesLastTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(15*time.Minute, start)

	h.Check(start.Add(15 * time.Minute))
	if hb := h.Check(start.Add(20 * time.Minute)); hb != nil {
		t.Error("expected no heartbeat 5m after the last one")
	}
	hb := h.Check(start.Add(30 * time.Minute))
	if hb == nil {
		t.Fatal("expected second heartbeat")
	}
	if hb.Uptime != 30*time.Minute {
		t.Errorf("expected uptime 30m, got %v", hb.Uptime)
	}
}

func TestHeartbeatUntil(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHeartbeat(time.Minute, start)

	if d := h.Until(start.Add(20 * time.Second)); d != 40*time.Second {
		t.Errorf("expected 40s, got %v", d)
	}
	if d := h.Until(start.Add(2 * time.Minute)); d != time.Millisecond {
		t.Errorf("overdue heartbeat should report 1ms, got %v", d)
	}
}
