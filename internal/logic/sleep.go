package logic

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/tasklet"
	"github.com/sweeney/knx-actuator/internal/thread"
)

// SleepReason explains a sleep decision.
type SleepReason string

const (
	ReasonSlept        SleepReason = "slept"
	ReasonNotSleepy    SleepReason = "not sleepy"
	ReasonNetworkBusy  SleepReason = "network busy"
	ReasonHardwareBusy SleepReason = "hardware busy"
	ReasonTooShort     SleepReason = "too short"
	ReasonJoining      SleepReason = "joining"
)

// SleepDecision is the outcome of one SleepIfPossible call.
type SleepDecision struct {
	Slept    bool
	Duration time.Duration
	Reason   SleepReason
}

// Sleeper decides once per loop iteration whether a sleepy device may
// suspend, and for how long.
type Sleeper struct {
	timing   Timing
	now      func() time.Time
	tasks    Tasklets
	net      Network
	suspend  Suspender
	canSleep func() bool

	poll     *tasklet.Tasklet
	lastWake time.Time
}

// NewSleeper creates a Sleeper and registers its keep-alive poll tasklet.
// canSleep reports local conditions that forbid sleeping. The wake clock
// starts at now().
func NewSleeper(timing Timing, now func() time.Time, tasks Tasklets, net Network, suspend Suspender, canSleep func() bool) *Sleeper {
	s := &Sleeper{
		timing:   timing,
		now:      now,
		tasks:    tasks,
		net:      net,
		suspend:  suspend,
		canSleep: canSleep,
		lastWake: now(),
	}
	s.poll = tasks.Init("sed-poll", s.sendPoll)
	return s
}

func (s *Sleeper) sendPoll(now time.Time) {
	if err := s.net.SendDataPoll(); err != nil {
		log.Warnf("logic: data poll: %v", err)
	}
}

// LastWake returns the time the last suspend ended.
func (s *Sleeper) LastWake() time.Time {
	return s.lastWake
}

// SleepIfPossible suspends until the earliest of nextStackEvent and the
// next armed tasklet, if that is worthwhile and allowed. Zero or negative
// nextStackEvent means the stack has no deadline.
func (s *Sleeper) SleepIfPossible(nextStackEvent time.Duration) SleepDecision {
	if nextStackEvent <= 0 || nextStackEvent > s.timing.MaxSleep {
		nextStackEvent = s.timing.MaxSleep
	}

	if !s.net.CanSleep() {
		return SleepDecision{Reason: ReasonNetworkBusy}
	}
	if s.canSleep != nil && !s.canSleep() {
		return SleepDecision{Reason: ReasonHardwareBusy}
	}

	if !s.tasks.IsQueued(s.poll) {
		s.tasks.ScheduleDelta(s.poll, s.timing.PollPeriod)
	}

	left, ok := s.tasks.TimeToNext()
	if !ok {
		left = s.timing.PollPeriod
	}
	if left > nextStackEvent {
		left = nextStackEvent
	}

	if left <= s.timing.MinSleep {
		return SleepDecision{Duration: left, Reason: ReasonTooShort}
	}

	// While detached the device is joining and must stay responsive for
	// MinAwake after each wake-up.
	awake := s.now().Sub(s.lastWake) >= s.timing.MinAwake
	if !awake && s.net.Role() == thread.RoleDetached {
		return SleepDecision{Duration: left, Reason: ReasonJoining}
	}

	s.suspend.Suspend(left)
	s.lastWake = s.now()
	return SleepDecision{Slept: true, Duration: left, Reason: ReasonSlept}
}
