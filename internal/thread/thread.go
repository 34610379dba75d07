// Package thread is a thin adapter over the OpenThread CLI (ot-ctl). It only
// exposes what the device glue needs: role, link mode, data poll, joining and
// credential erase.
package thread

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Role is the device's Thread role.
type Role int

const (
	RoleDisabled Role = iota
	RoleDetached
	RoleChild
	RoleRouter
	RoleLeader
)

func (r Role) String() string {
	switch r {
	case RoleDisabled:
		return "disabled"
	case RoleDetached:
		return "detached"
	case RoleChild:
		return "child"
	case RoleRouter:
		return "router"
	case RoleLeader:
		return "leader"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// ParseRole converts ot-ctl "state" output to a Role.
func ParseRole(s string) (Role, error) {
	switch strings.TrimSpace(s) {
	case "disabled":
		return RoleDisabled, nil
	case "detached":
		return RoleDetached, nil
	case "child":
		return RoleChild, nil
	case "router":
		return RoleRouter, nil
	case "leader":
		return RoleLeader, nil
	}
	return RoleDisabled, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// LinkMode is the radio receive policy of the link layer.
type LinkMode int

const (
	// LinkPowerSave turns the receiver off between data polls.
	LinkPowerSave LinkMode = iota
	// LinkRxOnWhenIdle keeps the receiver on.
	LinkRxOnWhenIdle
)

func (m LinkMode) String() string {
	if m == LinkRxOnWhenIdle {
		return "rx-on-when-idle"
	}
	return "power-save"
}

// modeArg is the ot-ctl "mode" argument. "r" is rx-on-when-idle, "-" clears
// every flag so the node runs as a sleepy end device.
func (m LinkMode) modeArg() string {
	if m == LinkRxOnWhenIdle {
		return "r"
	}
	return "-"
}

var (
	ErrUnknownRole = errors.New("thread: unknown role")
	ErrCommand     = errors.New("thread: ot-ctl command failed")
)

// Runner executes ot-ctl and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}

const (
	defaultTimeout = 5 * time.Second
	// queryTimeout bounds commands issued from the event loop, which must
	// keep polling buttons.
	queryTimeout = 500 * time.Millisecond
)

// OTCtl drives an OpenThread daemon through ot-ctl.
type OTCtl struct {
	path         string
	run          Runner
	timeout      time.Duration
	queryTimeout time.Duration
}

// NewOTCtl creates an adapter for the ot-ctl binary at path.
func NewOTCtl(path string, run Runner) *OTCtl {
	if run == nil {
		run = ExecRunner{}
	}
	return &OTCtl{path: path, run: run, timeout: defaultTimeout, queryTimeout: queryTimeout}
}

// cmd runs a long-running ot-ctl command such as a join or a reset.
func (o *OTCtl) cmd(args ...string) ([]string, error) {
	return o.exec(o.timeout, args...)
}

// query runs an ot-ctl command on behalf of the event loop.
func (o *OTCtl) query(args ...string) ([]string, error) {
	return o.exec(o.queryTimeout, args...)
}

// exec runs one ot-ctl command and returns its output lines without the
// trailing "Done".
func (o *OTCtl) exec(timeout time.Duration, args ...string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := o.run.Run(ctx, o.path, args...)
	if err != nil {
		return nil, fmt.Errorf("ot-ctl %s: %w", strings.Join(args, " "), err)
	}

	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "", line == "Done":
			continue
		case strings.HasPrefix(line, "Error"):
			return nil, fmt.Errorf("%w: ot-ctl %s: %s", ErrCommand, strings.Join(args, " "), line)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Role queries the current role. A failed query reports detached so callers
// stay conservative.
func (o *OTCtl) Role() Role {
	lines, err := o.query("state")
	if err != nil || len(lines) == 0 {
		log.Warnf("thread: state query failed: %v", err)
		return RoleDetached
	}
	r, err := ParseRole(lines[0])
	if err != nil {
		log.Warnf("thread: %v", err)
		return RoleDetached
	}
	return r
}

// SetLinkMode changes the link-layer receive policy.
func (o *OTCtl) SetLinkMode(m LinkMode) error {
	_, err := o.query("mode", m.modeArg())
	return err
}

// EraseJoinCredentials removes the stored network dataset so the device must
// rejoin. ot-ctl has no finer-grained erase, so this is a stack factory reset.
func (o *OTCtl) EraseJoinCredentials() error {
	_, err := o.cmd("factoryreset")
	return err
}

// FactoryReset wipes all OpenThread settings.
func (o *OTCtl) FactoryReset() error {
	_, err := o.cmd("factoryreset")
	return err
}

// SendDataPoll sends a MAC data request to the parent.
func (o *OTCtl) SendDataPoll() error {
	_, err := o.query("mac", "send", "datarequest")
	return err
}

// CanSleep reports whether the network stack allows a suspend. ot-ctl has no
// such query; the daemon handles its own timers.
func (o *OTCtl) CanSleep() bool {
	return true
}

// Join brings the interface up and starts the joiner with pskd.
func (o *OTCtl) Join(pskd string) error {
	if _, err := o.cmd("ifconfig", "up"); err != nil {
		return err
	}
	_, err := o.cmd("joiner", "start", pskd)
	return err
}

// Joiner is something that can attempt to join a network.
type Joiner interface {
	Join(pskd string) error
	Role() Role
}

// JoinWithBackoff tries to join every retry until the device has a role other
// than detached or disabled, or ctx is done.
func JoinWithBackoff(ctx context.Context, j Joiner, pskd string, retry time.Duration) error {
	for attempt := 1; ; attempt++ {
		if r := j.Role(); r != RoleDetached && r != RoleDisabled {
			log.Printf("thread: attached as %s", r)
			return nil
		}
		if err := j.Join(pskd); err != nil {
			log.Warnf("thread: join attempt %d failed: %v", attempt, err)
		} else {
			log.Printf("thread: join attempt %d started", attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry):
		}
	}
}
