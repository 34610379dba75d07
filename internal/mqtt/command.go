package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/knx-actuator/internal/knx"
)

// CommandKind names an inbound request.
type CommandKind string

const (
	CmdProgrammingMode CommandKind = "progmode"
	CmdReset           CommandKind = "reset"
	CmdRestart         CommandKind = "restart"
	CmdIdentity        CommandKind = "identity"
	CmdDatapoint       CommandKind = "datapoint"
)

var (
	ErrUnknownCommand = errors.New("mqtt: unknown command")
	ErrBadPayload     = errors.New("mqtt: bad command payload")
)

// Command is a request received over MQTT, handled on the event loop.
type Command struct {
	Kind CommandKind

	// On is the requested programming mode.
	On bool

	// ResetClass is the requested reset.
	ResetClass knx.ResetClass

	// IA and IID are the requested identity.
	IA  knx.IndividualAddress
	IID uint64

	// URL and Value are the datapoint write.
	URL   string
	Value bool
}

type identityPayload struct {
	IA  string `json:"ia"`
	IID uint64 `json:"iid"`
}

// ParseCommand decodes a message received on one of the device's command
// topics.
func ParseCommand(topics Topics, topic string, payload []byte) (Command, error) {
	prefix := topics.base() + "/"
	if !strings.HasPrefix(topic, prefix) {
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
	}
	suffix := strings.TrimPrefix(topic, prefix)
	body := strings.TrimSpace(string(payload))

	if url, ok := datapointURL(suffix); ok {
		v, err := parseBool(body)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdDatapoint, URL: url, Value: v}, nil
	}

	switch CommandKind(strings.TrimPrefix(suffix, "cmd/")) {
	case CmdProgrammingMode:
		on, err := parseBool(body)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdProgrammingMode, On: on}, nil

	case CmdReset:
		class := knx.ResetFactory
		if body != "" {
			n, err := strconv.Atoi(body)
			if err != nil {
				return Command{}, fmt.Errorf("%w: reset %q", ErrBadPayload, body)
			}
			class = knx.ResetClass(n)
		}
		if !class.Valid() {
			return Command{}, fmt.Errorf("%w: reset class %d", ErrBadPayload, int(class))
		}
		return Command{Kind: CmdReset, ResetClass: class}, nil

	case CmdRestart:
		return Command{Kind: CmdRestart}, nil

	case CmdIdentity:
		var p identityPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Command{}, fmt.Errorf("%w: identity: %v", ErrBadPayload, err)
		}
		ia, err := knx.ParseIndividualAddress(p.IA)
		if err != nil {
			return Command{}, fmt.Errorf("%w: identity: %v", ErrBadPayload, err)
		}
		return Command{Kind: CmdIdentity, IA: ia, IID: p.IID}, nil
	}

	return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrBadPayload, s)
}
