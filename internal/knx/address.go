package knx

import (
	"fmt"
	"strconv"
	"strings"
)

// IndividualAddress is a KNX individual address in area.line.device form.
//
// Format: Area.Line.Device
//   - Area:   0-15 (4 bits)
//   - Line:   0-15 (4 bits)
//   - Device: 0-255 (8 bits)
type IndividualAddress uint16

// UnassignedIA is the address a device carries before commissioning.
const UnassignedIA IndividualAddress = 0xFFFF

// Individual address limits.
const (
	maxArea   = 15
	maxLine   = 15
	maxDevice = 255

	iaLevelCount = 3
)

// ParseIndividualAddress parses "area.line.device".
func ParseIndividualAddress(s string) (IndividualAddress, error) {
	parts := strings.Split(s, ".")
	if len(parts) != iaLevelCount {
		return 0, fmt.Errorf("%w: expected area.line.device, got %q", ErrInvalidAddress, s)
	}

	area, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil || area > maxArea {
		return 0, fmt.Errorf("%w: area must be 0-%d, got %q", ErrInvalidAddress, maxArea, parts[0])
	}
	line, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil || line > maxLine {
		return 0, fmt.Errorf("%w: line must be 0-%d, got %q", ErrInvalidAddress, maxLine, parts[1])
	}
	dev, err := strconv.ParseUint(parts[2], 10, 8)
	if err != nil || dev > maxDevice {
		return 0, fmt.Errorf("%w: device must be 0-%d, got %q", ErrInvalidAddress, maxDevice, parts[2])
	}

	return IndividualAddress(area<<12 | line<<8 | dev), nil
}

func (a IndividualAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", a>>12, (a>>8)&0x0F, a&0xFF)
}
