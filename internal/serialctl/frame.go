// Package serialctl receives knxctl commands over a serial line.
//
// A frame on the wire is
//
//	0xB0 len sub payload[len] crc16
//
// where crc16 is CRC-16/CCITT-FALSE over every preceding byte of the frame,
// big endian.
package serialctl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sigurn/crc16"
	log "github.com/sirupsen/logrus"
)

// Start is the frame delimiter.
const Start = 0xB0

// Sub-commands.
const (
	SubStorageReset byte = 0x00
	SubPower        byte = 0x01
	SubFactory      byte = 0x02
)

var (
	// ErrChecksum reports a frame whose trailing CRC does not match.
	ErrChecksum = errors.New("serialctl: checksum mismatch")
	// ErrUnknownSub reports a well-formed frame with an unknown sub-command.
	ErrUnknownSub = errors.New("serialctl: unknown sub-command")
)

var table = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// Frame is one decoded knxctl command.
type Frame struct {
	Sub     byte
	Payload []byte
}

// Name returns the command name used in logs and metrics.
func (f Frame) Name() string {
	switch f.Sub {
	case SubStorageReset:
		return "storage-reset"
	case SubPower:
		return "power"
	case SubFactory:
		return "factory"
	}
	return fmt.Sprintf("sub-%02x", f.Sub)
}

// Encode serializes f, appending the checksum.
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > 0xff {
		return nil, fmt.Errorf("serialctl: payload too long (%d bytes)", len(f.Payload))
	}
	var buf bytes.Buffer
	buf.WriteByte(Start)
	buf.WriteByte(byte(len(f.Payload)))
	buf.WriteByte(f.Sub)
	buf.Write(f.Payload)
	sum := crc16Of(buf.Bytes())
	binary.Write(&buf, binary.BigEndian, sum)
	return buf.Bytes(), nil
}

// ReadFrame reads the next frame from r, skipping bytes until a delimiter.
// A checksum mismatch returns ErrChecksum; the caller may keep reading.
func ReadFrame(r io.Reader) (Frame, error) {
	var full bytes.Buffer
	tr := io.TeeReader(r, &full)

	for {
		full.Reset()

		b := make([]byte, 1)
		if _, err := io.ReadFull(tr, b); err != nil {
			return Frame{}, err
		}
		if b[0] != Start {
			log.Debugf("serialctl: skipping non-frame byte %02x", b[0])
			continue
		}

		hdr := make([]byte, 2)
		if _, err := io.ReadFull(tr, hdr); err != nil {
			return Frame{}, noEOF(err)
		}
		payload := make([]byte, int(hdr[0]))
		if _, err := io.ReadFull(tr, payload); err != nil {
			return Frame{}, noEOF(err)
		}

		want := crc16Of(full.Bytes())
		var got uint16
		if err := binary.Read(r, binary.BigEndian, &got); err != nil {
			return Frame{}, noEOF(err)
		}
		if got != want {
			return Frame{}, fmt.Errorf("%w: got %04x, want %04x", ErrChecksum, got, want)
		}
		return Frame{Sub: hdr[1], Payload: payload}, nil
	}
}

// noEOF turns a clean EOF inside a frame into ErrUnexpectedEOF.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func crc16Of(b []byte) uint16 {
	return crc16.Checksum(b, table)
}
