package serialctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// OpenFunc opens the serial line.
type OpenFunc func(path string, baud int) (io.ReadWriteCloser, error)

// OpenSerial opens path as an 8N1 serial port.
func OpenSerial(path string, baud int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	return serial.Open(path, mode)
}

// Listener reads frames from a serial line and reopens it when it fails.
type Listener struct {
	Path  string
	Baud  int
	Open  OpenFunc
	Retry time.Duration
}

// NewListener returns a Listener for a real serial port.
func NewListener(path string, baud int) *Listener {
	return &Listener{Path: path, Baud: baud, Open: OpenSerial, Retry: 5 * time.Second}
}

// Run delivers frames on out until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, out chan<- Frame) {
	for ctx.Err() == nil {
		port, err := l.Open(l.Path, l.Baud)
		if err != nil {
			log.Errorf("serialctl: open %s: %v, retrying in %v", l.Path, err, l.Retry)
			if !sleep(ctx, l.Retry) {
				return
			}
			continue
		}
		log.Printf("serialctl: listening on %s", l.Path)

		err = l.serve(ctx, port, out)
		port.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warnf("serialctl: %s: %v, reopening", l.Path, err)
		if !sleep(ctx, l.Retry) {
			return
		}
	}
}

func (l *Listener) serve(ctx context.Context, port io.ReadWriteCloser, out chan<- Frame) error {
	// Reads block; closing the port is the only way to interrupt them.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	for {
		f, err := ReadFrame(port)
		if errors.Is(err, ErrChecksum) {
			log.Warnf("serialctl: dropping frame: %v", err)
			continue
		}
		if err != nil {
			return err
		}
		log.Debugf("serialctl: received %s", f.Name())
		select {
		case out <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Handler carries out knxctl commands.
type Handler interface {
	// StorageReset performs a factory reset of the KNX device record.
	StorageReset()
	// Reboot restarts the device.
	Reboot()
	// FactoryReset wipes the Thread stack.
	FactoryReset()
}

// Dispatch routes f to h.
func Dispatch(f Frame, h Handler) error {
	switch f.Sub {
	case SubStorageReset:
		h.StorageReset()
	case SubPower:
		h.Reboot()
	case SubFactory:
		h.FactoryReset()
	default:
		return fmt.Errorf("%w: %02x", ErrUnknownSub, f.Sub)
	}
	return nil
}
