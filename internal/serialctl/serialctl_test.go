package serialctl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func mustEncode(t *testing.T, f Frame) []byte {
	t.Helper()
	b, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

func TestEncodeLayout(t *testing.T) {
	b := mustEncode(t, Frame{Sub: SubStorageReset})

	if len(b) != 5 {
		t.Fatalf("length: got %d, want 5", len(b))
	}
	if b[0] != Start || b[1] != 0 || b[2] != SubStorageReset {
		t.Errorf("header: got % x", b[:3])
	}
}

func TestEncodeKnownChecksum(t *testing.T) {
	// CRC-16/CCITT-FALSE of "123456789" is 0x29B1; check the table is that one.
	if got := crc16Of([]byte("123456789")); got != 0x29B1 {
		t.Errorf("check value: got %04x, want 29b1", got)
	}
}

func TestEncodePayloadTooLong(t *testing.T) {
	if _, err := Encode(Frame{Sub: SubPower, Payload: make([]byte, 256)}); err == nil {
		t.Error("expected error for 256-byte payload")
	}
}

func TestReadFrame(t *testing.T) {
	in := Frame{Sub: SubFactory, Payload: []byte{0x01, 0x02}}
	got, err := ReadFrame(bytes.NewReader(mustEncode(t, in)))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Sub != SubFactory || !bytes.Equal(got.Payload, in.Payload) {
		t.Errorf("got %+v, want %+v", got, in)
	}
}

func TestReadFrameSkipsGarbage(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0xff, 0x42})
	buf.Write(mustEncode(t, Frame{Sub: SubPower}))

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Sub != SubPower {
		t.Errorf("sub: got %02x, want %02x", got.Sub, SubPower)
	}
}

func TestReadFrameChecksum(t *testing.T) {
	b := mustEncode(t, Frame{Sub: SubStorageReset})
	b[len(b)-1] ^= 0xff

	_, err := ReadFrame(bytes.NewReader(b))
	if !errors.Is(err, ErrChecksum) {
		t.Errorf("got %v, want ErrChecksum", err)
	}
}

func TestReadFrameContinuesAfterChecksum(t *testing.T) {
	bad := mustEncode(t, Frame{Sub: SubStorageReset})
	bad[len(bad)-1] ^= 0xff
	r := bytes.NewReader(append(bad, mustEncode(t, Frame{Sub: SubFactory})...))

	if _, err := ReadFrame(r); !errors.Is(err, ErrChecksum) {
		t.Fatalf("first frame: got %v, want ErrChecksum", err)
	}
	f, err := ReadFrame(r)
	if err != nil || f.Sub != SubFactory {
		t.Errorf("second frame: got %+v, %v", f, err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	b := mustEncode(t, Frame{Sub: SubPower, Payload: []byte{1, 2, 3}})

	_, err := ReadFrame(bytes.NewReader(b[:4]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	if _, err := ReadFrame(bytes.NewReader(nil)); err != io.EOF {
		t.Errorf("got %v, want EOF", err)
	}
}

type recordingHandler struct {
	storage, reboot, factory int
}

func (h *recordingHandler) StorageReset() { h.storage++ }
func (h *recordingHandler) Reboot()       { h.reboot++ }
func (h *recordingHandler) FactoryReset() { h.factory++ }

func TestDispatch(t *testing.T) {
	h := &recordingHandler{}
	for _, sub := range []byte{SubStorageReset, SubPower, SubFactory, SubFactory} {
		if err := Dispatch(Frame{Sub: sub}, h); err != nil {
			t.Fatalf("Dispatch(%02x): %v", sub, err)
		}
	}
	if h.storage != 1 || h.reboot != 1 || h.factory != 2 {
		t.Errorf("got %+v", *h)
	}
}

func TestDispatchUnknown(t *testing.T) {
	h := &recordingHandler{}
	if err := Dispatch(Frame{Sub: 0x7f}, h); !errors.Is(err, ErrUnknownSub) {
		t.Errorf("got %v, want ErrUnknownSub", err)
	}
	if *h != (recordingHandler{}) {
		t.Errorf("handler called for unknown sub: %+v", *h)
	}
}

// pipePort is one end of an in-memory serial line.
type pipePort struct {
	*io.PipeReader
	closeOnce sync.Once
}

func (p *pipePort) Write(b []byte) (int, error) { return len(b), nil }

func (p *pipePort) Close() error {
	p.closeOnce.Do(func() { p.PipeReader.Close() })
	return nil
}

func TestListenerDeliversFrames(t *testing.T) {
	pr, pw := io.Pipe()
	opens := 0
	l := &Listener{
		Path: "/dev/ttyTEST",
		Baud: 115200,
		Open: func(path string, baud int) (io.ReadWriteCloser, error) {
			opens++
			if opens > 1 {
				return nil, errors.New("gone")
			}
			return &pipePort{PipeReader: pr}, nil
		},
		Retry: time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Frame, 4)
	done := make(chan struct{})
	go func() {
		l.Run(ctx, out)
		close(done)
	}()

	go func() {
		bad := mustEncode(t, Frame{Sub: SubPower})
		bad[len(bad)-1] ^= 0xff
		pw.Write(bad)
		pw.Write(mustEncode(t, Frame{Sub: SubStorageReset}))
	}()

	select {
	case f := <-out:
		if f.Sub != SubStorageReset {
			t.Errorf("sub: got %02x, want %02x", f.Sub, SubStorageReset)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestListenerRetriesOpen(t *testing.T) {
	var mu sync.Mutex
	opens := 0
	l := &Listener{
		Open: func(path string, baud int) (io.ReadWriteCloser, error) {
			mu.Lock()
			opens++
			mu.Unlock()
			return nil, errors.New("no such device")
		},
		Retry: time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	l.Run(ctx, make(chan Frame))

	mu.Lock()
	defer mu.Unlock()
	if opens < 2 {
		t.Errorf("opens: got %d, want at least 2", opens)
	}
}
