package phy

import (
	"bytes"
	"testing"

	"github.com/go-osdp/osdp/msg"
)

func buildFrame(t *testing.T, f Frame, data []byte) []byte {
	t.Helper()
	buf := make([]byte, 0, MaxFrameSize)
	offset, err := Init(buf, f)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	buf = buf[:offset+len(data)]
	copy(buf[offset:], data)
	total, err := Finalize(buf[:cap(buf)], f, len(data))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return buf[:total]
}

func TestFrameRoundTripNoSCB(t *testing.T) {
	data := []byte{0x60}
	wire := buildFrame(t, Frame{Address: 3, Sequence: 1}, data)

	got, payload, err := Decode(wire, len(wire))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Address != 3 || got.Sequence != 1 || got.Reply || got.SCB != nil {
		t.Fatalf("decoded frame = %#v", got)
	}
	if !bytes.Equal(payload, data) {
		t.Fatalf("payload = %x, want %x", payload, data)
	}
}

func TestFrameRoundTripWithSCB(t *testing.T) {
	data := []byte{0x40}
	f := Frame{Address: 5, Sequence: 2, Reply: true, SCB: &SecureBlock{Tag: msg.SCS16}}
	wire := buildFrame(t, f, data)

	got, payload, err := Decode(wire, len(wire))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Reply || got.SCB == nil || got.SCB.Tag != msg.SCS16 {
		t.Fatalf("decoded frame = %#v", got)
	}
	if !bytes.Equal(payload, data) {
		t.Fatalf("payload = %x, want %x", payload, data)
	}
}

func TestFrameIncompleteWaitsForMoreBytes(t *testing.T) {
	data := []byte{0x60}
	wire := buildFrame(t, Frame{Address: 1}, data)

	for n := 0; n < len(wire); n++ {
		_, _, err := Decode(wire, n)
		if err != ErrWait {
			t.Fatalf("n=%d: err = %v, want ErrWait", n, err)
		}
	}
	if _, _, err := Decode(wire, len(wire)); err != nil {
		t.Fatalf("full frame: err = %v", err)
	}
}

func TestFrameBadSOMSkips(t *testing.T) {
	_, _, err := Decode([]byte{0x00, 0x01, 0x02}, 3)
	if err != ErrSkip {
		t.Fatalf("err = %v, want ErrSkip", err)
	}
}

func TestFrameBadCRCIsFormatError(t *testing.T) {
	wire := buildFrame(t, Frame{Address: 1}, []byte{0x60})
	wire[len(wire)-1] ^= 0xFF
	_, _, err := Decode(wire, len(wire))
	if err != ErrFormat {
		t.Fatalf("err = %v, want ErrFormat", err)
	}
}

func TestNextSequenceRotation(t *testing.T) {
	seq := uint8(0)
	want := []uint8{1, 2, 3, 1, 2, 3, 1}
	for i, w := range want {
		seq = NextSequence(seq)
		if seq != w {
			t.Fatalf("step %d: seq = %d, want %d", i, seq, w)
		}
	}
}
