package msg

import (
	"bytes"
	"testing"
)

func roundTripCommand(t *testing.T, cmd Command, wantLen int) []byte {
	t.Helper()
	enc := NewEncoder(make([]byte, 0, 64))
	if err := EncodeCommand(enc, cmd); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc.Len() != wantLen {
		t.Fatalf("encoded length = %d, want %d", enc.Len(), wantLen)
	}
	return enc.Bytes()
}

func TestCommandRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		len  int
	}{
		{"poll", BareCommand{ID: CmdPoll}, 1},
		{"id", BareCommand{ID: CmdID}, 2},
		{"out", OutputCommand{OutputNo: 3, ControlCode: 1, TimerCount: 500}, 5},
		{"led", LedCommand{
			Reader: 0, LedNumber: 1,
			Temporary: LedColorTimer{ControlCode: 2, OnCount: 5, OffCount: 5, OnColor: 1, OffColor: 0, TimerCount: 500},
			Permanent: LedColorTimer{ControlCode: 1, OnCount: 10, OffCount: 0, OnColor: 2, OffColor: 0},
		}, 15},
		{"buz", BuzzerCommand{Reader: 0, ControlCode: 1, OnCount: 2, OffCount: 2, RepCount: 3}, 6},
		{"text", TextCommand{Reader: 0, ControlCode: 1, TempTime: 10, OffsetRow: 1, OffsetCol: 1, Data: []byte("hi")}, 9},
		{"comset", ComsetCommand{Address: 5, Baud: 38400}, 6},
		{"keyset", KeysetCommand{KeyType: KeysetKeyType, KeyLen: KeysetKeyLen, Key: [16]byte{1, 2, 3}}, 19},
		{"chlng", ChlngCommand{CPRandom: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}, 9},
		{"scrypt", ScryptCommand{CPCryptogram: [16]byte{9, 9, 9}}, 17},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wire := roundTripCommand(t, tc.cmd, tc.len)
			id, decoded, err := DecodeCommand(wire)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if id != tc.cmd.CommandID() {
				t.Fatalf("decoded id = %v, want %v", id, tc.cmd.CommandID())
			}
			if text, ok := tc.cmd.(TextCommand); ok {
				got := decoded.(TextCommand)
				if got.Reader != text.Reader || got.ControlCode != text.ControlCode || got.TempTime != text.TempTime ||
					got.OffsetRow != text.OffsetRow || got.OffsetCol != text.OffsetCol || !bytes.Equal(got.Data, text.Data) {
					t.Fatalf("decoded = %#v, want %#v", got, text)
				}
				return
			}
			if decoded != tc.cmd {
				t.Fatalf("decoded = %#v, want %#v", decoded, tc.cmd)
			}
		})
	}
}

// TestTextDataReadOnce guards against reintroducing the reference
// firmware's double-read bug: decoding must not alias the input buffer,
// so mutating buf after decode leaves the decoded copy untouched.
func TestTextDataReadOnce(t *testing.T) {
	enc := NewEncoder(make([]byte, 0, 32))
	_ = EncodeCommand(enc, TextCommand{Data: []byte("hello")})
	wire := append([]byte(nil), enc.Bytes()...)

	_, decoded, err := DecodeCommand(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	text := decoded.(TextCommand)

	for i := range wire {
		wire[i] = 0xFF
	}
	if string(text.Data) != "hello" {
		t.Fatalf("decoded text data aliased the wire buffer: got %q", text.Data)
	}
}

// TestComsetBaudValues exercises the codec's u32le encoding, not the
// set of baud rates handleComset treats as valid (pd/dispatch.go
// restricts that to {9600, 38400, 115200}).
func TestComsetBaudValues(t *testing.T) {
	for _, baud := range []uint32{9600, 38400, 115200, 230400} {
		enc := NewEncoder(make([]byte, 0, 16))
		_ = EncodeCommand(enc, ComsetCommand{Address: 1, Baud: baud})
		_, decoded, err := DecodeCommand(enc.Bytes())
		if err != nil {
			t.Fatalf("baud %d: decode: %v", baud, err)
		}
		if decoded.(ComsetCommand).Baud != baud {
			t.Fatalf("baud %d round-tripped as %d", baud, decoded.(ComsetCommand).Baud)
		}
	}
}

func TestTextTooLong(t *testing.T) {
	enc := NewEncoder(make([]byte, 0, 64))
	data := make([]byte, TextMaxLen+1)
	if err := EncodeCommand(enc, TextCommand{Data: data}); err != ErrTextTooLong {
		t.Fatalf("err = %v, want ErrTextTooLong", err)
	}
}

func TestKeysetRejectsBadParams(t *testing.T) {
	enc := NewEncoder(make([]byte, 0, 32))
	_ = EncodeCommand(enc, KeysetCommand{KeyType: 9, KeyLen: KeysetKeyLen, Key: [16]byte{}})
	_, _, err := DecodeCommand(enc.Bytes())
	if err != ErrInvalidKeyParam {
		t.Fatalf("err = %v, want ErrInvalidKeyParam", err)
	}
}

func TestUnknownCommandID(t *testing.T) {
	_, _, err := DecodeCommand([]byte{0xFF})
	if err != ErrUnknownCommand {
		t.Fatalf("err = %v, want ErrUnknownCommand", err)
	}
}
