package msg

import "testing"

func TestReplyRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		reply Reply
	}{
		{"nak", NakReply{Reason: NakScCond}},
		{"pdid", PdidReply{VendorCode: 0xA1B2C3, ModelNo: 4, Version: 5, Serial: 0x11223344, Firmware: 0x010203}},
		{"pdcap", PdcapReply{Capabilities: []Capability{
			{Function: CapOutputControl, Compliance: 1, NumItems: 2},
			{Function: CapReaderLED, Compliance: 1, NumItems: 1},
		}}},
		{"lstatr", LstatrReply{Tamper: true, Power: false}},
		{"rstatr", RstatrReply{Tamper: true}},
		{"com", ComReply{Address: 5, Baud: 38400}},
		{"keyppad", KeyppadReply{Reader: 0, Digits: []byte{1, 2, 3}}},
		{"raw", RawReply{Reader: 0, Format: CardFormatRawWiegand, BitCount: 32, Data: []byte{1, 2, 3, 4}}},
		{"fmt", FmtReply{Reader: 0, Direction: 1, Data: []byte("12345")}},
		{"ccrypt", CcryptReply{CUID: [8]byte{1}, PDChallenge: [8]byte{2}, PDCryptogram: [16]byte{3}}},
		{"rmaci", RmacIReply{RMAC: [16]byte{4}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(make([]byte, 0, 64))
			if err := EncodeReply(enc, tc.reply); err != nil {
				t.Fatalf("encode: %v", err)
			}
			id, decoded, err := DecodeReply(enc.Bytes())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if id != tc.reply.ReplyID() {
				t.Fatalf("decoded id = %v, want %v", id, tc.reply.ReplyID())
			}
			assertReplyEqual(t, decoded, tc.reply)
		})
	}
}

// assertReplyEqual compares field by field for the variants carrying a
// slice, and falls back to interface equality for plain-struct variants.
func assertReplyEqual(t *testing.T, got, want Reply) {
	t.Helper()
	switch w := want.(type) {
	case PdcapReply:
		g := got.(PdcapReply)
		if len(g.Capabilities) != len(w.Capabilities) {
			t.Fatalf("pdcap len = %d, want %d", len(g.Capabilities), len(w.Capabilities))
		}
		for i := range w.Capabilities {
			if g.Capabilities[i] != w.Capabilities[i] {
				t.Fatalf("pdcap[%d] = %#v, want %#v", i, g.Capabilities[i], w.Capabilities[i])
			}
		}
	case KeyppadReply:
		g := got.(KeyppadReply)
		if g.Reader != w.Reader || string(g.Digits) != string(w.Digits) {
			t.Fatalf("keyppad = %#v, want %#v", g, w)
		}
	case RawReply:
		g := got.(RawReply)
		if g.Reader != w.Reader || g.Format != w.Format || g.BitCount != w.BitCount || string(g.Data) != string(w.Data) {
			t.Fatalf("raw = %#v, want %#v", g, w)
		}
	case FmtReply:
		g := got.(FmtReply)
		if g.Reader != w.Reader || g.Direction != w.Direction || string(g.Data) != string(w.Data) {
			t.Fatalf("fmt = %#v, want %#v", g, w)
		}
	default:
		if got != want {
			t.Fatalf("decoded = %#v, want %#v", got, want)
		}
	}
}

// TestPdidEndianness pins the vendor/serial-little-endian,
// firmware-big-endian wire layout spec.md §8 calls out explicitly.
func TestPdidEndianness(t *testing.T) {
	enc := NewEncoder(make([]byte, 0, 16))
	_ = EncodeReply(enc, PdidReply{
		VendorCode: 0xA1B2C3, ModelNo: 0x04, Version: 0x05, Serial: 0x11223344, Firmware: 0x010203,
	})
	want := []byte{byte(ReplyPdid), 0xC3, 0xB2, 0xA1, 0x04, 0x05, 0x44, 0x33, 0x22, 0x11, 0x01, 0x02, 0x03}
	got := enc.Bytes()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#02x, want %#02x", i, got[i], want[i])
		}
	}
}

func TestReplyLengthMismatch(t *testing.T) {
	// RSTATR declares exactly one data byte.
	_, _, err := DecodeReply([]byte{byte(ReplyRstatr), 1, 2})
	if err != ErrLengthMismatch {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestUnknownReplyID(t *testing.T) {
	_, _, err := DecodeReply([]byte{0xFF})
	if err != ErrUnknownReply {
		t.Fatalf("err = %v, want ErrUnknownReply", err)
	}
}
