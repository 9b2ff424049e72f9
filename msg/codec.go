// Package msg implements the command/reply wire codec of component C3:
// pure encode/decode functions over a caller-supplied byte buffer, bit
// exact with spec.md §4.2. All multi-byte integers are little-endian on
// the wire except the PDID firmware-version field, which is big-endian
// by protocol quirk (spec.md §4.2, "Firmware-version byte order is
// deliberately the opposite...").
package msg

import "errors"

// Sentinel errors mirror the teacher's asdu package convention
// (errors.New package vars, reserving panic for the codec's own
// programmer-error preconditions).
var (
	ErrShortBuffer     = errors.New("msg: buffer too short to decode")
	ErrLengthMismatch  = errors.New("msg: declared length does not match payload")
	ErrBufferTooSmall  = errors.New("msg: output buffer too small to encode")
	ErrUnknownCommand  = errors.New("msg: unknown command id")
	ErrUnknownReply    = errors.New("msg: unknown reply id")
	ErrTextTooLong     = errors.New("msg: text payload exceeds max length")
	ErrInvalidKeyParam = errors.New("msg: invalid key type/length in KEYSET")
)

// Encoder accumulates bytes for an outgoing command or reply. It is a
// thin wrapper over a slice, playing the role the teacher's ASDU.infoObj
// cursor plays in asdu/codec.go.
type Encoder struct {
	buf []byte
}

// NewEncoder wraps buf[:0], appending into its backing array so callers
// can reserve header space exactly like osdp_phy_packet_get_data_offset
// does in the C source.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf[:0]}
}

// Bytes returns the encoded payload so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len reports the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) u8(v uint8) { e.buf = append(e.buf, v) }

func (e *Encoder) u16le(v uint16) { e.buf = append(e.buf, byte(v), byte(v>>8)) }

func (e *Encoder) u24le(v uint32) { e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16)) }

func (e *Encoder) u32le(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// u24be writes the 3 low bytes of v most-significant-first: the firmware
// version field's protocol quirk.
func (e *Encoder) u24be(v uint32) {
	e.buf = append(e.buf, byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) bytes(b []byte) { e.buf = append(e.buf, b...) }

// Decoder walks a decoded payload slice left to right, the same role
// the teacher's ASDU.infoObj cursor plays for DecodeByte/DecodeNormalize.
type Decoder struct {
	buf []byte
	pos int
}

// NewDecoder wraps the payload bytes that remain after the command/reply
// id byte has been consumed by the caller.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Remaining reports how many bytes are left to decode.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

func (d *Decoder) u8() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) u16le() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := uint16(d.buf[d.pos]) | uint16(d.buf[d.pos+1])<<8
	d.pos += 2
	return v, nil
}

func (d *Decoder) u24le() (uint32, error) {
	if err := d.need(3); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos]) | uint32(d.buf[d.pos+1])<<8 | uint32(d.buf[d.pos+2])<<16
	d.pos += 3
	return v, nil
}

func (d *Decoder) u32le() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos]) | uint32(d.buf[d.pos+1])<<8 |
		uint32(d.buf[d.pos+2])<<16 | uint32(d.buf[d.pos+3])<<24
	d.pos += 4
	return v, nil
}

// u24be reads 3 bytes most-significant-first (firmware version quirk).
func (d *Decoder) u24be() (uint32, error) {
	if err := d.need(3); err != nil {
		return 0, err
	}
	v := uint32(d.buf[d.pos])<<16 | uint32(d.buf[d.pos+1])<<8 | uint32(d.buf[d.pos+2])
	d.pos += 3
	return v, nil
}

func (d *Decoder) bytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := d.buf[d.pos : d.pos+n]
	d.pos += n
	return v, nil
}
