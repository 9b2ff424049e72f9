// Package phy implements the packet/frame layer spec.md §6 names as a
// consumed external interface: SOM/length/address/sequence framing,
// CRC-16 validation, and the secure-block slot a secure-channel message
// tags itself with. It mirrors the teacher's cs101 FT1.2 link layer
// (start byte, control byte, checksum) generalized to this protocol's
// frame shape (DESIGN.md, "Phy frame layout").
package phy

import (
	"errors"

	"github.com/go-osdp/osdp/msg"
)

// som is the frame start-of-message byte.
const som byte = 0x53

// baseHeaderLen is SOM(1) + LEN(2) + ADDR(1) + CTRL(1).
const baseHeaderLen = 5

// crcLen is the trailing CRC-16 field.
const crcLen = 2

// secureBlockLen is the fixed 3-byte secure block: length, type, control.
const secureBlockLen = 3

// MaxFrameSize bounds a single frame, data plus every header/trailer
// byte.
const MaxFrameSize = 512

var (
	// ErrWait is returned by Decode when fewer bytes than one full
	// frame have arrived so far; the caller should accumulate more
	// and retry.
	ErrWait = errors.New("phy: incomplete frame, wait for more bytes")
	// ErrSkip is returned when the leading byte(s) are not a valid
	// SOM; the caller should drop one byte and resynchronize.
	ErrSkip = errors.New("phy: no frame start found, resync")
	// ErrFormat is returned for a length field past MaxFrameSize or a
	// failed CRC check: a malformed but synchronized frame.
	ErrFormat = errors.New("phy: malformed frame")
)

// SecureBlock is the optional 3-byte secure-block slot (spec.md §4.3):
// a tag identifying the handshake/steady-state stage and payload
// shape, plus a control byte whose meaning is stage-dependent (SCBK
// vs. SCBK-D in use during handshake, CP-auth-ok on RMAC_I).
type SecureBlock struct {
	Tag     msg.SCSTag
	Control uint8
}

// Frame describes one on-wire packet's header fields. Sequence is
// 0-3; only its low two bits go on the wire. SCB is nil when no
// secure channel is in effect for this message.
type Frame struct {
	Address  uint8
	Sequence uint8
	Reply    bool
	SCB      *SecureBlock
}

func (f Frame) headerLen() int {
	if f.SCB != nil {
		return baseHeaderLen + secureBlockLen
	}
	return baseHeaderLen
}

// NextSequence rotates 0→1→2→3→1, the cycle spec.md §5 describes
// ("never returning to 0 except after a full reset"). It never returns
// 0: callers start or restart a cycle at 0 by setting their counter to
// 0 directly, and any out-of-range value rotates to 1.
func NextSequence(cur uint8) uint8 {
	switch cur {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 3
	default: // 3 and any out-of-range value
		return 1
	}
}

// control byte bit layout.
const (
	ctrlSeqMask  = 0x03
	ctrlScbFlag  = 0x04
	ctrlReplyBit = 0x80 // set by the PD so a CP and PD frame are never mistaken for each other
)

// Init reserves header space in buf for f and returns the offset at
// which the caller's codec should begin writing data bytes, mirroring
// packet_init/packet_get_data_offset from spec.md §6. buf must have at
// least f.headerLen()+crcLen capacity beyond whatever data the caller
// intends to write.
func Init(buf []byte, f Frame) (dataOffset int, err error) {
	h := f.headerLen()
	if cap(buf) < h {
		return 0, ErrFormat
	}
	return h, nil
}

// GetSecureBlock returns f's secure block, or nil if this frame carries
// none (packet_get_smb). The cp and pd session machines choose the
// block's tag and control byte before Finalize writes it and do not
// rewrite it afterwards.
func (f Frame) GetSecureBlock() *SecureBlock { return f.SCB }

// Finalize writes the complete frame (header, the dataLen data bytes
// already placed at buf[f.headerLen():], and the trailing CRC) into
// buf and returns the total frame length. buf must be sized to at
// least f.headerLen()+dataLen+crcLen; data bytes are expected to
// already occupy that region (the caller's codec wrote them there via
// the offset Init returned).
func Finalize(buf []byte, f Frame, dataLen int) (totalLen int, err error) {
	h := f.headerLen()
	total := h + dataLen + crcLen
	if total > MaxFrameSize || cap(buf) < total {
		return 0, ErrFormat
	}
	buf = buf[:total]

	buf[0] = som
	buf[1] = byte(total)
	buf[2] = byte(total >> 8)
	buf[3] = f.Address
	ctrl := f.Sequence & ctrlSeqMask
	if f.SCB != nil {
		ctrl |= ctrlScbFlag
	}
	if f.Reply {
		ctrl |= ctrlReplyBit
	}
	buf[4] = ctrl
	if f.SCB != nil {
		buf[5] = secureBlockLen
		buf[6] = byte(f.SCB.Tag)
		buf[7] = f.SCB.Control
	}
	// data bytes already live at buf[h:h+dataLen]

	crc := crc16(buf[:h+dataLen])
	buf[h+dataLen] = byte(crc)
	buf[h+dataLen+1] = byte(crc >> 8)
	return total, nil
}

// Decode validates and parses one frame out of buf[:n] (the bytes
// accumulated from the channel so far). On success it returns the
// parsed header and the data slice (aliasing buf); on ErrWait the
// caller should read more bytes and retry with the same accumulation
// buffer; on ErrSkip or ErrFormat the frame at the start of buf is
// unusable and the caller resynchronizes (see ErrSkip and ErrFormat).
func Decode(buf []byte, n int) (Frame, []byte, error) {
	if n < 1 {
		return Frame{}, nil, ErrWait
	}
	if buf[0] != som {
		return Frame{}, nil, ErrSkip
	}
	if n < 5 {
		return Frame{}, nil, ErrWait
	}
	total := int(buf[1]) | int(buf[2])<<8
	if total < baseHeaderLen+crcLen || total > MaxFrameSize {
		return Frame{}, nil, ErrFormat
	}
	if n < total {
		return Frame{}, nil, ErrWait
	}

	f := Frame{Address: buf[3]}
	ctrl := buf[4]
	f.Sequence = ctrl & ctrlSeqMask
	f.Reply = ctrl&ctrlReplyBit != 0
	headerLen := baseHeaderLen
	if ctrl&ctrlScbFlag != 0 {
		if total < baseHeaderLen+secureBlockLen+crcLen {
			return Frame{}, nil, ErrFormat
		}
		smbLen := int(buf[5])
		if smbLen != secureBlockLen {
			return Frame{}, nil, ErrFormat
		}
		f.SCB = &SecureBlock{Tag: msg.SCSTag(buf[6]), Control: buf[7]}
		headerLen += secureBlockLen
	}

	dataEnd := total - crcLen
	gotCRC := uint16(buf[dataEnd]) | uint16(buf[dataEnd+1])<<8
	wantCRC := crc16(buf[:dataEnd])
	if gotCRC != wantCRC {
		return Frame{}, nil, ErrFormat
	}

	return f, buf[headerLen:dataEnd], nil
}
