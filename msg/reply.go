package msg

// Reply is the tagged union over every PD-to-CP reply payload.
type Reply interface {
	ReplyID() ReplyID
}

// NakReply is the REPLY_NAK payload.
type NakReply struct {
	Reason NakReason
}

func (NakReply) ReplyID() ReplyID { return ReplyNak }

// PdidReply is the REPLY_PDID payload: vendor code and firmware version
// are both 24-bit fields, but vendor code is little-endian and firmware
// version is big-endian on the wire (spec.md §4.2).
type PdidReply struct {
	VendorCode uint32 // low 24 bits significant
	ModelNo    uint8
	Version    uint8
	Serial     uint32
	Firmware   uint32 // low 24 bits significant, encoded big-endian
}

func (PdidReply) ReplyID() ReplyID { return ReplyPdid }

// PdcapReply is the REPLY_PDCAP payload.
type PdcapReply struct {
	Capabilities []Capability
}

func (PdcapReply) ReplyID() ReplyID { return ReplyPdcap }

// LstatrReply is the REPLY_LSTATR payload.
type LstatrReply struct {
	Tamper bool
	Power  bool
}

func (LstatrReply) ReplyID() ReplyID { return ReplyLstatr }

// RstatrReply is the REPLY_RSTATR payload: a single reader-tamper bit.
// ISTAT/OSTAT have no corresponding reply layout in this engine — they
// are always capability-gated to NAK(CMD_UNKNOWN) (spec.md §4.6).
type RstatrReply struct {
	Tamper bool
}

func (RstatrReply) ReplyID() ReplyID { return ReplyRstatr }

// ComReply is the REPLY_COM payload, echoing the (possibly adjusted)
// communication parameters the PD will switch to after this reply.
type ComReply struct {
	Address uint8
	Baud    uint32
}

func (ComReply) ReplyID() ReplyID { return ReplyCom }

// KeyppadReply is the REPLY_KEYPPAD payload.
type KeyppadReply struct {
	Reader uint8
	Digits []byte
}

func (KeyppadReply) ReplyID() ReplyID { return ReplyKeyppad }

// RawReply is the REPLY_RAW payload (unformatted card data, e.g.
// Wiegand bits packed MSB-first).
type RawReply struct {
	Reader   uint8
	Format   CardFormat
	BitCount uint16
	Data     []byte
}

func (RawReply) ReplyID() ReplyID { return ReplyRaw }

// FmtReply is the REPLY_FMT payload (formatted/ASCII card data).
type FmtReply struct {
	Reader    uint8
	Direction uint8
	Data      []byte
}

func (FmtReply) ReplyID() ReplyID { return ReplyFmt }

// CcryptReply is the REPLY_CCRYPT payload of the secure channel
// handshake: PD client UID, PD's random challenge, and the PD
// cryptogram proving knowledge of SCBK (spec.md §6, Secure Channel).
type CcryptReply struct {
	CUID         [8]byte
	PDChallenge  [8]byte
	PDCryptogram [16]byte
}

func (CcryptReply) ReplyID() ReplyID { return ReplyCcrypt }

// RmacIReply is the REPLY_RMAC_I payload: the initial R-MAC the PD
// computes to close out the handshake.
type RmacIReply struct {
	RMAC [16]byte
}

func (RmacIReply) ReplyID() ReplyID { return ReplyRmacI }

// EncodeBareReply encodes ACK/BUSY, which carry no data beyond the id
// byte.
func EncodeBareReply(enc *Encoder, id ReplyID) {
	enc.u8(uint8(id))
}

// EncodeReply encodes any of the data-bearing reply variants.
func EncodeReply(enc *Encoder, reply Reply) error {
	switch r := reply.(type) {
	case NakReply:
		enc.u8(uint8(ReplyNak))
		enc.u8(uint8(r.Reason))
	case PdidReply:
		enc.u8(uint8(ReplyPdid))
		enc.u24le(r.VendorCode)
		enc.u8(r.ModelNo)
		enc.u8(r.Version)
		enc.u32le(r.Serial)
		enc.u24be(r.Firmware)
	case PdcapReply:
		enc.u8(uint8(ReplyPdcap))
		for _, c := range r.Capabilities {
			enc.u8(uint8(c.Function))
			enc.u8(c.Compliance)
			enc.u8(c.NumItems)
		}
	case LstatrReply:
		enc.u8(uint8(ReplyLstatr))
		enc.u8(boolToByte(r.Tamper))
		enc.u8(boolToByte(r.Power))
	case RstatrReply:
		enc.u8(uint8(ReplyRstatr))
		enc.u8(boolToByte(r.Tamper))
	case ComReply:
		enc.u8(uint8(ReplyCom))
		enc.u8(r.Address)
		enc.u32le(r.Baud)
	case KeyppadReply:
		enc.u8(uint8(ReplyKeyppad))
		enc.u8(r.Reader)
		enc.u8(uint8(len(r.Digits)))
		enc.bytes(r.Digits)
	case RawReply:
		enc.u8(uint8(ReplyRaw))
		enc.u8(r.Reader)
		enc.u8(uint8(r.Format))
		enc.u16le(r.BitCount)
		enc.bytes(r.Data)
	case FmtReply:
		enc.u8(uint8(ReplyFmt))
		enc.u8(r.Reader)
		enc.u8(r.Direction)
		enc.u8(uint8(len(r.Data)))
		enc.bytes(r.Data)
	case CcryptReply:
		enc.u8(uint8(ReplyCcrypt))
		enc.bytes(r.CUID[:])
		enc.bytes(r.PDChallenge[:])
		enc.bytes(r.PDCryptogram[:])
	case RmacIReply:
		enc.u8(uint8(ReplyRmacI))
		enc.bytes(r.RMAC[:])
	default:
		return ErrUnknownReply
	}
	return nil
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// DecodeReply parses the reply id and payload from buf (id byte
// first). ACK and BUSY return a nil Reply; callers dispatch on the
// returned ReplyID alone for those.
func DecodeReply(buf []byte) (ReplyID, Reply, error) {
	if len(buf) < 1 {
		return 0, nil, ErrShortBuffer
	}
	id := ReplyID(buf[0])
	d := NewDecoder(buf[1:])

	switch id {
	case ReplyAck, ReplyBusy:
		if d.Remaining() != 0 {
			return id, nil, ErrLengthMismatch
		}
		return id, nil, nil
	case ReplyNak:
		if d.Remaining() != 1 {
			return id, nil, ErrLengthMismatch
		}
		reason, _ := d.u8()
		return id, NakReply{Reason: NakReason(reason)}, nil
	case ReplyPdid:
		if d.Remaining() != 12 {
			return id, nil, ErrLengthMismatch
		}
		var r PdidReply
		r.VendorCode, _ = d.u24le()
		r.ModelNo, _ = d.u8()
		r.Version, _ = d.u8()
		r.Serial, _ = d.u32le()
		r.Firmware, _ = d.u24be()
		return id, r, nil
	case ReplyPdcap:
		if d.Remaining()%3 != 0 {
			return id, nil, ErrLengthMismatch
		}
		var r PdcapReply
		for d.Remaining() > 0 {
			fc, _ := d.u8()
			if CapabilityFunction(fc) >= MaxCapability {
				break
			}
			compliance, _ := d.u8()
			numItems, _ := d.u8()
			r.Capabilities = append(r.Capabilities, Capability{
				Function:   CapabilityFunction(fc),
				Compliance: compliance,
				NumItems:   numItems,
			})
		}
		return id, r, nil
	case ReplyLstatr:
		if d.Remaining() != 2 {
			return id, nil, ErrLengthMismatch
		}
		tamper, _ := d.u8()
		power, _ := d.u8()
		return id, LstatrReply{Tamper: tamper != 0, Power: power != 0}, nil
	case ReplyRstatr:
		if d.Remaining() != 1 {
			return id, nil, ErrLengthMismatch
		}
		tamper, _ := d.u8()
		return id, RstatrReply{Tamper: tamper != 0}, nil
	case ReplyCom:
		if d.Remaining() != 5 {
			return id, nil, ErrLengthMismatch
		}
		var r ComReply
		r.Address, _ = d.u8()
		r.Baud, _ = d.u32le()
		return id, r, nil
	case ReplyKeyppad:
		if d.Remaining() < 2 {
			return id, nil, ErrLengthMismatch
		}
		var r KeyppadReply
		r.Reader, _ = d.u8()
		n, _ := d.u8()
		if d.Remaining() != int(n) {
			return id, nil, ErrLengthMismatch
		}
		data, err := d.bytes(int(n))
		if err != nil {
			return id, nil, err
		}
		r.Digits = append([]byte(nil), data...)
		return id, r, nil
	case ReplyRaw:
		if d.Remaining() < 4 {
			return id, nil, ErrLengthMismatch
		}
		var r RawReply
		r.Reader, _ = d.u8()
		format, _ := d.u8()
		r.Format = CardFormat(format)
		r.BitCount, _ = d.u16le()
		data, err := d.bytes(d.Remaining())
		if err != nil {
			return id, nil, err
		}
		r.Data = append([]byte(nil), data...)
		return id, r, nil
	case ReplyFmt:
		if d.Remaining() < 3 {
			return id, nil, ErrLengthMismatch
		}
		var r FmtReply
		r.Reader, _ = d.u8()
		r.Direction, _ = d.u8()
		n, _ := d.u8()
		if d.Remaining() != int(n) {
			return id, nil, ErrLengthMismatch
		}
		data, err := d.bytes(int(n))
		if err != nil {
			return id, nil, err
		}
		r.Data = append([]byte(nil), data...)
		return id, r, nil
	case ReplyCcrypt:
		if d.Remaining() != 32 {
			return id, nil, ErrLengthMismatch
		}
		var r CcryptReply
		cuid, _ := d.bytes(8)
		copy(r.CUID[:], cuid)
		chal, _ := d.bytes(8)
		copy(r.PDChallenge[:], chal)
		crypt, _ := d.bytes(16)
		copy(r.PDCryptogram[:], crypt)
		return id, r, nil
	case ReplyRmacI:
		if d.Remaining() != 16 {
			return id, nil, ErrLengthMismatch
		}
		var r RmacIReply
		rmac, _ := d.bytes(16)
		copy(r.RMAC[:], rmac)
		return id, r, nil
	default:
		return id, nil, ErrUnknownReply
	}
}
