package msg

// Command is the tagged union spec.md §3 describes ("Command object:
// tagged union over {OUTPUT, LED, BUZZER, TEXT, COMSET, KEYSET}"). Each
// concrete type below is one arm; CommandID reports which.
type Command interface {
	CommandID() CommandID
}

// OutputCommand is the CMD_OUT payload (spec.md §4.2).
type OutputCommand struct {
	OutputNo    uint8
	ControlCode uint8
	TimerCount  uint16
}

func (OutputCommand) CommandID() CommandID { return CmdOut }

// LedColorTimer is one LED sub-block (temporary or permanent state).
// Permanent state carries no timer on the wire; TimerCount is ignored
// when encoding the permanent block.
type LedColorTimer struct {
	ControlCode uint8
	OnCount     uint8
	OffCount    uint8
	OnColor     uint8
	OffColor    uint8
	TimerCount  uint16
}

// LedCommand is the CMD_LED payload.
type LedCommand struct {
	Reader    uint8
	LedNumber uint8
	Temporary LedColorTimer
	Permanent LedColorTimer
}

func (LedCommand) CommandID() CommandID { return CmdLed }

// BuzzerCommand is the CMD_BUZ payload.
type BuzzerCommand struct {
	Reader      uint8
	ControlCode uint8
	OnCount     uint8
	OffCount    uint8
	RepCount    uint8
}

func (BuzzerCommand) CommandID() CommandID { return CmdBuz }

// TextMaxLen is the configured maximum length of a TEXT command's data
// (spec.md §3, "TEXT carries up to a configured max length, e.g. 32
// bytes").
const TextMaxLen = 32

// TextCommand is the CMD_TEXT payload.
type TextCommand struct {
	Reader      uint8
	ControlCode uint8
	TempTime    uint8
	OffsetRow   uint8
	OffsetCol   uint8
	Data        []byte
}

func (TextCommand) CommandID() CommandID { return CmdText }

// ComsetCommand is the CMD_COMSET payload.
type ComsetCommand struct {
	Address uint8
	Baud    uint32
}

func (ComsetCommand) CommandID() CommandID { return CmdComset }

// KeysetKeyType is the only key type this engine accepts.
const KeysetKeyType = 1 // SCBK

// KeysetKeyLen is the only key length this engine accepts.
const KeysetKeyLen = 16

// KeysetCommand is the CMD_KEYSET payload.
type KeysetCommand struct {
	KeyType uint8
	KeyLen  uint8
	Key     [16]byte
}

func (KeysetCommand) CommandID() CommandID { return CmdKeyset }

// BareCommand is POLL/LSTAT/ISTAT/OSTAT/RSTAT (no payload) or
// ID/CAP/DIAG (a single reserved reply-type byte, always 0 here).
// Unlike OutputCommand et al. these are not part of the application
// Command union (spec.md §3) but the session machines enqueue them
// through the same queue the real firmware uses for every outgoing
// message (cp_cmd_dispatcher allocates POLL/ID/CAP exactly like an
// application command), so BareCommand implements Command too.
type BareCommand struct {
	ID CommandID
}

func (b BareCommand) CommandID() CommandID { return b.ID }

// ChlngCommand is the CMD_CHLNG payload: the CP's random challenge.
type ChlngCommand struct {
	CPRandom [8]byte
}

func (ChlngCommand) CommandID() CommandID { return CmdChlng }

// ScryptCommand is the CMD_SCRYPT payload: the CP's cryptogram.
type ScryptCommand struct {
	CPCryptogram [16]byte
}

func (ScryptCommand) CommandID() CommandID { return CmdScrypt }

// EncodeCommand encodes any Command variant: the six application
// commands plus the protocol-internal BareCommand/ChlngCommand/
// ScryptCommand the session machines enqueue alongside them.
func EncodeCommand(enc *Encoder, cmd Command) error {
	switch c := cmd.(type) {
	case BareCommand:
		switch c.ID {
		case CmdID, CmdCap, CmdDiag:
			enc.u8(uint8(c.ID))
			enc.u8(0)
		default:
			enc.u8(uint8(c.ID))
		}
	case ChlngCommand:
		enc.u8(uint8(CmdChlng))
		enc.bytes(c.CPRandom[:])
	case ScryptCommand:
		enc.u8(uint8(CmdScrypt))
		enc.bytes(c.CPCryptogram[:])
	case OutputCommand:
		enc.u8(uint8(CmdOut))
		enc.u8(c.OutputNo)
		enc.u8(c.ControlCode)
		enc.u16le(c.TimerCount)
	case LedCommand:
		enc.u8(uint8(CmdLed))
		enc.u8(c.Reader)
		enc.u8(c.LedNumber)
		enc.u8(c.Temporary.ControlCode)
		enc.u8(c.Temporary.OnCount)
		enc.u8(c.Temporary.OffCount)
		enc.u8(c.Temporary.OnColor)
		enc.u8(c.Temporary.OffColor)
		enc.u16le(c.Temporary.TimerCount)
		enc.u8(c.Permanent.ControlCode)
		enc.u8(c.Permanent.OnCount)
		enc.u8(c.Permanent.OffCount)
		enc.u8(c.Permanent.OnColor)
		enc.u8(c.Permanent.OffColor)
	case BuzzerCommand:
		enc.u8(uint8(CmdBuz))
		enc.u8(c.Reader)
		enc.u8(c.ControlCode)
		enc.u8(c.OnCount)
		enc.u8(c.OffCount)
		enc.u8(c.RepCount)
	case TextCommand:
		if len(c.Data) > TextMaxLen {
			return ErrTextTooLong
		}
		enc.u8(uint8(CmdText))
		enc.u8(c.Reader)
		enc.u8(c.ControlCode)
		enc.u8(c.TempTime)
		enc.u8(c.OffsetRow)
		enc.u8(c.OffsetCol)
		enc.u8(uint8(len(c.Data)))
		enc.bytes(c.Data)
	case ComsetCommand:
		enc.u8(uint8(CmdComset))
		enc.u8(c.Address)
		enc.u32le(c.Baud)
	case KeysetCommand:
		enc.u8(uint8(CmdKeyset))
		enc.u8(c.KeyType)
		enc.u8(c.KeyLen)
		enc.bytes(c.Key[:])
	default:
		return ErrUnknownCommand
	}
	return nil
}

// DecodeCommand parses the command id and, where applicable, its
// payload from buf (the frame's data bytes, id byte first). For
// POLL/LSTAT/ISTAT/OSTAT/RSTAT/ID/CAP/DIAG it returns a BareCommand
// carrying only the id.
func DecodeCommand(buf []byte) (CommandID, Command, error) {
	if len(buf) < 1 {
		return 0, nil, ErrShortBuffer
	}
	id := CommandID(buf[0])
	d := NewDecoder(buf[1:])

	switch id {
	case CmdPoll, CmdLstat, CmdIstat, CmdOstat, CmdRstat:
		if d.Remaining() != 0 {
			return id, nil, ErrLengthMismatch
		}
		return id, BareCommand{ID: id}, nil
	case CmdID, CmdCap, CmdDiag:
		if d.Remaining() != 1 {
			return id, nil, ErrLengthMismatch
		}
		_, _ = d.u8() // reply-type byte, unused
		return id, BareCommand{ID: id}, nil
	case CmdOut:
		if d.Remaining() != 4 {
			return id, nil, ErrLengthMismatch
		}
		outNo, _ := d.u8()
		ctrl, _ := d.u8()
		timer, _ := d.u16le()
		return id, OutputCommand{OutputNo: outNo, ControlCode: ctrl, TimerCount: timer}, nil
	case CmdLed:
		if d.Remaining() != 14 {
			return id, nil, ErrLengthMismatch
		}
		var c LedCommand
		c.Reader, _ = d.u8()
		c.LedNumber, _ = d.u8()
		c.Temporary.ControlCode, _ = d.u8()
		c.Temporary.OnCount, _ = d.u8()
		c.Temporary.OffCount, _ = d.u8()
		c.Temporary.OnColor, _ = d.u8()
		c.Temporary.OffColor, _ = d.u8()
		c.Temporary.TimerCount, _ = d.u16le()
		c.Permanent.ControlCode, _ = d.u8()
		c.Permanent.OnCount, _ = d.u8()
		c.Permanent.OffCount, _ = d.u8()
		c.Permanent.OnColor, _ = d.u8()
		c.Permanent.OffColor, _ = d.u8()
		return id, c, nil
	case CmdBuz:
		if d.Remaining() != 5 {
			return id, nil, ErrLengthMismatch
		}
		var c BuzzerCommand
		c.Reader, _ = d.u8()
		c.ControlCode, _ = d.u8()
		c.OnCount, _ = d.u8()
		c.OffCount, _ = d.u8()
		c.RepCount, _ = d.u8()
		return id, c, nil
	case CmdText:
		if d.Remaining() < 6 {
			return id, nil, ErrLengthMismatch
		}
		var c TextCommand
		c.Reader, _ = d.u8()
		c.ControlCode, _ = d.u8()
		c.TempTime, _ = d.u8()
		c.OffsetRow, _ = d.u8()
		c.OffsetCol, _ = d.u8()
		n, _ := d.u8()
		if n > TextMaxLen {
			return id, nil, ErrTextTooLong
		}
		if d.Remaining() != int(n) {
			return id, nil, ErrLengthMismatch
		}
		data, err := d.bytes(int(n))
		if err != nil {
			return id, nil, err
		}
		c.Data = append([]byte(nil), data...) // read exactly once, own copy
		return id, c, nil
	case CmdComset:
		if d.Remaining() != 5 {
			return id, nil, ErrLengthMismatch
		}
		var c ComsetCommand
		c.Address, _ = d.u8()
		c.Baud, _ = d.u32le()
		return id, c, nil
	case CmdKeyset:
		if d.Remaining() != 18 {
			return id, nil, ErrLengthMismatch
		}
		var c KeysetCommand
		c.KeyType, _ = d.u8()
		c.KeyLen, _ = d.u8()
		key, err := d.bytes(16)
		if err != nil {
			return id, nil, err
		}
		copy(c.Key[:], key)
		if c.KeyType != KeysetKeyType || c.KeyLen != KeysetKeyLen {
			return id, c, ErrInvalidKeyParam
		}
		return id, c, nil
	case CmdChlng:
		if d.Remaining() != 8 {
			return id, nil, ErrLengthMismatch
		}
		var c ChlngCommand
		random, _ := d.bytes(8)
		copy(c.CPRandom[:], random)
		return id, c, nil
	case CmdScrypt:
		if d.Remaining() != 16 {
			return id, nil, ErrLengthMismatch
		}
		var c ScryptCommand
		crypto, _ := d.bytes(16)
		copy(c.CPCryptogram[:], crypto)
		return id, c, nil
	default:
		return id, nil, ErrUnknownCommand
	}
}
