package pd

import "github.com/go-osdp/osdp/msg"

func (c *Context) capability(fn msg.CapabilityFunction) (msg.Capability, bool) {
	for _, cap := range c.cfg.Capabilities {
		if cap.Function == fn {
			return cap, true
		}
	}
	return msg.Capability{}, false
}

// capable reports whether a capability row is present and declares
// both a nonzero compliance level and item count, the same two-field
// check pd_cmd_cap_ok runs in the reference firmware.
func (c *Context) capable(fn msg.CapabilityFunction) bool {
	cap, ok := c.capability(fn)
	return ok && cap.Compliance != 0 && cap.NumItems != 0
}

func nak(reason msg.NakReason) (msg.ReplyID, msg.Reply) {
	return msg.ReplyNak, msg.NakReply{Reason: reason}
}

// handleCommand decodes one incoming frame's data and returns the
// reply to send (spec.md §4.6, command dispatch table).
func (c *Context) handleCommand(data []byte) (msg.ReplyID, msg.Reply) {
	id, cmd, err := msg.DecodeCommand(data)
	if err != nil {
		if err == msg.ErrUnknownCommand {
			return nak(msg.NakCmdUnknown)
		}
		return nak(msg.NakCmdLen)
	}

	switch id {
	case msg.CmdPoll:
		return c.buildPollReply()

	case msg.CmdLstat:
		return msg.ReplyLstatr, msg.LstatrReply{Tamper: c.tamper, Power: c.power}

	case msg.CmdIstat, msg.CmdOstat:
		// No REPLY_ISTATR/REPLY_OSTATR layout exists in this engine;
		// both are always capability-gated to NAK (spec.md §4.6).
		return nak(msg.NakCmdUnknown)

	case msg.CmdRstat:
		return msg.ReplyRstatr, msg.RstatrReply{Tamper: c.readerTamper}

	case msg.CmdID:
		pid := c.cfg.Identity
		return msg.ReplyPdid, msg.PdidReply{
			VendorCode: pid.VendorCode,
			ModelNo:    pid.ModelNo,
			Version:    pid.Version,
			Serial:     pid.Serial,
			Firmware:   pid.Firmware,
		}

	case msg.CmdCap:
		return msg.ReplyPdcap, msg.PdcapReply{Capabilities: c.cfg.Capabilities}

	case msg.CmdOut:
		if !c.capable(msg.CapOutputControl) {
			return nak(msg.NakCmdUnknown)
		}
		out := cmd.(msg.OutputCommand)
		if c.callback != nil {
			if err := c.callback.OnOutput(out); err != nil {
				return nak(msg.NakRecord)
			}
		}
		return msg.ReplyAck, nil

	case msg.CmdLed:
		if !c.capable(msg.CapReaderLED) {
			return nak(msg.NakCmdUnknown)
		}
		led := cmd.(msg.LedCommand)
		if c.callback != nil {
			if err := c.callback.OnLed(led); err != nil {
				return nak(msg.NakRecord)
			}
		}
		return msg.ReplyAck, nil

	case msg.CmdBuz:
		if !c.capable(msg.CapReaderAudibleOutput) {
			return nak(msg.NakCmdUnknown)
		}
		buz := cmd.(msg.BuzzerCommand)
		if c.callback != nil {
			if err := c.callback.OnBuzzer(buz); err != nil {
				return nak(msg.NakRecord)
			}
		}
		return msg.ReplyAck, nil

	case msg.CmdText:
		if !c.capable(msg.CapReaderTextOutput) {
			return nak(msg.NakCmdUnknown)
		}
		text := cmd.(msg.TextCommand)
		if c.callback != nil {
			if err := c.callback.OnText(text); err != nil {
				return nak(msg.NakRecord)
			}
		}
		return msg.ReplyAck, nil

	case msg.CmdComset:
		return c.handleComset(cmd.(msg.ComsetCommand))

	case msg.CmdKeyset:
		return c.handleKeyset(cmd.(msg.KeysetCommand))

	case msg.CmdChlng:
		return c.handleChlng(cmd.(msg.ChlngCommand))

	case msg.CmdScrypt:
		return c.handleScrypt(cmd.(msg.ScryptCommand))

	default:
		return nak(msg.NakCmdUnknown)
	}
}

// buildPollReply reports the oldest queued event, or ACK when the
// queue is empty: POLL never fails (spec.md §4.6).
func (c *Context) buildPollReply() (msg.ReplyID, msg.Reply) {
	ev, err := c.events.Dequeue()
	if err != nil {
		return msg.ReplyAck, nil
	}
	switch ev.Kind {
	case EventKeypad:
		return msg.ReplyKeyppad, msg.KeyppadReply{Reader: ev.Reader, Digits: ev.Digits}
	case EventCardRaw:
		return msg.ReplyRaw, msg.RawReply{
			Reader:   ev.Reader,
			Format:   ev.Format,
			BitCount: uint16(len(ev.Data) * 8),
			Data:     ev.Data,
		}
	case EventCardFmt:
		return msg.ReplyFmt, msg.FmtReply{Reader: ev.Reader, Data: ev.Data}
	default:
		return msg.ReplyAck, nil
	}
}

// handleComset validates the requested address/baud, runs the
// application hook, and stages the switch for after the reply actually
// ships (see Context.sendReply): this fixes the reference firmware's
// ordering, which flips pd->address/baud_rate while still building the
// reply buffer, ahead of the channel send that must still go out under
// the old parameters.
func (c *Context) handleComset(cmd msg.ComsetCommand) (msg.ReplyID, msg.Reply) {
	addr, baud := cmd.Address, cmd.Baud
	if addr > 0x7F || (baud != 9600 && baud != 38400 && baud != 115200) {
		addr, baud = c.cfg.Address, c.currentBaud
	}
	if c.callback != nil {
		if err := c.callback.OnComset(msg.ComsetCommand{Address: addr, Baud: baud}); err != nil {
			return nak(msg.NakRecord)
		}
	}
	c.pendingComset = &comsetParams{Address: addr, Baud: baud}
	return msg.ReplyCom, msg.ComReply{Address: addr, Baud: baud}
}

// handleKeyset validates and installs a new SCBK. The key is committed
// only after the application callback accepts it, fixing the reference
// firmware's ordering bug of writing pd->sc.scbk before the callback
// could reject the command (spec.md §4.6, KEYSET requires ONLINE +
// SC_ACTIVE).
func (c *Context) handleKeyset(cmd msg.KeysetCommand) (msg.ReplyID, msg.Reply) {
	if !c.scCapable {
		return nak(msg.NakScUnsup)
	}
	if !c.scActive {
		return nak(msg.NakScCond)
	}
	if cmd.KeyType != msg.KeysetKeyType || cmd.KeyLen != msg.KeysetKeyLen {
		return nak(msg.NakRecord)
	}
	if c.callback != nil {
		if err := c.callback.OnKeyset(cmd); err != nil {
			return nak(msg.NakRecord)
		}
	}
	c.scbk = cmd.Key
	installed := c.scbk
	c.cfg.SCBK = &installed // leaves install mode for later handshakes
	c.crypto.SetSCBK(c.scbk)
	c.useSCBKD = false
	return msg.ReplyAck, nil
}

// handleChlng starts a fresh handshake attempt: it resets SC_ACTIVE,
// draws this PD's random challenge, and answers with CCRYPT (spec.md
// §6, Secure Channel).
func (c *Context) handleChlng(cmd msg.ChlngCommand) (msg.ReplyID, msg.Reply) {
	if !c.scCapable {
		return nak(msg.NakScUnsup)
	}
	c.crypto.Init()
	c.scActive = false
	c.cpAuthOK = false
	c.cpRandom = cmd.CPRandom
	if err := c.crypto.FillRandom(c.pdRandom[:]); err != nil {
		return nak(msg.NakRecord)
	}
	return msg.ReplyCcrypt, msg.CcryptReply{
		CUID:         c.cfg.CUID,
		PDChallenge:  c.pdRandom,
		PDCryptogram: c.computePDCryptogram(),
	}
}

// computePDCryptogram picks the installed key (or the well-known
// SCBK-D fallback in install mode), derives the session keys, and
// returns this PD's half of the mutual-auth cryptogram exchange.
func (c *Context) computePDCryptogram() [16]byte {
	c.useSCBKD = c.cfg.SCBK == nil
	scbk := c.scbk
	if c.useSCBKD {
		scbk = c.crypto.ComputeSCBK([16]byte{}, c.cfg.Address, true)
	}
	c.crypto.ComputeSessionKeys(scbk, c.cpRandom, c.pdRandom)
	return c.crypto.ComputePDCryptogram()
}

// handleScrypt verifies the CP's cryptogram, latches SC_ACTIVE on
// success, and answers with this handshake's closing R-MAC (spec.md
// §6).
func (c *Context) handleScrypt(cmd msg.ScryptCommand) (msg.ReplyID, msg.Reply) {
	if !c.scCapable {
		return nak(msg.NakScUnsup)
	}
	c.cpAuthOK = c.crypto.VerifyCPCryptogram(cmd.CPCryptogram)
	if c.cpAuthOK {
		c.scActive = true
	}
	return msg.ReplyRmacI, msg.RmacIReply{RMAC: c.crypto.ComputeRMACI()}
}
