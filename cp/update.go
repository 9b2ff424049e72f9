package cp

import (
	"time"

	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/phy"
)

// maxPhyStepsPerTick bounds how many internal phy transitions one
// Update() call lets a single PD cascade through, so a PD that just
// became idle can send its next command the same tick instead of
// waiting a full poll period.
const maxPhyStepsPerTick = 4

// phyResult is what one phyStep call reports up to the session
// machine: either nothing happened yet, a reply arrived, the PD asked
// for a retry (BUSY), the phy gave up (ERR), or the phy cycled back to
// IDLE with nothing queued to send.
type phyResult struct {
	outcome phyOutcome
	replyID msg.ReplyID
	reply   msg.Reply
}

// enqueueBare stages a no-payload/reserved-byte command (POLL, ID, CAP,
// ...) for the next phy send.
func (p *pd) enqueueBare(id msg.CommandID) {
	_ = p.queue.Enqueue(msg.BareCommand{ID: id})
}

// scbkControlByte is the CHLNG secure-block control byte: 1 when the
// CP is authenticating with a derived per-PD SCBK, 0 when it uses the
// well-known SCBK-D fallback key (spec.md §4.3).
func (p *pd) scbkControlByte() uint8 {
	if p.useSCBKD {
		return 0
	}
	return 1
}

// outgoingSCB computes the secure block a given outgoing command
// should carry: SCS11/13 tag the two handshake commands; once
// scActive, every other command is tagged SCS15 (bare) or SCS17 (data-
// bearing); outside the handshake and before scActive, no PD has
// negotiated SC yet, so no command carries one (spec.md §4.3, SCS
// tagging rule).
func (p *pd) outgoingSCB(cmdID msg.CommandID, hasData bool) *phy.SecureBlock {
	switch cmdID {
	case msg.CmdChlng:
		return &phy.SecureBlock{Tag: msg.SCS11, Control: p.scbkControlByte()}
	case msg.CmdScrypt:
		return &phy.SecureBlock{Tag: msg.SCS13}
	}
	if !p.scActive {
		return nil
	}
	if hasData {
		return &phy.SecureBlock{Tag: msg.SCS17}
	}
	return &phy.SecureBlock{Tag: msg.SCS15}
}

// sendFrame encodes cmd, wraps it in a phy frame with the appropriate
// secure block, and writes it to the channel.
func (p *pd) sendFrame(cmd msg.Command) error {
	enc := msg.NewEncoder(make([]byte, 0, phy.MaxFrameSize))
	if err := msg.EncodeCommand(enc, cmd); err != nil {
		return err
	}
	payload := enc.Bytes()

	f := phy.Frame{
		Address:  p.cfg.Address,
		Sequence: p.sequence,
		SCB:      p.outgoingSCB(cmd.CommandID(), len(payload) > 1),
	}

	dataOffset, err := phy.Init(p.txBuf, f)
	if err != nil {
		return err
	}
	copy(p.txBuf[dataOffset:], payload)
	total, err := phy.Finalize(p.txBuf, f, len(payload))
	if err != nil {
		return err
	}
	_, err = p.cfg.Channel.Send(p.txBuf[:total])
	return err
}

// nextOutgoing dequeues the next queued command. The session machine
// stages POLL and the handshake commands, and SendCommand enqueues the
// application commands; all of them travel through the same queue (grounded on cp_cmd_dispatcher in the reference firmware,
// which allocates internal and application commands identically).
func (p *pd) nextOutgoing() (msg.Command, bool) {
	cmd, err := p.queue.Dequeue()
	if err != nil {
		return nil, false
	}
	return cmd, true
}

// phyStep advances the C5 phy state machine by at most
// maxPhyStepsPerTick internal transitions and returns what the
// session machine should react to (spec.md §4.4).
func (p *pd) phyStep(now time.Time, cfg Config) phyResult {
	for i := 0; i < maxPhyStepsPerTick; i++ {
		switch p.phy {
		case phyIdle:
			cmd, ok := p.nextOutgoing()
			if !ok {
				return phyResult{outcome: outcomeCanYield}
			}
			p.stagedCmd = cmd
			p.phy = phySendCmd

		case phySendCmd:
			p.rxBuf = p.rxBuf[:0]
			if err := p.sendFrame(p.stagedCmd); err != nil {
				p.log.Warn("pd %d: send failed: %v", p.cfg.Address, err)
				p.phy = phyErr
				continue
			}
			p.sequence = phy.NextSequence(p.sequence)
			p.phyTstamp = now
			p.awaitingResp = true
			p.phy = phyReplyWait
			return phyResult{outcome: outcomeNone}

		case phyReplyWait:
			n, err := p.cfg.Channel.Recv(p.recvTmp)
			if err != nil {
				p.log.Warn("pd %d: recv failed: %v", p.cfg.Address, err)
				p.phy = phyErr
				continue
			}
			if n > 0 {
				p.rxBuf = append(p.rxBuf, p.recvTmp[:n]...)
			}

			frame, data, derr := phy.Decode(p.rxBuf, len(p.rxBuf))
			switch derr {
			case nil:
				if frame.Address != p.cfg.Address || !frame.Reply {
					p.rxBuf = p.rxBuf[:0]
					p.phy = phyErr
					continue
				}
				replyID, reply, rerr := msg.DecodeReply(data)
				p.rxBuf = p.rxBuf[:0]
				p.awaitingResp = false
				if rerr != nil {
					p.phy = phyErr
					continue
				}
				if replyID == msg.ReplyBusy {
					p.phyTstamp = now
					p.phy = phyWait
					return phyResult{outcome: outcomeRetry}
				}
				p.phy = phyCleanup
				return phyResult{outcome: outcomeReply, replyID: replyID, reply: reply}
			case phy.ErrWait:
				if now.Sub(p.phyTstamp) > cfg.RespTimeout {
					p.phy = phyErr
					continue
				}
				return phyResult{outcome: outcomeNone}
			case phy.ErrSkip:
				p.rxBuf = p.rxBuf[1:]
				continue
			default: // phy.ErrFormat
				p.rxBuf = p.rxBuf[:0]
				p.phy = phyErr
				continue
			}

		case phyWait:
			if now.Sub(p.phyTstamp) < cfg.CmdRetryWait {
				return phyResult{outcome: outcomeNone}
			}
			p.phy = phySendCmd

		case phyCleanup:
			p.stagedCmd = nil
			p.phy = phyIdle

		case phyErr:
			p.stagedCmd = nil
			p.awaitingResp = false
			p.rxBuf = p.rxBuf[:0]
			p.phyTstamp = now
			p.phy = phyErrWait
			return phyResult{outcome: outcomeGeneric}

		case phyErrWait:
			if now.Sub(p.phyTstamp) < cfg.OfflineRetryWait {
				return phyResult{outcome: outcomeNone}
			}
			p.phy = phyIdle
		}
	}
	return phyResult{outcome: outcomeNone}
}

// recordCapabilities stores a PDCAP reply's entries and derives
// scCapable from the communication-security row's bit0 (spec.md §4.2).
func (c *Context) recordCapabilities(p *pd, reply msg.Reply) {
	pdcap, ok := reply.(msg.PdcapReply)
	if !ok {
		return
	}
	for _, cap := range pdcap.Capabilities {
		p.capabilities[cap.Function] = cap
		if cap.Function == msg.CapCommunicationSecurity && cap.Compliance&0x01 != 0 {
			p.scCapable = true
		}
	}
}

// observeOnlineReply dispatches the event-bearing replies POLL can
// return once ONLINE (spec.md §4.6: keypad and card-read events ride
// the poll response rather than their own queue).
func (c *Context) observeOnlineReply(p *pd, result phyResult) {
	switch r := result.reply.(type) {
	case msg.KeyppadReply:
		if c.onKeyPress != nil {
			for _, k := range r.Digits {
				c.onKeyPress(p.cfg.Address, k)
			}
		}
	case msg.RawReply:
		if c.onCardRead != nil {
			c.onCardRead(p.cfg.Address, r.Format, r.Data)
		}
	case msg.FmtReply:
		if c.onCardRead != nil {
			c.onCardRead(p.cfg.Address, msg.CardFormatASCII, r.Data)
		}
	case msg.NakReply:
		p.log.Warn("pd %d: NAK reason=%d", p.cfg.Address, r.Reason)
	}
}

// toOffline drops a PD's session to OFFLINE: the queue is drained, any
// secure-channel state is invalidated, and the phy is reset, so the
// next recovery attempt restarts the whole handshake from scratch
// (spec.md §4.5, "loss of sync takes the PD OFFLINE").
func (c *Context) toOffline(p *pd, now time.Time) {
	p.session = sessionOffline
	p.scActive = false
	p.useSCBKD = false
	p.scbkdDone = false
	p.queue.Drain()
	p.stagedCmd = nil
	p.phy = phyIdle
	p.tstamp = now
	p.log.Warn("pd %d: offline", p.cfg.Address)
}

// masterKeyOrZero returns the configured master key, or the zero key
// when running with no secure PDs configured at all (SCBK derivation
// is never reached in that case, but ComputeSCBK still needs a value
// to pass).
func (c *Context) masterKeyOrZero() [16]byte {
	if c.cfg.MasterKey != nil {
		return *c.cfg.MasterKey
	}
	return [16]byte{}
}

// maybeEnqueue stages the next command for a PD whose phy just went
// idle with nothing queued: the one-shot setup action for whatever
// session state the PD is currently in (spec.md §4.5).
func (c *Context) maybeEnqueue(p *pd, now time.Time) {
	switch p.session {
	case sessionInit:
		p.session = sessionIDReq
		p.enqueueBare(msg.CmdID)

	case sessionIDReq:
		p.enqueueBare(msg.CmdID)

	case sessionCapDet:
		p.enqueueBare(msg.CmdCap)

	case sessionSCInit:
		p.crypto.Init()
		if err := p.crypto.FillRandom(p.cpRandom[:]); err != nil {
			p.log.Error("pd %d: random source failed: %v", p.cfg.Address, err)
			c.toOffline(p, now)
			return
		}
		if err := p.queue.Enqueue(msg.ChlngCommand{CPRandom: p.cpRandom}); err != nil {
			return
		}
		p.session = sessionSCChlng

	case sessionSCChlng:
		// waiting on the CCRYPT round trip; nothing new to stage.

	case sessionSCScrypt:
		// waiting on the RMAC_I round trip; the SCRYPT command was
		// already staged when the CCRYPT reply was processed.

	case sessionSetSCBK:
		if !p.scbkdDone {
			key := p.crypto.ComputeSCBK(c.masterKeyOrZero(), p.cfg.Address, false)
			if p.cfg.SCBK != nil {
				key = *p.cfg.SCBK
			}
			p.scbk = key
			p.crypto.SetSCBK(key)
			if err := p.queue.Enqueue(msg.KeysetCommand{
				KeyType: msg.KeysetKeyType,
				KeyLen:  msg.KeysetKeyLen,
				Key:     key,
			}); err != nil {
				return
			}
			p.scbkdDone = true
		}

	case sessionOnline:
		if now.Sub(p.tstamp) >= c.cfg.PollInterval() {
			p.tstamp = now
			p.enqueueBare(msg.CmdPoll)
		}

	case sessionOffline:
		if now.Sub(p.tstamp) >= c.cfg.OfflineRetryWait {
			p.tstamp = now
			p.session = sessionInit
		}
	}
}

// scChlngSoftFail implements the one exemption from "any phy/decoder
// failure takes the PD offline": a failure while in SC_CHLNG retries
// once with the well-known SCBK-D key before giving up SC entirely and
// continuing ONLINE without it (spec.md §4.5, §7 "A phy error in
// SC_CHLNG is soft").
func (c *Context) scChlngSoftFail(p *pd, now time.Time) {
	if !p.useSCBKD {
		p.useSCBKD = true
		p.session = sessionSCInit
		return
	}
	p.scActive = false
	p.tstamp = now
	p.session = sessionOnline
}

// sessionStep advances the C6 session machine from a tick's phy
// outcome (spec.md §4.5). outcomeGeneric and outcomeCanYield are
// handled uniformly for every state except SC_CHLNG, which soft-fails
// instead of going offline; outcomeReply is handled per current state
// since each state expects a different reply.
func (c *Context) sessionStep(p *pd, now time.Time, result phyResult) {
	switch result.outcome {
	case outcomeGeneric:
		if p.session == sessionSCChlng {
			c.scChlngSoftFail(p, now)
			return
		}
		c.toOffline(p, now)
		return
	case outcomeCanYield:
		c.maybeEnqueue(p, now)
		return
	case outcomeRetry, outcomeNone:
		return
	}

	switch p.session {
	case sessionIDReq:
		if result.replyID != msg.ReplyPdid {
			c.toOffline(p, now)
			return
		}
		p.session = sessionCapDet

	case sessionCapDet:
		if result.replyID != msg.ReplyPdcap {
			c.toOffline(p, now)
			return
		}
		c.recordCapabilities(p, result.reply)
		if p.cfg.UseSecureChannel && p.scCapable {
			p.session = sessionSCInit
		} else {
			p.tstamp = now
			p.session = sessionOnline
		}

	case sessionSCChlng:
		if result.replyID != msg.ReplyCcrypt {
			c.scChlngSoftFail(p, now)
			return
		}
		ccrypt, ok := result.reply.(msg.CcryptReply)
		if !ok {
			c.toOffline(p, now)
			return
		}
		scbk := p.crypto.ComputeSCBK(c.masterKeyOrZero(), p.cfg.Address, p.useSCBKD)
		if p.cfg.SCBK != nil {
			scbk = *p.cfg.SCBK
		}
		p.scbk = scbk
		p.pdCUID = ccrypt.CUID
		p.pdRandom = ccrypt.PDChallenge
		p.crypto.ComputeSessionKeys(scbk, p.cpRandom, p.pdRandom)
		if !p.crypto.VerifyPDCryptogram(ccrypt.PDCryptogram) {
			if !p.useSCBKD {
				// retry the whole handshake with the well-known
				// SCBK-D key before giving up (spec.md §6).
				p.useSCBKD = true
				p.session = sessionSCInit
				return
			}
			c.toOffline(p, now)
			return
		}
		cryptogram := p.crypto.ComputeCPCryptogram()
		if err := p.queue.Enqueue(msg.ScryptCommand{CPCryptogram: cryptogram}); err != nil {
			c.toOffline(p, now)
			return
		}
		p.session = sessionSCScrypt

	case sessionSCScrypt:
		if result.replyID != msg.ReplyRmacI {
			c.toOffline(p, now)
			return
		}
		p.scActive = true
		if p.useSCBKD {
			p.session = sessionSetSCBK
		} else {
			p.tstamp = now
			p.session = sessionOnline
		}

	case sessionSetSCBK:
		switch result.replyID {
		case msg.ReplyAck:
			// Re-handshake under the freshly installed key before
			// going ONLINE, and reset the sequence counter since this
			// is effectively a new session (spec.md §4.5, SET_SCBK).
			p.useSCBKD = false
			p.scActive = false
			p.sequence = 0
			p.session = sessionSCInit
		case msg.ReplyNak:
			// PD rejected the new key; keep running under SCBK-D.
			p.tstamp = now
			p.session = sessionOnline
		default:
			c.toOffline(p, now)
		}

	case sessionOnline:
		c.observeOnlineReply(p, result)
	}
}

// Update drives one tick of every configured PD's phy and session
// machines (component C8). Callers run it from a ticker at roughly
// the configured poll rate; Update itself never blocks.
func (c *Context) Update() {
	now := time.Now()
	for _, p := range c.pds {
		result := p.phyStep(now, c.cfg)
		c.sessionStep(p, now, result)
	}
}
