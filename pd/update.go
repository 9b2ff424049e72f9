package pd

import (
	"time"

	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/phy"
)

// outgoingSCB computes the secure block a reply should carry: SCS12/14
// tag the two handshake replies; once SC_ACTIVE, every other reply is
// tagged SCS16 (bare) or SCS18 (data-bearing); otherwise no reply
// carries one (spec.md §4.3, SCS tagging rule).
func (c *Context) outgoingSCB(replyID msg.ReplyID, hasData bool) *phy.SecureBlock {
	switch replyID {
	case msg.ReplyCcrypt:
		ctrl := uint8(1)
		if c.useSCBKD {
			ctrl = 0
		}
		return &phy.SecureBlock{Tag: msg.SCS12, Control: ctrl}
	case msg.ReplyRmacI:
		ctrl := uint8(0)
		if c.cpAuthOK {
			ctrl = 1
		}
		return &phy.SecureBlock{Tag: msg.SCS14, Control: ctrl}
	}
	if !c.scActive {
		return nil
	}
	if hasData {
		return &phy.SecureBlock{Tag: msg.SCS18}
	}
	return &phy.SecureBlock{Tag: msg.SCS16}
}

// sendReply encodes and frames replyID/reply and writes it to the
// channel. A COMSET reply that ships successfully then adopts its
// staged new address/baud, matching the reference firmware's intent
// (switch only once the old-parameter reply is actually out the door)
// without its actual bug (flipping the fields mid reply-build).
func (c *Context) sendReply(replyID msg.ReplyID, reply msg.Reply) error {
	enc := msg.NewEncoder(make([]byte, 0, phy.MaxFrameSize))
	if reply == nil {
		msg.EncodeBareReply(enc, replyID)
	} else if err := msg.EncodeReply(enc, reply); err != nil {
		return err
	}
	payload := enc.Bytes()

	f := phy.Frame{
		Address:  c.cfg.Address,
		Sequence: c.sequence,
		Reply:    true,
		SCB:      c.outgoingSCB(replyID, len(payload) > 1),
	}
	dataOffset, err := phy.Init(c.txBuf, f)
	if err != nil {
		return err
	}
	copy(c.txBuf[dataOffset:], payload)
	total, err := phy.Finalize(c.txBuf, f, len(payload))
	if err != nil {
		return err
	}
	if _, err := c.cfg.Channel.Send(c.txBuf[:total]); err != nil {
		return err
	}

	if replyID == msg.ReplyCom && c.pendingComset != nil {
		c.cfg.Address = c.pendingComset.Address
		c.currentBaud = c.pendingComset.Baud
		c.pendingComset = nil
	}
	return nil
}

// Update drives one tick of the phy/dispatch machine (component C7).
// Callers run it from a ticker; Update itself never blocks.
func (c *Context) Update() {
	now := time.Now()

	switch c.phy {
	case phyIdle:
		wasEmpty := len(c.rxBuf) == 0
		n, err := c.cfg.Channel.Recv(c.recvTmp)
		if err != nil {
			c.log.Warn("recv failed: %v", err)
			c.phy = phyErr
			return
		}
		if n > 0 {
			if wasEmpty {
				c.tstamp = now
			}
			c.rxBuf = append(c.rxBuf, c.recvTmp[:n]...)
		}
		if len(c.rxBuf) > 0 && now.Sub(c.tstamp) > c.cfg.RespTimeout {
			// A command arrived after a timeout discards any
			// established secure channel (spec.md §5).
			c.log.Warn("receive timeout, discarding in-flight frame")
			c.phy = phyErr
			return
		}

		frame, data, derr := phy.Decode(c.rxBuf, len(c.rxBuf))
		switch derr {
		case nil:
			if frame.Address != c.cfg.Address || frame.Reply {
				c.rxBuf = c.rxBuf[:0]
				return
			}
			replyID, reply := c.handleCommand(data)
			if err := c.sendReply(replyID, reply); err != nil {
				c.log.Warn("send failed: %v", err)
				c.phy = phyErr
				return
			}
			c.sequence = phy.NextSequence(c.sequence)
			c.rxBuf = c.rxBuf[:0]
		case phy.ErrWait:
			return
		case phy.ErrSkip:
			c.rxBuf = c.rxBuf[:0]
			if err := c.cfg.Channel.Flush(); err != nil {
				c.log.Warn("flush failed: %v", err)
			}
		default: // phy.ErrFormat
			c.rxBuf = c.rxBuf[:0]
			c.phy = phyErr
		}

	case phyErr:
		c.scActive = false
		c.rxBuf = c.rxBuf[:0]
		if err := c.cfg.Channel.Flush(); err != nil {
			c.log.Warn("flush failed: %v", err)
		}
		c.phy = phyIdle
	}
}
