package cp

import (
	"testing"
	"time"

	"github.com/go-osdp/osdp/channel/memchannel"
	"github.com/go-osdp/osdp/msg"
)

func newSecureSoloCtx(t *testing.T) (*Context, *pd) {
	t.Helper()
	cpEnd, _ := memchannel.NewPair()
	key := [16]byte{0x01, 0x02, 0x03}
	cfg := fastConfig()
	cfg.MasterKey = &key
	cfg.PDs = []PDConfig{{Address: 0, Channel: cpEnd, UseSecureChannel: true}}
	ctx, err := Setup(cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return ctx, ctx.pds[0]
}

// A phy/decoder failure in SC_CHLNG is the one state spec.md §4.5/§7
// exempts from going straight offline: the first failure retries with
// SCBK-D, and only a second failure gives up SC (continuing ONLINE
// without it, never OFFLINE).
func TestSCChlngPhyErrorSoftFails(t *testing.T) {
	ctx, p := newSecureSoloCtx(t)
	p.session = sessionSCChlng
	p.useSCBKD = false

	ctx.sessionStep(p, time.Now(), phyResult{outcome: outcomeGeneric})
	if p.session != sessionSCInit || !p.useSCBKD {
		t.Fatalf("first CHLNG phy error: got session=%v useSCBKD=%v, want SC_INIT retry with SCBK-D", p.session, p.useSCBKD)
	}

	p.session = sessionSCChlng
	ctx.sessionStep(p, time.Now(), phyResult{outcome: outcomeGeneric})
	if p.session != sessionOnline {
		t.Fatalf("second CHLNG phy error: got session=%v, want ONLINE (give up SC, not OFFLINE)", p.session)
	}
}

// A non-CCRYPT reply in SC_CHLNG (e.g. a NAK) gives up SC and goes
// ONLINE per spec.md §4.5 ("If reply is not CCRYPT, give up SC, go
// ONLINE"), not OFFLINE.
func TestSCChlngNonCcryptReplyGivesUpOnline(t *testing.T) {
	ctx, p := newSecureSoloCtx(t)
	p.session = sessionSCChlng
	p.useSCBKD = true // already tried SCBK-D once

	ctx.sessionStep(p, time.Now(), phyResult{outcome: outcomeReply, replyID: msg.ReplyNak})
	if p.session != sessionOnline {
		t.Fatalf("non-CCRYPT reply after SCBK-D already tried: got session=%v, want ONLINE", p.session)
	}
}

// SendCommand only accepts the six application command types;
// protocol-internal commands the session machine stages for itself
// must never be reachable from the application side (spec.md §6).
func TestSendCommandRejectsNonApplicationCommand(t *testing.T) {
	cpEnd, _ := memchannel.NewPair()
	cfg := fastConfig()
	cfg.PDs = []PDConfig{{Address: 0, Channel: cpEnd}}
	ctx, err := Setup(cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	cases := []msg.Command{
		msg.BareCommand{ID: msg.CmdPoll},
		msg.ChlngCommand{},
		msg.ScryptCommand{},
	}
	for _, cmd := range cases {
		if err := ctx.SendCommand(0, cmd); err != ErrUnknownCommand {
			t.Fatalf("SendCommand(%T): got err=%v, want ErrUnknownCommand", cmd, err)
		}
	}
}
