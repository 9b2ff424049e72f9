package cp

import (
	"sync"
	"testing"
	"time"

	"github.com/go-osdp/osdp/channel"
	"github.com/go-osdp/osdp/channel/memchannel"
	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/phy"
	pdpkg "github.com/go-osdp/osdp/pd"
)

// fastConfig returns a CP config tuned for tests: short timeouts so a
// full session walk finishes in a handful of milliseconds instead of
// the protocol's real-world defaults.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.PollRateHz = 1000
	cfg.RespTimeout = 50 * time.Millisecond
	cfg.CmdRetryWait = 5 * time.Millisecond
	cfg.OfflineRetryWait = 50 * time.Millisecond
	cfg.SCRetryInterval = time.Second
	return cfg
}

func newLinkedPair(t *testing.T, secure bool) (*Context, *pdpkg.Context) {
	t.Helper()
	cpEnd, pdEnd := memchannel.NewPair()

	pdCfg := pdpkg.DefaultConfig()
	pdCfg.Address = 0
	pdCfg.Channel = pdEnd
	pdCfg.RespTimeout = 50 * time.Millisecond
	pdCfg.Identity = pdpkg.Identity{
		VendorCode: 0xA1B2C3, ModelNo: 0x04, Version: 0x05, Serial: 0x11223344, Firmware: 0x010203,
	}
	pdCfg.Capabilities = []msg.Capability{
		{Function: msg.CapReaderLED, Compliance: 1, NumItems: 1},
		{Function: msg.CapReaderAudibleOutput, Compliance: 1, NumItems: 1},
	}

	cpCfg := fastConfig()
	pdc := PDConfig{Address: 0, Channel: cpEnd}
	if secure {
		pdCfg.Capabilities = append(pdCfg.Capabilities, msg.Capability{
			Function: msg.CapCommunicationSecurity, Compliance: 1, NumItems: 1,
		})
		key := [16]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff, 0x00}
		cpCfg.MasterKey = &key
		pdc.UseSecureChannel = true
	}
	cpCfg.PDs = []PDConfig{pdc}

	pdCtx, err := pdpkg.Setup(pdCfg)
	if err != nil {
		t.Fatalf("pd setup: %v", err)
	}
	cpCtx, err := Setup(cpCfg)
	if err != nil {
		t.Fatalf("cp setup: %v", err)
	}
	return cpCtx, pdCtx
}

// runUntil ticks both sides alternately until done() reports true or
// timeout elapses.
func runUntil(t *testing.T, cpCtx *Context, pdCtx *pdpkg.Context, timeout time.Duration, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		cpCtx.Update()
		pdCtx.Update()
		if done() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

// S1/S2: reaching ONLINE requires a successful ID round trip (PDID,
// exercising the codec's vendor/serial/firmware field layout) followed
// by a successful CAP round trip, then steady-state POLL/ACK traffic
// that must not knock the session back offline.
func TestS1PlainPollReachesAndStaysOnline(t *testing.T) {
	cpCtx, pdCtx := newLinkedPair(t, false)

	runUntil(t, cpCtx, pdCtx, time.Second, func() bool { return cpCtx.PDOnline(0) })

	// Hold in ONLINE for a number of poll cycles; a regression that
	// mishandles bare ACK would drop the session back to OFFLINE.
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		cpCtx.Update()
		pdCtx.Update()
		if !cpCtx.PDOnline(0) {
			t.Fatal("session dropped offline during steady-state polling")
		}
		time.Sleep(time.Millisecond)
	}
}

// S3: an LED command reaches the PD's application callback and is
// ACKed.
func TestS3LEDCommand(t *testing.T) {
	cpCtx, pdCtx := newLinkedPair(t, false)
	runUntil(t, cpCtx, pdCtx, time.Second, func() bool { return cpCtx.PDOnline(0) })

	var mu sync.Mutex
	var got msg.LedCommand
	pdCtx.SetCommandCallback(ledCapture{onLED: func(cmd msg.LedCommand) {
		mu.Lock()
		defer mu.Unlock()
		got = cmd
	}})

	cmd := msg.LedCommand{
		Reader:    0,
		LedNumber: 1,
		Temporary: msg.LedColorTimer{ControlCode: 2, OnCount: 5, OffCount: 5, OnColor: 1, OffColor: 0, TimerCount: 500},
		Permanent: msg.LedColorTimer{ControlCode: 1, OnCount: 10, OffCount: 0, OnColor: 2, OffColor: 0},
	}
	if err := cpCtx.SendCommand(0, cmd); err != nil {
		t.Fatalf("send command: %v", err)
	}

	runUntil(t, cpCtx, pdCtx, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.LedNumber == 1
	})
	if got.Temporary.TimerCount != 500 {
		t.Fatalf("PD callback saw TimerCount=%d, want 500", got.Temporary.TimerCount)
	}
}

// ledCapture is a minimal CommandCallback that only cares about LED.
type ledCapture struct {
	onLED func(msg.LedCommand)
}

func (ledCapture) OnOutput(msg.OutputCommand) error { return nil }
func (l ledCapture) OnLed(cmd msg.LedCommand) error {
	l.onLED(cmd)
	return nil
}
func (ledCapture) OnBuzzer(msg.BuzzerCommand) error { return nil }
func (ledCapture) OnText(msg.TextCommand) error     { return nil }
func (ledCapture) OnComset(msg.ComsetCommand) error { return nil }
func (ledCapture) OnKeyset(msg.KeysetCommand) error { return nil }

// scriptedPD is a hand-scripted channel.Channel standing in for a PD:
// it answers ID/CAP normally but replies BUSY to the first POLL and
// ACK to every one after, letting S4 be tested without coordinating a
// second real tick loop.
type scriptedPD struct {
	mu        sync.Mutex
	rx        []byte
	pollSends [][]byte
}

var _ channel.Channel = (*scriptedPD)(nil)

func (s *scriptedPD) Send(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, data, err := phy.Decode(buf, len(buf))
	if err != nil {
		return 0, err
	}
	id, _, _ := msg.DecodeCommand(data)

	var replyID msg.ReplyID
	var reply msg.Reply
	switch id {
	case msg.CmdID:
		replyID, reply = msg.ReplyPdid, msg.PdidReply{VendorCode: 1, ModelNo: 1, Version: 1, Serial: 1, Firmware: 1}
	case msg.CmdCap:
		replyID, reply = msg.ReplyPdcap, msg.PdcapReply{}
	case msg.CmdPoll:
		s.pollSends = append(s.pollSends, append([]byte(nil), data...))
		if len(s.pollSends) == 1 {
			replyID = msg.ReplyBusy
		} else {
			replyID = msg.ReplyAck
		}
	default:
		replyID = msg.ReplyAck
	}

	enc := msg.NewEncoder(make([]byte, 0, 64))
	if reply == nil {
		msg.EncodeBareReply(enc, replyID)
	} else if err := msg.EncodeReply(enc, reply); err != nil {
		return 0, err
	}
	payload := enc.Bytes()

	rf := phy.Frame{Address: frame.Address, Sequence: frame.Sequence, Reply: true}
	tx := make([]byte, phy.MaxFrameSize)
	off, err := phy.Init(tx, rf)
	if err != nil {
		return 0, err
	}
	copy(tx[off:], payload)
	total, err := phy.Finalize(tx, rf, len(payload))
	if err != nil {
		return 0, err
	}
	s.rx = append(s.rx, tx[:total]...)
	return len(buf), nil
}

func (s *scriptedPD) Recv(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rx) == 0 {
		return 0, nil
	}
	n := copy(buf, s.rx)
	s.rx = s.rx[n:]
	return n, nil
}

func (s *scriptedPD) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rx = s.rx[:0]
	return nil
}

// S4: after a BUSY reply, the CP resends the identical command; the
// test compares the payload bytes of the first two POLL attempts.
func TestS4BusyRetry(t *testing.T) {
	fake := &scriptedPD{}
	cfg := fastConfig()
	cfg.PDs = []PDConfig{{Address: 0, Channel: fake}}
	ctx, err := Setup(cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		ctx.Update()
		fake.mu.Lock()
		n := len(fake.pollSends)
		fake.mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.pollSends) < 2 {
		t.Fatalf("only saw %d POLL attempts, want at least 2 (BUSY then retry)", len(fake.pollSends))
	}
	if string(fake.pollSends[0]) != string(fake.pollSends[1]) {
		t.Fatalf("retried command bytes differ: %x vs %x", fake.pollSends[0], fake.pollSends[1])
	}
}

// S5: a full secure-channel handshake (falling back to SCBK-D, since
// this PD starts in install mode) ends with both sides SC_ACTIVE.
func TestS5SecureChannelHandshake(t *testing.T) {
	cpCtx, pdCtx := newLinkedPair(t, true)

	runUntil(t, cpCtx, pdCtx, 2*time.Second, func() bool {
		return cpCtx.PDOnline(0) && cpCtx.PDSecureChannelActive(0) && pdCtx.SecureChannelActive()
	})
}

// S6: COMSET's reply echoes the new address/baud, and only after that
// does the PD actually adopt them.
func TestS6Comset(t *testing.T) {
	cpCtx, pdCtx := newLinkedPair(t, false)
	runUntil(t, cpCtx, pdCtx, time.Second, func() bool { return cpCtx.PDOnline(0) })

	if err := cpCtx.SendCommand(0, msg.ComsetCommand{Address: 5, Baud: 38400}); err != nil {
		t.Fatalf("send comset: %v", err)
	}

	runUntil(t, cpCtx, pdCtx, time.Second, func() bool {
		return pdCtx.Address() == 5 && pdCtx.Baud() == 38400
	})
}
