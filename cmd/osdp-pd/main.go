// Command osdp-pd runs a single simulated Peripheral Device against a
// real serial port, answering CP polls and commands until interrupted.
package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"
	"github.com/sirupsen/logrus"

	"github.com/go-osdp/osdp/channel/serialchannel"
	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/osdplog"
	"github.com/go-osdp/osdp/pd"
)

func main() {
	optPort := getopt.StringLong("port", 'p', "/dev/ttyUSB0", "Serial port device")
	optBaud := getopt.IntLong("baud", 'b', pd.DefaultBaud, "Serial baud rate")
	optAddr := getopt.IntLong("address", 'a', 0, "PD address (0-127)")
	optSecure := getopt.BoolLong("secure", 's', "Advertise and require secure channel")
	optSCBK := getopt.StringLong("scbk", 0, "", "Installed SCBK, 32 hex chars (omit to stay in install mode)")
	optVerbose := getopt.BoolLong("verbose", 'v', "Debug logging")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *optVerbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logger.WithField("role", "pd")

	if *optAddr < 0 || *optAddr > 0x7F {
		log.Fatal("address must be 0-127")
	}

	ch, err := serialchannel.Open(serialchannel.Config{Name: *optPort, Baud: *optBaud})
	if err != nil {
		log.Fatalf("open %s: %v", *optPort, err)
	}

	cfg := pd.DefaultConfig()
	cfg.Address = uint8(*optAddr)
	cfg.Channel = ch
	cfg.Baud = uint32(*optBaud)
	cfg.Identity = pd.Identity{VendorCode: 0x00a0a0, ModelNo: 1, Version: 1, Serial: 1}
	cfg.Capabilities = []msg.Capability{
		{Function: msg.CapOutputControl, Compliance: 1, NumItems: 1},
		{Function: msg.CapReaderLED, Compliance: 1, NumItems: 1},
		{Function: msg.CapReaderAudibleOutput, Compliance: 1, NumItems: 1},
		{Function: msg.CapReaderTextOutput, Compliance: 1, NumItems: 1},
	}
	if *optSecure {
		cfg.Capabilities = append(cfg.Capabilities, msg.Capability{
			Function: msg.CapCommunicationSecurity, Compliance: 1, NumItems: 1,
		})
	}
	if *optSCBK != "" {
		key, err := parseKey(*optSCBK)
		if err != nil {
			log.Fatalf("bad --scbk: %v", err)
		}
		cfg.SCBK = &key
	}

	ctx, err := pd.Setup(cfg)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	ctx.SetLogProvider(osdplog.NewLogrusProvider(logger, logrus.Fields{"pd": cfg.Address}))
	ctx.SetCommandCallback(loggingCallback{log: log})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	log.Infof("pd %d listening on %s at %d baud", cfg.Address, *optPort, *optBaud)
	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			return
		case <-ticker.C:
			ctx.Update()
		}
	}
}

var (
	errBadKeyLen = errors.New("osdp-pd: key must be exactly 32 hex characters")
	errBadKeyHex = errors.New("osdp-pd: key must be hex-encoded")
)

func parseKey(hexStr string) ([16]byte, error) {
	var key [16]byte
	if len(hexStr) != 32 {
		return key, errBadKeyLen
	}
	for i := 0; i < 16; i++ {
		b, err := hexByte(hexStr[i*2], hexStr[i*2+1])
		if err != nil {
			return key, err
		}
		key[i] = b
	}
	return key, nil
}

func hexByte(hi, lo byte) (byte, error) {
	h, err := hexNibble(hi)
	if err != nil {
		return 0, err
	}
	l, err := hexNibble(lo)
	if err != nil {
		return 0, err
	}
	return h<<4 | l, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, errBadKeyHex
	}
}

// loggingCallback accepts every application command and logs it; it
// stands in for the reader/output hardware a real deployment would
// drive.
type loggingCallback struct {
	log *logrus.Entry
}

func (l loggingCallback) OnOutput(cmd msg.OutputCommand) error {
	l.log.Infof("OUT: output=%d control=%d timer=%d", cmd.OutputNo, cmd.ControlCode, cmd.TimerCount)
	return nil
}

func (l loggingCallback) OnLed(cmd msg.LedCommand) error {
	l.log.Infof("LED: reader=%d led=%d", cmd.Reader, cmd.LedNumber)
	return nil
}

func (l loggingCallback) OnBuzzer(cmd msg.BuzzerCommand) error {
	l.log.Infof("BUZ: reader=%d control=%d", cmd.Reader, cmd.ControlCode)
	return nil
}

func (l loggingCallback) OnText(cmd msg.TextCommand) error {
	l.log.Infof("TEXT: reader=%d %q", cmd.Reader, string(cmd.Data))
	return nil
}

func (l loggingCallback) OnComset(cmd msg.ComsetCommand) error {
	l.log.Infof("COMSET: address=%d baud=%d", cmd.Address, cmd.Baud)
	return nil
}

func (l loggingCallback) OnKeyset(cmd msg.KeysetCommand) error {
	l.log.Info("KEYSET: installing new SCBK")
	return nil
}
