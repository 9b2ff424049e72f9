// Command osdp-cp runs a Control Panel against an address list of
// Peripheral Devices over a real serial port, polling each in turn
// until interrupted.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	getopt "github.com/pborman/getopt/v2"
	"github.com/sirupsen/logrus"

	"github.com/go-osdp/osdp/channel/serialchannel"
	"github.com/go-osdp/osdp/cp"
	"github.com/go-osdp/osdp/msg"
	"github.com/go-osdp/osdp/osdplog"
)

func main() {
	optPort := getopt.StringLong("port", 'p', "/dev/ttyUSB0", "Serial port device")
	optBaud := getopt.IntLong("baud", 'b', 9600, "Serial baud rate")
	optAddrs := getopt.StringLong("addresses", 'a', "0", "Comma-separated PD address list")
	optSecure := getopt.BoolLong("secure", 's', "Negotiate secure channel with every PD")
	optPollHz := getopt.IntLong("poll-rate", 0, cp.DefaultPollRateHz, "Poll rate, Hz")
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
	log := logger.WithField("role", "cp")

	addrStrs := strings.Split(*optAddrs, ",")
	ch, err := serialchannel.Open(serialchannel.Config{Name: *optPort, Baud: *optBaud})
	if err != nil {
		log.Fatalf("open %s: %v", *optPort, err)
	}

	var masterKey *[16]byte
	if *optSecure {
		key := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
		masterKey = &key
	}

	cfg := cp.DefaultConfig()
	cfg.MasterKey = masterKey
	cfg.PollRateHz = *optPollHz
	for _, s := range addrStrs {
		addr, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || addr < 0 || addr > 0x7F {
			log.Fatalf("invalid PD address %q", s)
		}
		cfg.PDs = append(cfg.PDs, cp.PDConfig{
			Address:          uint8(addr),
			Channel:          ch,
			UseSecureChannel: *optSecure,
		})
	}

	ctx, err := cp.Setup(cfg)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	ctx.SetLogProvider(osdplog.NewLogrusProvider(logger, logrus.Fields{}))
	ctx.SetCallbackKeyPress(func(address uint8, key byte) {
		log.Infof("pd %d: keypress %q", address, key)
	})
	ctx.SetCallbackCardRead(func(address uint8, format msg.CardFormat, data []byte) {
		log.Infof("pd %d: card read format=%d data=%x", address, format, data)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cmdCh := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			cmdCh <- line
		}
	}()

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	log.Infof("cp polling %d PDs on %s at %d baud", len(cfg.PDs), *optPort, *optBaud)
	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			return
		case line := <-cmdCh:
			handleLine(ctx, log, line)
		case <-ticker.C:
			ctx.Update()
		}
	}
}

// handleLine accepts "led <index>" and "buz <index>" as a minimal
// operator console, just enough to exercise SendCommand from a
// terminal.
func handleLine(ctx *cp.Context, log *logrus.Entry, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return
	}
	idx, err := strconv.Atoi(fields[1])
	if err != nil {
		log.Warnf("bad PD index %q", fields[1])
		return
	}

	var cmd msg.Command
	switch fields[0] {
	case "led":
		cmd = msg.LedCommand{
			Reader:    0,
			LedNumber: 0,
			Temporary: msg.LedColorTimer{OnCount: 2, OffCount: 2, OnColor: 1, TimerCount: 20},
		}
	case "buz":
		cmd = msg.BuzzerCommand{Reader: 0, ControlCode: 1, OnCount: 2, OffCount: 2, RepCount: 3}
	default:
		log.Warnf("unknown operator command %q", fields[0])
		return
	}

	if err := ctx.SendCommand(idx, cmd); err != nil {
		log.Warnf("send to pd index %d: %v", idx, err)
		return
	}
	fmt.Fprintf(os.Stdout, "queued %s for pd index %d\n", fields[0], idx)
}
