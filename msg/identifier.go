package msg

import "fmt"

// CommandID is the OSDP command mnemonic, the CP-to-PD counterpart of
// the teacher's asdu.TypeID.
type CommandID uint8

// The command ids this engine supports (spec.md §4.2). Only these;
// file transfer and biometric commands are out of scope (spec.md §1).
const (
	CmdPoll   CommandID = 0x60 // poll for events/acks
	CmdID     CommandID = 0x61 // ID request
	CmdCap    CommandID = 0x62 // capabilities request
	CmdDiag   CommandID = 0x63 // diagnostics request
	CmdLstat  CommandID = 0x64 // local status request
	CmdIstat  CommandID = 0x65 // input status request
	CmdOstat  CommandID = 0x66 // output status request
	CmdRstat  CommandID = 0x67 // reader status request
	CmdOut    CommandID = 0x68 // output control
	CmdLed    CommandID = 0x69 // reader LED control
	CmdBuz    CommandID = 0x6A // reader buzzer control
	CmdText   CommandID = 0x6B // text output
	CmdComset CommandID = 0x6E // communication configuration
	CmdKeyset CommandID = 0x75 // encryption key set
	CmdChlng  CommandID = 0x76 // secure channel challenge
	CmdScrypt CommandID = 0x77 // secure channel cryptogram
)

func (c CommandID) String() string {
	switch c {
	case CmdPoll:
		return "POLL"
	case CmdID:
		return "ID"
	case CmdCap:
		return "CAP"
	case CmdDiag:
		return "DIAG"
	case CmdLstat:
		return "LSTAT"
	case CmdIstat:
		return "ISTAT"
	case CmdOstat:
		return "OSTAT"
	case CmdRstat:
		return "RSTAT"
	case CmdOut:
		return "OUT"
	case CmdLed:
		return "LED"
	case CmdBuz:
		return "BUZ"
	case CmdText:
		return "TEXT"
	case CmdComset:
		return "COMSET"
	case CmdKeyset:
		return "KEYSET"
	case CmdChlng:
		return "CHLNG"
	case CmdScrypt:
		return "SCRYPT"
	default:
		return fmt.Sprintf("CMD(%#02x)", uint8(c))
	}
}

// ReplyID is the PD-to-CP reply mnemonic.
type ReplyID uint8

const (
	ReplyAck     ReplyID = 0x40 // command accepted, no data
	ReplyNak     ReplyID = 0x41 // command not processed; see NakReason
	ReplyPdid    ReplyID = 0x45 // PD ID report
	ReplyPdcap   ReplyID = 0x46 // PD capabilities report
	ReplyLstatr  ReplyID = 0x48 // local status report
	ReplyIstatr  ReplyID = 0x49 // input status report
	ReplyOstatr  ReplyID = 0x4A // output status report
	ReplyRstatr  ReplyID = 0x4B // reader status report
	ReplyRaw     ReplyID = 0x50 // raw card data (Wiegand/unspecified)
	ReplyFmt     ReplyID = 0x51 // formatted (ASCII) card data
	ReplyKeyppad ReplyID = 0x53 // keypad data
	ReplyCom     ReplyID = 0x54 // communication configuration report
	ReplyBusy    ReplyID = 0x79 // PD busy, retry
	ReplyCcrypt  ReplyID = 0x76 // client UID, PD random, PD cryptogram
	ReplyRmacI   ReplyID = 0x78 // initial R-MAC
)

func (r ReplyID) String() string {
	switch r {
	case ReplyAck:
		return "ACK"
	case ReplyNak:
		return "NAK"
	case ReplyPdid:
		return "PDID"
	case ReplyPdcap:
		return "PDCAP"
	case ReplyLstatr:
		return "LSTATR"
	case ReplyIstatr:
		return "ISTATR"
	case ReplyOstatr:
		return "OSTATR"
	case ReplyRstatr:
		return "RSTATR"
	case ReplyRaw:
		return "RAW"
	case ReplyFmt:
		return "FMT"
	case ReplyKeyppad:
		return "KEYPPAD"
	case ReplyCom:
		return "COM"
	case ReplyBusy:
		return "BUSY"
	case ReplyCcrypt:
		return "CCRYPT"
	case ReplyRmacI:
		return "RMAC_I"
	default:
		return fmt.Sprintf("REPLY(%#02x)", uint8(r))
	}
}

// NakReason is the single data byte of a NAK reply (spec.md §4.6).
type NakReason uint8

const (
	NakCmdUnknown NakReason = 1 // command not supported, or capability-gated and absent
	NakCmdLen     NakReason = 2 // command length error
	NakRecord     NakReason = 6 // application callback rejected the command
	NakScCond     NakReason = 13 // secure channel is required but not active
	NakScUnsup    NakReason = 15 // secure channel is not supported by this PD
)

// SCSTag is the secure-block message type byte (spec.md §4.3,
// "SCS_xx — Secure-block tag byte"). 11-14 tag handshake messages;
// 15-18 tag steady-state traffic once SC_ACTIVE.
type SCSTag uint8

const (
	SCS11 SCSTag = 11 // CHLNG (CP -> PD)
	SCS12 SCSTag = 12 // CCRYPT (PD -> CP)
	SCS13 SCSTag = 13 // SCRYPT (CP -> PD)
	SCS14 SCSTag = 14 // RMAC_I (PD -> CP)
	SCS15 SCSTag = 15 // steady state, CP -> PD, bare command id
	SCS16 SCSTag = 16 // steady state, PD -> CP, bare reply id
	SCS17 SCSTag = 17 // steady state, CP -> PD, with data bytes
	SCS18 SCSTag = 18 // steady state, PD -> CP, with data bytes
)

// CapabilityFunction identifies a row of the PDCAP table (spec.md §3
// "capabilities: map from capability function code...").
type CapabilityFunction uint8

const (
	CapCheckCharacter        CapabilityFunction = 1 // CRC-16 vs. checksum-8 support
	CapCommunicationSecurity CapabilityFunction = 2 // bit0: AES-128 secure channel supported
	CapContactStatusMon      CapabilityFunction = 5 // ISTAT-capable inputs
	CapOutputControl         CapabilityFunction = 6 // OUT-capable outputs
	CapReaderLED             CapabilityFunction = 8 // LED-capable readers
	CapReaderAudibleOutput   CapabilityFunction = 9 // BUZ-capable readers
	CapReaderTextOutput      CapabilityFunction = 10 // TEXT-capable readers
	CapCardDataFormat        CapabilityFunction = 11
	CapTimeKeeping           CapabilityFunction = 19

	// MaxCapability is the decode-loop sentinel (the C source's
	// OSDP_PD_CAP_SENTINEL): a PDCAP entry at or past this function
	// code ends the reply early rather than being recorded.
	MaxCapability CapabilityFunction = 20
)

// Capability is one entry of the PDCAP table (spec.md §4.2,
// "k × (fc, compliance, num_items)").
type Capability struct {
	Function      CapabilityFunction
	Compliance    uint8
	NumItems      uint8
}

// CardFormat tags the RAW/FMT event payload (spec.md §3, "CARDREAD...
// carries a format tag").
type CardFormat uint8

const (
	CardFormatRawUnspecified CardFormat = 0
	CardFormatRawWiegand     CardFormat = 1
	CardFormatASCII          CardFormat = 2
)
