package cp

// phyState is the C5 phy state machine (spec.md §4.4).
type phyState uint8

const (
	phyIdle phyState = iota
	phySendCmd
	phyReplyWait
	phyWait
	phyErr
	phyErrWait
	phyCleanup
)

func (s phyState) String() string {
	switch s {
	case phyIdle:
		return "IDLE"
	case phySendCmd:
		return "SEND_CMD"
	case phyReplyWait:
		return "REPLY_WAIT"
	case phyWait:
		return "WAIT"
	case phyErr:
		return "ERR"
	case phyErrWait:
		return "ERR_WAIT"
	case phyCleanup:
		return "CLEANUP"
	default:
		return "UNKNOWN"
	}
}

// sessionState is the C6 session state machine (spec.md §4.5).
type sessionState uint8

const (
	sessionInit sessionState = iota
	sessionIDReq
	sessionCapDet
	sessionSCInit
	sessionSCChlng
	sessionSCScrypt
	sessionSetSCBK
	sessionOnline
	sessionOffline
)

func (s sessionState) String() string {
	switch s {
	case sessionInit:
		return "INIT"
	case sessionIDReq:
		return "IDREQ"
	case sessionCapDet:
		return "CAPDET"
	case sessionSCInit:
		return "SC_INIT"
	case sessionSCChlng:
		return "SC_CHLNG"
	case sessionSCScrypt:
		return "SC_SCRYPT"
	case sessionSetSCBK:
		return "SET_SCBK"
	case sessionOnline:
		return "ONLINE"
	case sessionOffline:
		return "OFFLINE"
	default:
		return "UNKNOWN"
	}
}

// phyOutcome is what one phy tick reports to the session machine,
// compressing the error taxonomy spec.md §9 lists ("At the session
// level these compress to: advance, stay, go OFFLINE, go back to
// SC_INIT").
type phyOutcome uint8

const (
	outcomeNone     phyOutcome = iota // nothing to report yet, stay
	outcomeReply                      // a reply was decoded, inspect it
	outcomeRetry                      // PD replied BUSY
	outcomeGeneric                    // frame/codec failure
	outcomeCanYield                   // phy cycled back to IDLE with nothing sent
)
