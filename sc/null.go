package sc

// NullCrypto is the collaborator for a PD configured without secure
// channel support. Every operation except FillRandom (which still
// reads the CSPRNG) is a safe no-op; the session
// machines never call past CAPDET/INIT into the SC_* states for such a
// PD, so these bodies exist only so Crypto has a total implementation
// that can't panic if miswired.
type NullCrypto struct{}

var _ Crypto = NullCrypto{}

func (NullCrypto) Init()                          {}
func (NullCrypto) FillRandom(buf []byte) error     { return defaultFillRandom(buf) }
func (NullCrypto) SetSCBK(scbk [16]byte)           {}
func (NullCrypto) ComputeSessionKeys(scbk [16]byte, cpRandom, pdRandom [8]byte) {}
func (NullCrypto) ComputeCPCryptogram() [16]byte   { return [16]byte{} }
func (NullCrypto) VerifyPDCryptogram([16]byte) bool { return false }
func (NullCrypto) ComputePDCryptogram() [16]byte   { return [16]byte{} }
func (NullCrypto) VerifyCPCryptogram([16]byte) bool { return false }
func (NullCrypto) ComputeRMACI() [16]byte          { return [16]byte{} }

func (NullCrypto) ComputeSCBK(masterKey [16]byte, pdAddress uint8, useDefault bool) [16]byte {
	return [16]byte{}
}
