// Package sc implements the secure-channel helper (C4): SCBK
// derivation, session-key derivation, cryptogram compute/verify, and
// R-MAC, behind the Crypto collaborator interface spec.md §4.3
// enumerates. AES128Crypto is grounded on the AES-128-ECB
// single-block key-derivation idiom used for GlobalPlatform SCP03
// session keys in the example pack (other_examples,
// card/scp03.go's scp03KDF/aesECBEncryptBlock) — stdlib crypto/aes is
// used directly because no third-party AES implementation appears
// anywhere in the pack.
package sc

import "crypto/rand"

// Crypto is the per-PD secure-channel collaborator the session state
// machines (C6/C7) call into. One instance is held per PD context.
type Crypto interface {
	// Init clears derived session keys and randoms, readying the
	// collaborator for a fresh handshake attempt.
	Init()
	// FillRandom draws n CSPRNG bytes.
	FillRandom(buf []byte) error
	// ComputeSCBK derives the per-PD SCBK from the CP's master key and
	// the PD's address. useDefault selects the well-known SCBK-D
	// fallback key instead of deriving from the master key.
	ComputeSCBK(masterKey [16]byte, pdAddress uint8, useDefault bool) [16]byte
	// SetSCBK installs scbk directly, bypassing derivation — used by
	// PD.Setup (an operator-supplied key) and by CMD_KEYSET.
	SetSCBK(scbk [16]byte)
	// ComputeSessionKeys derives s_enc, s_mac1, s_mac2 from the
	// installed SCBK and the two randoms exchanged during CHLNG/CCRYPT.
	ComputeSessionKeys(scbk [16]byte, cpRandom, pdRandom [8]byte)
	// ComputeCPCryptogram / VerifyPDCryptogram run on the CP side.
	ComputeCPCryptogram() [16]byte
	VerifyPDCryptogram(pdCryptogram [16]byte) bool
	// ComputePDCryptogram / VerifyCPCryptogram run on the PD side.
	ComputePDCryptogram() [16]byte
	VerifyCPCryptogram(cpCryptogram [16]byte) bool
	// ComputeRMACI computes the handshake-closing R-MAC.
	ComputeRMACI() [16]byte
}

// defaultFillRandom is shared by every Crypto implementation: a CSPRNG
// read, never a PRNG (spec.md §4.3, "fill_random(buf,n) – CSPRNG").
func defaultFillRandom(buf []byte) error {
	_, err := rand.Read(buf)
	return err
}
