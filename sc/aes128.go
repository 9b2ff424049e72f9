package sc

import (
	"crypto/aes"
	"crypto/subtle"
)

// scbkDefault is the well-known installation-mode key (SCBK-D):
// every PD that has not yet been issued a per-device SCBK via KEYSET
// accepts a handshake encrypted under this constant instead (spec.md
// §4.5, the `SC_USE_SCBKD` fallback path).
var scbkDefault = [16]byte{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
}

// Key-derivation constants distinguishing the three session keys
// derived from one SCBK, so s_enc/s_mac1/s_mac2 never collide even
// when the randoms repeat.
const (
	kdcEnc  byte = 0x01
	kdcMac1 byte = 0x02
	kdcMac2 byte = 0x03
)

// AES128Crypto is the Crypto implementation used whenever a PD
// advertises CapCommunicationSecurity. All derivation is single-block
// AES-128-ECB, the same "encrypt a constant-tagged context block under
// a base key" shape as the example pack's SCP03 KDF.
type AES128Crypto struct {
	scbk [16]byte

	sEnc, sMac1, sMac2 [16]byte

	cpRandom, pdRandom [8]byte
	cpCryptogram       [16]byte
}

var _ Crypto = (*AES128Crypto)(nil)

func (c *AES128Crypto) Init() {
	*c = AES128Crypto{}
}

func (c *AES128Crypto) FillRandom(buf []byte) error { return defaultFillRandom(buf) }

func aesEncryptBlock(key, block [16]byte) [16]byte {
	cipher, err := aes.NewCipher(key[:])
	if err != nil {
		// key is always exactly 16 bytes; aes.NewCipher only fails on
		// bad key length.
		panic("sc: invalid AES-128 key length")
	}
	var out [16]byte
	cipher.Encrypt(out[:], block[:])
	return out
}

// ComputeSCBK derives the per-PD SCBK by encrypting a block tagging
// the PD's address under the CP's master key, so two PDs sharing one
// master key never share a session key.
func (c *AES128Crypto) ComputeSCBK(masterKey [16]byte, pdAddress uint8, useDefault bool) [16]byte {
	if useDefault {
		return scbkDefault
	}
	var block [16]byte
	block[0] = 0x01 // SCBK key-diversification constant
	block[1] = pdAddress
	return aesEncryptBlock(masterKey, block)
}

func (c *AES128Crypto) SetSCBK(scbk [16]byte) { c.scbk = scbk }

func kdfBlock(constant byte, cpRandom, pdRandom [8]byte) [16]byte {
	var block [16]byte
	block[0] = constant
	block[1] = 0x01
	copy(block[2:10], cpRandom[:])
	copy(block[10:16], pdRandom[:6])
	return block
}

func (c *AES128Crypto) ComputeSessionKeys(scbk [16]byte, cpRandom, pdRandom [8]byte) {
	c.scbk = scbk
	c.cpRandom = cpRandom
	c.pdRandom = pdRandom
	c.sEnc = aesEncryptBlock(scbk, kdfBlock(kdcEnc, cpRandom, pdRandom))
	c.sMac1 = aesEncryptBlock(scbk, kdfBlock(kdcMac1, cpRandom, pdRandom))
	c.sMac2 = aesEncryptBlock(scbk, kdfBlock(kdcMac2, cpRandom, pdRandom))
}

func cryptogramBlock(a, b [8]byte) [16]byte {
	var block [16]byte
	copy(block[:8], a[:])
	copy(block[8:], b[:])
	return block
}

// ComputeCPCryptogram runs on the CP side: E(s_enc, cp_random||pd_random).
func (c *AES128Crypto) ComputeCPCryptogram() [16]byte {
	c.cpCryptogram = aesEncryptBlock(c.sEnc, cryptogramBlock(c.cpRandom, c.pdRandom))
	return c.cpCryptogram
}

// VerifyPDCryptogram runs on the CP side against the PD's claimed
// cryptogram: E(s_enc, pd_random||cp_random).
func (c *AES128Crypto) VerifyPDCryptogram(pdCryptogram [16]byte) bool {
	want := aesEncryptBlock(c.sEnc, cryptogramBlock(c.pdRandom, c.cpRandom))
	return subtle.ConstantTimeCompare(want[:], pdCryptogram[:]) == 1
}

// ComputePDCryptogram runs on the PD side: E(s_enc, pd_random||cp_random).
func (c *AES128Crypto) ComputePDCryptogram() [16]byte {
	return aesEncryptBlock(c.sEnc, cryptogramBlock(c.pdRandom, c.cpRandom))
}

// VerifyCPCryptogram runs on the PD side against the CP's claimed
// cryptogram: E(s_enc, cp_random||pd_random). On success it latches
// cpCryptogram for ComputeRMACI.
func (c *AES128Crypto) VerifyCPCryptogram(cpCryptogram [16]byte) bool {
	want := aesEncryptBlock(c.sEnc, cryptogramBlock(c.cpRandom, c.pdRandom))
	if subtle.ConstantTimeCompare(want[:], cpCryptogram[:]) != 1 {
		return false
	}
	c.cpCryptogram = cpCryptogram
	return true
}

// ComputeRMACI derives the handshake-closing R-MAC: two chained
// AES-ECB passes over the agreed cp_cryptogram under s_mac1 then
// s_mac2, so the two sides only agree on an R-MAC once they agree on
// the cryptogram.
func (c *AES128Crypto) ComputeRMACI() [16]byte {
	step1 := aesEncryptBlock(c.sMac1, c.cpCryptogram)
	return aesEncryptBlock(c.sMac2, step1)
}
