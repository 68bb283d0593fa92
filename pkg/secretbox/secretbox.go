package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
)

const versionGCM = 0x01

// Box seals short secrets with AES-256-GCM. The blob layout is version(1) | nonce | ciphertext.
// A Box without a key passes values through unchanged.
type Box struct {
	key []byte
}

func New(key string) *Box {
	if key == "" {
		return &Box{}
	}
	h := sha256.Sum256([]byte(key))
	return &Box{key: h[:]}
}

func (b *Box) Enabled() bool { return b != nil && len(b.key) > 0 }

func (b *Box) Seal(plain string) ([]byte, error) {
	if !b.Enabled() {
		return []byte(plain), nil
	}
	gcm, err := b.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, []byte(plain), nil)
	out := make([]byte, 1+len(nonce)+len(ct))
	out[0] = versionGCM
	copy(out[1:1+len(nonce)], nonce)
	copy(out[1+len(nonce):], ct)
	return out, nil
}

func (b *Box) Open(blob []byte) (string, error) {
	if !b.Enabled() {
		return string(blob), nil
	}
	if len(blob) < 2 {
		return "", errors.New("secretbox: invalid blob")
	}
	if blob[0] != versionGCM {
		return "", errors.New("secretbox: unsupported version")
	}
	gcm, err := b.gcm()
	if err != nil {
		return "", err
	}
	if len(blob) < 1+gcm.NonceSize() {
		return "", errors.New("secretbox: short nonce")
	}
	nonce := blob[1 : 1+gcm.NonceSize()]
	plain, err := gcm.Open(nil, nonce, blob[1+gcm.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
