package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const envelopeVersion = 1

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted token file")

// envelope is the on-disk JSON form of a sealed token.
type envelope struct {
	V      int    `json:"v"`
	Slot   string `json:"slot"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

type scryptParams struct {
	N, R, P int
}

func defaultScryptParams() scryptParams { return scryptParams{N: 1 << 15, R: 8, P: 1} }

// seal encrypts raw under a key derived from passphrase. The slot name is bound as
// associated data.
func seal(passphrase string, raw []byte, params scryptParams) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return json.Marshal(envelope{
		V:      envelopeVersion,
		Slot:   SlotName,
		Salt:   salt,
		N:      params.N,
		R:      params.R,
		P:      params.P,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, raw, []byte(SlotName)),
	})
}

func open(passphrase string, b []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	if env.V > envelopeVersion {
		return nil, fmt.Errorf("unsupported token file version %d", env.V)
	}
	if env.Slot != SlotName {
		return nil, fmt.Errorf("token file holds slot %q, want %q", env.Slot, SlotName)
	}

	key, err := scrypt.Key([]byte(passphrase), env.Salt, env.N, env.R, env.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	pt, err := aead.Open(nil, env.Nonce, env.Cipher, []byte(SlotName))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
