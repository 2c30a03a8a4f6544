package gateway

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope is the per-call encrypted wrapper sent to the backend. The key
// and iv are generated fresh for every call and never reused; the backend
// echo-encrypts its reply under the same pair, which is the request/response
// correlation mechanism (there is no session token on the wire).
type Envelope struct {
	Key     string `json:"k"`
	IV      string `json:"i"`
	Payload string `json:"r"`
}

const (
	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ivAlphabet  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"
	keyLength   = 64
	ivLength    = 16
)

func randomString(alphabet string, length int) (string, error) {
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	var b strings.Builder
	b.Grow(length)
	for _, c := range raw {
		b.WriteByte(alphabet[int(c)%len(alphabet)])
	}
	return b.String(), nil
}

// deriveCipherKey implements the legacy key schedule: the AES-256 key is the
// first 32 hex characters of SHA-256(key), used as raw ASCII bytes. This is
// a fixed backend requirement, not a design choice.
func deriveCipherKey(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return []byte(hex.EncodeToString(sum[:])[:32])
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}

// EncryptCBC encrypts plaintext with AES-256-CBC under the derived key and
// the literal iv bytes, returning base64.
func EncryptCBC(plaintext []byte, key, iv string) (string, error) {
	block, err := aes.NewCipher(deriveCipherKey(key))
	if err != nil {
		return "", err
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes", aes.BlockSize)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptCBC reverses EncryptCBC. Decrypting with a key/iv pair other than
// the one that produced the ciphertext fails on padding (or yields garbage
// that fails JSON parsing upstream); it never yields the original payload.
func DecryptCBC(ciphertext, key, iv string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not block-aligned")
	}

	block, err := aes.NewCipher(deriveCipherKey(key))
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes", aes.BlockSize)
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, []byte(iv)).CryptBlocks(out, raw)

	return pkcs7Unpad(out, aes.BlockSize)
}

// Seal wraps a payload in a fresh envelope.
func Seal(payload any) (Envelope, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal payload: %w", err)
	}

	key, err := randomString(keyAlphabet, keyLength)
	if err != nil {
		return Envelope{}, err
	}
	iv, err := randomString(ivAlphabet, ivLength)
	if err != nil {
		return Envelope{}, err
	}

	encrypted, err := EncryptCBC(plaintext, key, iv)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	return Envelope{Key: key, IV: iv, Payload: encrypted}, nil
}

// Open decrypts a backend reply using the envelope of the request that
// produced it. Some backend revisions base64-wrap the JSON once more; a
// decrypted body starting with "eyJ" is unwrapped before returning.
func Open(body []byte, env Envelope) ([]byte, error) {
	decrypted, err := DecryptCBC(string(body), env.Key, env.IV)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt response: %w", err)
	}

	if bytes.HasPrefix(decrypted, []byte("eyJ")) {
		if inner, err := base64.StdEncoding.DecodeString(string(decrypted)); err == nil {
			return inner, nil
		}
	}
	return decrypted, nil
}

// PinCipher wraps PINs with the static legacy key/iv before they are placed
// in a payload. PINs are never transmitted in clear, even inside the outer
// envelope.
type PinCipher struct {
	key string
	iv  string
}

// NewPinCipher creates a PinCipher. The iv must be 16 bytes.
func NewPinCipher(key, iv string) (*PinCipher, error) {
	if key == "" {
		return nil, errors.New("pin key is required")
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("pin iv must be %d bytes", aes.BlockSize)
	}
	return &PinCipher{key: key, iv: iv}, nil
}

// Encrypt wraps a single PIN value.
func (p *PinCipher) Encrypt(pin string) (string, error) {
	return EncryptCBC([]byte(pin), p.key, p.iv)
}
