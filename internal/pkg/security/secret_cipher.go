package security

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptedPrefix 标记静态加密的凭据值，未带前缀的视为历史明文
const EncryptedPrefix = "enc:v1:"

var (
	ErrCipherUnavailable = errors.New("credential key not configured")
	ErrCiphertextInvalid = errors.New("credential ciphertext invalid")
)

// SecretCipher 使用 XChaCha20-Poly1305 加解密租户凭据
type SecretCipher struct {
	aead cipher.AEAD
}

func NewSecretCipher(key []byte) (*SecretCipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}
	return &SecretCipher{aead: aead}, nil
}

// NewSecretCipherFromBase64 空字符串返回 nil，此时只能读取明文凭据
func NewSecretCipherFromBase64(encoded string) (*SecretCipher, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode credential key: %w", err)
	}
	return NewSecretCipher(key)
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, EncryptedPrefix)
}

// Encrypt 返回 enc:v1:base64(nonce||ciphertext)
func (c *SecretCipher) Encrypt(plain string) (string, error) {
	if c == nil {
		return "", ErrCipherUnavailable
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 密文解密，明文原样返回
func (c *SecretCipher) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if c == nil {
		return "", ErrCipherUnavailable
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", ErrCiphertextInvalid
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrCiphertextInvalid
	}
	return string(plain), nil
}
