package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"golang.org/x/crypto/hkdf"
)

const charset = "qwertyuiopasdfghjklzxcvbnmQWERTYUIOPASDFGHJKLZXCVBNM1234567890-_"

var hkdfInfo = []byte("buildcore job credential secrets")

var ErrCipherTextTooShort = errors.New("cipher text shorter than nonce")

type Encrypter interface {
	EncryptAES(string) (string, error)
	DecryptAES(string) ([]byte, error)
}

type AESEncrypter struct {
	key []byte
}

// NewAESEncrypter derives a 256-bit AES key from secret with HKDF-SHA256, so
// secrets of any length can be configured.
func NewAESEncrypter(secret []byte) (*AESEncrypter, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), key); err != nil {
		return nil, err
	}
	return &AESEncrypter{key: key}, nil
}

func (e *AESEncrypter) EncryptAES(text string) (string, error) {
	gcm, err := e.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := gcm.Seal(nonce, nonce, []byte(text), nil)
	return hex.EncodeToString(out), nil
}

func (e *AESEncrypter) DecryptAES(encrypted string) ([]byte, error) {
	cipherText, err := hex.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	gcm, err := e.gcm()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(cipherText) < nonceSize {
		return nil, ErrCipherTextTooShort
	}
	nonce, cipherText := cipherText[:nonceSize], cipherText[nonceSize:]
	return gcm.Open(nil, nonce, cipherText, nil)
}

func (e *AESEncrypter) gcm() (cipher.AEAD, error) {
	c, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(c)
}

// EnsureSecretKey returns the value of the environment variable name. When it
// is unset a random key is generated, exported and appended to the dotenv file
// at path so the same key is used on the next start.
func EnsureSecretKey(path, name string) (string, error) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v, nil
	}
	key, err := GenerateRandomKey(32)
	if err != nil {
		return "", err
	}
	if err := appendToDotenv(path, name, key); err != nil {
		return "", err
	}
	return key, os.Setenv(name, key)
}

func appendToDotenv(path, name, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(name + "=" + value + "\n")
	return err
}

func GenerateRandomKey(length int) (string, error) {
	b := make([]byte, length)
	limit := big.NewInt(int64(len(charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}
	return string(b), nil
}
