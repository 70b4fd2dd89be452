package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"

	"geosnap-service/internal/config"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrKMSDisabled      = errors.New("kms encryption disabled")
)

// envelope is the serialized form stored alongside audit documents.
type envelope struct {
	Ciphertext   string `json:"ct"`
	EncryptedDEK string `json:"dek"`
	KeyID        string `json:"kid"`
}

// KeyService is the slice of the KMS API the manager needs. *kms.Client
// satisfies it.
type KeyService interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Manager performs KMS envelope encryption for PII embedded in audit records:
// a fresh data key per value, AES-256-GCM for the payload, the data key itself
// wrapped by the KMS master key.
type Manager struct {
	kmsClient KeyService
	config    *config.KMSConfig
}

func NewManager(cfg *config.Config, kmsClient KeyService) *Manager {
	return &Manager{
		kmsClient: kmsClient,
		config:    &cfg.KMS,
	}
}

// Enabled reports whether envelope encryption is configured.
func (m *Manager) Enabled() bool {
	return m.config.Enabled && m.kmsClient != nil
}

// EncryptField wraps a plaintext value into a base64 envelope string.
func (m *Manager) EncryptField(ctx context.Context, plaintext string) (string, error) {
	if !m.Enabled() {
		return "", ErrKMSDisabled
	}

	out, err := m.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(m.config.KeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return "", fmt.Errorf("%w: generate data key: %v", ErrEncryptionFailed, err)
	}

	block, err := aes.NewCipher(out.Plaintext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	env := envelope{
		Ciphertext:   base64.RawStdEncoding.EncodeToString(sealed),
		EncryptedDEK: base64.RawStdEncoding.EncodeToString(out.CiphertextBlob),
		KeyID:        aws.ToString(out.KeyId),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}

	return base64.RawStdEncoding.EncodeToString(raw), nil
}

// DecryptField reverses EncryptField, for investigation tooling.
func (m *Manager) DecryptField(ctx context.Context, encoded string) (string, error) {
	if !m.Enabled() {
		return "", ErrKMSDisabled
	}

	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", ErrDecryptionFailed
	}

	dekBlob, err := base64.RawStdEncoding.DecodeString(env.EncryptedDEK)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	sealed, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	out, err := m.kmsClient.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: dekBlob,
	})
	if err != nil {
		return "", fmt.Errorf("%w: kms decrypt: %v", ErrDecryptionFailed, err)
	}

	block, err := aes.NewCipher(out.Plaintext)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if len(sealed) < gcm.NonceSize() {
		return "", ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
