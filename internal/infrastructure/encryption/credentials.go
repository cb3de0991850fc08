package encryption

import (
	"fmt"

	"aibos-connector-sync/internal/domain"
	"aibos-connector-sync/internal/ports"
)

// CredentialCodec seals connector credentials for storage and opens them on read
type CredentialCodec struct {
	svc ports.EncryptionService
}

// NewCredentialCodec creates a codec over an encryption service
func NewCredentialCodec(svc ports.EncryptionService) *CredentialCodec {
	return &CredentialCodec{svc: svc}
}

// Seal serializes and encrypts credentials
func (c *CredentialCodec) Seal(creds domain.Credentials) (string, error) {
	if creds == nil {
		return "", fmt.Errorf("credentials cannot be empty")
	}
	raw, err := domain.EncodeCredentials(creds)
	if err != nil {
		return "", err
	}
	sealed, err := c.svc.Encrypt(string(raw))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return sealed, nil
}

// Open decrypts and decodes credentials of the given connector type
func (c *CredentialCodec) Open(connectorType domain.ConnectorType, sealed string) (domain.Credentials, error) {
	if sealed == "" {
		return nil, fmt.Errorf("%w: no stored credentials", domain.ErrInvalidCredentials)
	}
	raw, err := c.svc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	return domain.DecodeCredentials(connectorType, []byte(raw))
}
