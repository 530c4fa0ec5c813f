// Package configstore persists versioned configuration entities: workflow
// definitions, integration settings and whatever else an organization edits
// through the API. Every save appends an immutable snapshot with a checksum;
// nothing is rewritten in place, and rollback appends a new version carrying
// an old payload.
package configstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/persistence"
)

// IntegrationSettingsID is the fixed entity id for an organization's single
// integration settings document.
const IntegrationSettingsID = "default"

// Store appends and reads versioned snapshots. With an encryption key the
// stored payload is AES-GCM ciphertext; the checksum always covers the
// canonical plaintext, so integrity checks never need the key.
type Store struct {
	persistence persistence.Persistence
	key         []byte
}

// NewStore creates a config store. encryptionKey is optional: nil stores
// payloads as plaintext JSON, 32 bytes enables AES-256-GCM.
func NewStore(p persistence.Persistence, encryptionKey []byte) (*Store, error) {
	if len(encryptionKey) != 0 && len(encryptionKey) != 32 {
		return nil, fmt.Errorf("config encryption key must be 32 bytes, got %d", len(encryptionKey))
	}

	return &Store{persistence: p, key: encryptionKey}, nil
}

// Save appends the next version of an entity. expectedVersion is the
// optimistic lock: callers pass the version they read (0 for a new entity),
// and a mismatch surfaces persistence.ErrVersionConflict so the caller can
// re-read and retry. A concurrent writer racing for the same version number
// loses on the storage unique constraint and gets the same conflict.
func (s *Store) Save(ctx context.Context, organizationID, entityType, entityID string, payload map[string]any, expectedVersion int, actor models.Actor) (*models.EntityVersion, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	head, err := s.headVersion(ctx, organizationID, entityType, entityID)
	if err != nil {
		return nil, err
	}

	if expectedVersion != head {
		return nil, fmt.Errorf("expected version %d but head is %d: %w", expectedVersion, head, persistence.ErrVersionConflict)
	}

	stored := canonical
	encrypted := false

	if len(s.key) > 0 {
		stored, err = s.encrypt(canonical)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt payload: %w", err)
		}

		encrypted = true
	}

	version := &models.EntityVersion{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		EntityType:     entityType,
		EntityID:       entityID,
		Version:        head + 1,
		Payload:        stored,
		Encrypted:      encrypted,
		Checksum:       Checksum(canonical),
		CreatedBy:      actor.String(),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.persistence.EntityVersions().Create(ctx, version); err != nil {
		return nil, err
	}

	return version, nil
}

// Current returns the head snapshot's decoded payload with its version row.
func (s *Store) Current(ctx context.Context, organizationID, entityType, entityID string) (map[string]any, *models.EntityVersion, error) {
	version, err := s.persistence.EntityVersions().Latest(ctx, organizationID, entityType, entityID)
	if err != nil {
		return nil, nil, err
	}

	payload, err := s.decode(version)
	if err != nil {
		return nil, nil, err
	}

	return payload, version, nil
}

// GetVersion returns one historical snapshot's decoded payload.
func (s *Store) GetVersion(ctx context.Context, organizationID, entityType, entityID string, versionNumber int) (map[string]any, *models.EntityVersion, error) {
	version, err := s.persistence.EntityVersions().Get(ctx, organizationID, entityType, entityID, versionNumber)
	if err != nil {
		return nil, nil, err
	}

	payload, err := s.decode(version)
	if err != nil {
		return nil, nil, err
	}

	return payload, version, nil
}

// History lists every version of an entity in ascending version order.
func (s *Store) History(ctx context.Context, organizationID, entityType, entityID string) ([]*models.EntityVersion, error) {
	return s.persistence.EntityVersions().List(ctx, organizationID, entityType, entityID)
}

// Rollback appends a new head version carrying the payload of toVersion.
// History stays intact; the head simply becomes the old content again, with
// the rollback recorded as its own version.
func (s *Store) Rollback(ctx context.Context, organizationID, entityType, entityID string, toVersion int, actor models.Actor) (*models.EntityVersion, error) {
	payload, _, err := s.GetVersion(ctx, organizationID, entityType, entityID, toVersion)
	if err != nil {
		return nil, err
	}

	head, err := s.headVersion(ctx, organizationID, entityType, entityID)
	if err != nil {
		return nil, err
	}

	return s.Save(ctx, organizationID, entityType, entityID, payload, head, actor)
}

// IntegrationSettings implements protocol.SettingsReader on top of the
// integration_settings entity. An organization that never saved settings
// gets the zero value: every integration disabled.
func (s *Store) IntegrationSettings(ctx context.Context, organizationID string) (models.IntegrationSettings, error) {
	payload, _, err := s.Current(ctx, organizationID, models.EntityTypeIntegrationSettings, IntegrationSettingsID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return models.IntegrationSettings{}, nil
		}

		return models.IntegrationSettings{}, fmt.Errorf("failed to load integration settings: %w", err)
	}

	var settings models.IntegrationSettings
	if err := remarshal(payload, &settings); err != nil {
		return models.IntegrationSettings{}, fmt.Errorf("failed to decode integration settings: %w", err)
	}

	return settings, nil
}

// SaveIntegrationSettings writes the organization's settings document as the
// next settings version.
func (s *Store) SaveIntegrationSettings(ctx context.Context, organizationID string, settings models.IntegrationSettings, expectedVersion int, actor models.Actor) (*models.EntityVersion, error) {
	var payload map[string]any
	if err := remarshal(settings, &payload); err != nil {
		return nil, fmt.Errorf("failed to encode integration settings: %w", err)
	}

	return s.Save(ctx, organizationID, models.EntityTypeIntegrationSettings, IntegrationSettingsID, payload, expectedVersion, actor)
}

// headVersion returns the current head version number, 0 for a new entity.
func (s *Store) headVersion(ctx context.Context, organizationID, entityType, entityID string) (int, error) {
	latest, err := s.persistence.EntityVersions().Latest(ctx, organizationID, entityType, entityID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read version head: %w", err)
	}

	return latest.Version, nil
}

// decode recovers the plaintext payload of a stored version and verifies it
// against the recorded checksum.
func (s *Store) decode(version *models.EntityVersion) (map[string]any, error) {
	plaintext := version.Payload

	if version.Encrypted {
		if len(s.key) == 0 {
			return nil, fmt.Errorf("version %d of %s/%s is encrypted and the store has no key",
				version.Version, version.EntityType, version.EntityID)
		}

		decrypted, err := s.decrypt(version.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt version %d of %s/%s: %w",
				version.Version, version.EntityType, version.EntityID, err)
		}

		plaintext = decrypted
	}

	if Checksum(plaintext) != version.Checksum {
		return nil, fmt.Errorf("checksum mismatch on version %d of %s/%s",
			version.Version, version.EntityType, version.EntityID)
	}

	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	return payload, nil
}

// Checksum is the SHA-256 hex digest of a canonical payload encoding.
func Checksum(canonical []byte) string {
	digest := sha256.Sum256(canonical)

	return hex.EncodeToString(digest[:])
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := s.cipher()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Store) decrypt(ciphertext []byte) ([]byte, error) {
	gcm, err := s.cipher()
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}

	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, sealed, nil)
}

func (s *Store) cipher() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	return cipher.NewGCM(block)
}

// remarshal converts between a typed struct and its map form through JSON.
func remarshal(from, to any) error {
	encoded, err := json.Marshal(from)
	if err != nil {
		return err
	}

	return json.Unmarshal(encoded, to)
}
