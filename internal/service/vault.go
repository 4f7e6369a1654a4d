package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "github.com/fortivault/fortivault/internal/crypto"
	"github.com/fortivault/fortivault/internal/errs"
	"github.com/fortivault/fortivault/internal/model"
	"github.com/fortivault/fortivault/internal/repository"
)

// VaultService manages one owner's credential records. Passwords are encrypted before
// they reach the repository and decrypted only on the way out.
type VaultService interface {
	// Add encrypts and stores a credential and returns it with the plaintext password.
	Add(ctx context.Context, ownerID uuid.UUID, in AddInput) (model.Credential, error)
	// List returns every credential of the owner, decrypted.
	List(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error)
	// Delete removes one credential and returns the remaining ones.
	Delete(ctx context.Context, ownerID, recordID uuid.UUID) ([]model.Credential, error)
}

// AddInput carries a new credential.
type AddInput struct {
	Website    string `validate:"required,max=512"`
	WebsiteURL string `validate:"max=2048"`
	Username   string `validate:"max=512"`
	Password   string `validate:"required,max=4096"`
}

// Normalize trims the text fields and validates the result.
// A password made only of whitespace counts as missing.
func (in AddInput) Normalize() (AddInput, error) {
	in.Website = strings.TrimSpace(in.Website)
	in.WebsiteURL = strings.TrimSpace(in.WebsiteURL)
	in.Username = strings.TrimSpace(in.Username)
	if strings.TrimSpace(in.Password) == "" {
		in.Password = ""
	}
	if err := validateStruct(in); err != nil {
		return AddInput{}, err
	}
	return in, nil
}

// VaultServiceImpl implements VaultService.
type VaultServiceImpl struct {
	creds repository.CredentialRepository
	box   *pkgcrypto.CipherBox
	now   func() time.Time
}

var _ VaultService = (*VaultServiceImpl)(nil)

// NewVaultService constructs VaultService.
func NewVaultService(creds repository.CredentialRepository, box *pkgcrypto.CipherBox) *VaultServiceImpl {
	return &VaultServiceImpl{creds: creds, box: box, now: time.Now}
}

// Add validates, encrypts and persists one record.
func (s *VaultServiceImpl) Add(ctx context.Context, ownerID uuid.UUID, in AddInput) (model.Credential, error) {
	if ownerID == uuid.Nil {
		return model.Credential{}, fmt.Errorf("%w: owner is required", errs.ErrValidation)
	}
	in, err := in.Normalize()
	if err != nil {
		return model.Credential{}, err
	}

	blob, err := s.box.Encrypt(in.Password)
	if err != nil {
		return model.Credential{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Credential{}, err
	}
	rec := model.CredentialRecord{
		ID:                id,
		OwnerID:           ownerID,
		Website:           in.Website,
		WebsiteURL:        in.WebsiteURL,
		Username:          in.Username,
		EncryptedPassword: blob,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.creds.Insert(ctx, &rec); err != nil {
		return model.Credential{}, err
	}
	return model.Credential{
		ID:         rec.ID,
		Website:    rec.Website,
		WebsiteURL: rec.WebsiteURL,
		Username:   rec.Username,
		Password:   in.Password,
		CreatedAt:  rec.CreatedAt,
	}, nil
}

// List decrypts all records of the owner. One corrupt blob fails the whole call.
func (s *VaultServiceImpl) List(ctx context.Context, ownerID uuid.UUID) ([]model.Credential, error) {
	recs, err := s.creds.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.decryptAll(recs)
}

// Delete removes recordID if present; an unknown id leaves the vault untouched.
func (s *VaultServiceImpl) Delete(ctx context.Context, ownerID, recordID uuid.UUID) ([]model.Credential, error) {
	if err := s.creds.Delete(ctx, ownerID, recordID); err != nil {
		return nil, err
	}
	return s.List(ctx, ownerID)
}

func (s *VaultServiceImpl) decryptAll(recs []model.CredentialRecord) ([]model.Credential, error) {
	out := make([]model.Credential, 0, len(recs))
	for _, r := range recs {
		pw, err := s.box.Decrypt(r.EncryptedPassword)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		out = append(out, model.Credential{
			ID:         r.ID,
			Website:    r.Website,
			WebsiteURL: r.WebsiteURL,
			Username:   r.Username,
			Password:   pw,
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}
