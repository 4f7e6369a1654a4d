package mongodb

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/fortivault/fortivault/internal/model"
)

type userDoc struct {
	ID                 string          `bson:"_id"`
	Name               string          `bson:"name"`
	Email              string          `bson:"email"`
	MasterPasswordHash []byte          `bson:"masterPasswordHash"`
	Role               string          `bson:"role"`
	CreatedAt          time.Time       `bson:"createdAt"`
	Passwords          []credentialDoc `bson:"passwords"`
}

type credentialDoc struct {
	ID                string    `bson:"_id"`
	Website           string    `bson:"website"`
	WebsiteURL        string    `bson:"websiteUrl"`
	Username          string    `bson:"username"`
	EncryptedPassword string    `bson:"encryptedPassword"`
	CreatedAt         time.Time `bson:"createdAt"`
}

type summaryDoc struct {
	ID            string    `bson:"_id"`
	Name          string    `bson:"name"`
	Email         string    `bson:"email"`
	Role          string    `bson:"role"`
	CreatedAt     time.Time `bson:"createdAt"`
	PasswordCount int       `bson:"passwordCount"`
}

func toUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:                 u.ID.String(),
		Name:               u.Name,
		Email:              u.Email,
		MasterPasswordHash: u.MasterPasswordHash,
		Role:               string(u.Role),
		CreatedAt:          u.CreatedAt.UTC(),
		Passwords:          []credentialDoc{},
	}
}

func (d userDoc) toModel() (*model.User, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return nil, fmt.Errorf("user id %q: %w", d.ID, err)
	}
	role, err := model.ParseRole(d.Role)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", d.ID, err)
	}
	return &model.User{
		ID:                 id,
		Name:               d.Name,
		Email:              d.Email,
		MasterPasswordHash: d.MasterPasswordHash,
		Role:               role,
		CreatedAt:          d.CreatedAt,
	}, nil
}

func toCredentialDoc(c *model.CredentialRecord) credentialDoc {
	return credentialDoc{
		ID:                c.ID.String(),
		Website:           c.Website,
		WebsiteURL:        c.WebsiteURL,
		Username:          c.Username,
		EncryptedPassword: c.EncryptedPassword,
		CreatedAt:         c.CreatedAt.UTC(),
	}
}

func (d credentialDoc) toModel(owner uuid.UUID) (model.CredentialRecord, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return model.CredentialRecord{}, fmt.Errorf("credential id %q: %w", d.ID, err)
	}
	return model.CredentialRecord{
		ID:                id,
		OwnerID:           owner,
		Website:           d.Website,
		WebsiteURL:        d.WebsiteURL,
		Username:          d.Username,
		EncryptedPassword: d.EncryptedPassword,
		CreatedAt:         d.CreatedAt,
	}, nil
}

func (d summaryDoc) toModel() (model.UserSummary, error) {
	id, err := uuid.FromString(d.ID)
	if err != nil {
		return model.UserSummary{}, fmt.Errorf("user id %q: %w", d.ID, err)
	}
	return model.UserSummary{
		ID:            id,
		Name:          d.Name,
		Email:         d.Email,
		Role:          model.Role(d.Role),
		CreatedAt:     d.CreatedAt,
		PasswordCount: d.PasswordCount,
	}, nil
}
