package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/corvana/control-plane/events-ingest/utils"
)

// SecretPrefix is prepended to the stored key bytes to form the full HMAC
// secret shared with the sender
const SecretPrefix = "whsec_"

// SigningKey rows are owned by the control-plane admin surface. This service
// only reads them, except for the best-effort last_used_at stamp.
type SigningKey struct {
	ID         string         `gorm:"primaryKey;->" json:"id"`
	Kid        string         `gorm:"->" json:"kid"`
	Secret     string         `gorm:"->" json:"secret"`
	ProductID  string         `gorm:"->" json:"product_id"`
	Active     bool           `gorm:"->" json:"active"`
	RevokedAt  utils.NullTime `gorm:"->" json:"revoked_at"`
	ExpiresAt  utils.NullTime `gorm:"->" json:"expires_at"`
	LastUsedAt utils.NullTime `json:"last_used_at"`
	CreatedAt  time.Time      `gorm:"->" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"->" json:"updated_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"product"`
}

func (k *SigningKey) FullSecret() string {
	return SecretPrefix + k.Secret
}

func (k *SigningKey) Revoked() bool {
	return !k.Active || k.RevokedAt.Valid
}

func (k *SigningKey) Expired(now time.Time) bool {
	return k.ExpiresAt.Valid && k.ExpiresAt.Time.Before(now)
}

func (store *ApiStore) FetchSigningKey(kid string) utils.Result[*SigningKey] {
	var key SigningKey
	result := store.db.Connection.Preload("Product").First(&key, "kid = ?", kid)
	if result.Error != nil {
		return failedSigningKeyResult(result.Error)
	}

	return utils.SuccessResult(&key)
}

// TouchSigningKeyLastUsed stamps the key's last_used_at. UpdateColumn keeps
// updated_at untouched, that column belongs to the admin surface.
func (store *ApiStore) TouchSigningKeyLastUsed(kid string, usedAt time.Time) utils.Result[bool] {
	result := store.db.Connection.Model(&SigningKey{}).
		Where("kid = ?", kid).
		UpdateColumn("last_used_at", usedAt)
	if result.Error != nil {
		return utils.FailedBoolResult(result.Error)
	}

	return utils.SuccessResult(true)
}

// SigningKeySnapshot is the flat projection streamed at boot to warm the
// key cache: the key columns joined with the owning product's state.
type SigningKeySnapshot struct {
	ID            string         `gorm:"->" json:"id"`
	Kid           string         `gorm:"->" json:"kid"`
	Secret        string         `gorm:"->" json:"secret"`
	ProductID     string         `gorm:"->" json:"product_id"`
	Active        bool           `gorm:"->" json:"active"`
	RevokedAt     utils.NullTime `gorm:"->" json:"revoked_at"`
	ExpiresAt     utils.NullTime `gorm:"->" json:"expires_at"`
	ProductName   string         `gorm:"->" json:"product_name"`
	ProductActive bool           `gorm:"->" json:"product_active"`
}

func GetAllSigningKeys(db *gorm.DB) utils.Result[[]SigningKeySnapshot] {
	config := StreamQueryConfig{
		TableName: "signing_keys",
		SelectFields: []string{
			"signing_keys.id",
			"signing_keys.kid",
			"signing_keys.secret",
			"signing_keys.product_id",
			"signing_keys.active",
			"signing_keys.revoked_at",
			"signing_keys.expires_at",
			"products.name as product_name",
			"products.active as product_active",
		},
		Joins:          "JOIN products ON products.id = signing_keys.product_id",
		WhereCondition: "signing_keys.active = ?",
		WhereArgs:      []any{true},
		LogInterval:    10000,
	}

	return GetAllWithStreaming[SigningKeySnapshot](db, config)
}

func (s *SigningKeySnapshot) ToSigningKey() *SigningKey {
	return &SigningKey{
		ID:        s.ID,
		Kid:       s.Kid,
		Secret:    s.Secret,
		ProductID: s.ProductID,
		Active:    s.Active,
		RevokedAt: s.RevokedAt,
		ExpiresAt: s.ExpiresAt,
		Product: Product{
			ID:     s.ProductID,
			Name:   s.ProductName,
			Active: s.ProductActive,
		},
	}
}

func failedSigningKeyResult(err error) utils.Result[*SigningKey] {
	result := utils.FailedResult[*SigningKey](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.NonCapturable().NonRetryable()
	}

	return result
}
