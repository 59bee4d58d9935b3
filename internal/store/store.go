// Package store keeps the hub's activation keys and session history.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidKey is returned for unknown or revoked activation keys.
var ErrInvalidKey = errors.New("invalid activation key")

// ActivationKey authorizes relay clients.
type ActivationKey struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"createdAt"`
	Key       string    `json:"key" gorm:"column:key_value;uniqueIndex;size:128;not null"`
	Label     string    `json:"label" gorm:"size:128"`
	Revoked   bool      `json:"revoked" gorm:"default:false"`
}

func (*ActivationKey) TableName() string { return "activation_keys" }

// SessionRecord is the last known activity of a named session.
type SessionRecord struct {
	ID       uint           `json:"id" gorm:"primarykey"`
	Name     string         `json:"name" gorm:"uniqueIndex;size:128;not null"`
	LastSeen time.Time      `json:"lastSeen" gorm:"index"`
	LastRole string         `json:"lastRole" gorm:"size:16"`
	Meta     datatypes.JSON `json:"meta"`
}

func (*SessionRecord) TableName() string { return "sessions" }

// Models lists every table the store migrates.
var Models = []any{&ActivationKey{}, &SessionRecord{}}

// Store wraps a gorm handle.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

func New(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate() error {
	s.log.Info().Msg("Migrating schema")
	if err := s.db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// AddKey registers a key, or un-revokes it if it already exists.
func (s *Store) AddKey(key, label string) error {
	if key == "" {
		return ErrInvalidKey
	}
	rec := ActivationKey{Key: key, Label: label}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_value"}},
		DoUpdates: clause.Assignments(map[string]any{"label": label, "revoked": false}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("add key: %w", err)
	}
	s.log.Info().Str("label", label).Msg("Activation key added")
	return nil
}

// RevokeKey marks a key unusable.
func (s *Store) RevokeKey(key string) error {
	res := s.db.Model(&ActivationKey{}).Where("key_value = ?", key).Update("revoked", true)
	if res.Error != nil {
		return fmt.Errorf("revoke key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidKey
	}
	return nil
}

// Validate returns nil for a known, unrevoked key.
func (s *Store) Validate(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	var rec ActivationKey
	err := s.db.Where("key_value = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidKey
	}
	if err != nil {
		return fmt.Errorf("validate key: %w", err)
	}
	if rec.Revoked {
		return ErrInvalidKey
	}
	return nil
}

// Touch records activity on a session.
func (s *Store) Touch(session, role string, meta map[string]any) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session meta: %w", err)
	}
	rec := SessionRecord{
		Name:     session,
		LastSeen: time.Now().UTC(),
		LastRole: role,
		Meta:     datatypes.JSON(raw),
	}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "last_role", "meta"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("touch session %s: %w", session, err)
	}
	return nil
}

// Sessions returns every recorded session, most recent first.
func (s *Store) Sessions() ([]SessionRecord, error) {
	var out []SessionRecord
	if err := s.db.Order("last_seen desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}
