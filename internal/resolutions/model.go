// Package resolutions implements the survey domain: the stored resolution
// record, form collection and validation, pagination state, aggregate
// statistics, and the store gateway over the messages table.
package resolutions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidAnonID indicates that an anonymous identifier is empty or exceeds storage bounds.
	ErrInvalidAnonID = errors.New("resolutions: invalid anonymous id")
)

// AnonID represents a validated anonymous visitor identifier.
type AnonID string

// NewAnonID validates raw input and returns an AnonID.
func NewAnonID(rawInput string) (AnonID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAnonID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidAnonID, maxIdentifierLength)
	}
	return AnonID(trimmed), nil
}

// String returns the underlying string identifier.
func (id AnonID) String() string {
	return string(id)
}

// Record models one accepted submission. Records are immutable once
// inserted; there is no update or delete path. Optional fields are stored
// as NULL so "not disclosed" stays distinguishable from a real zero.
type Record struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement"`
	AnonID               string    `gorm:"column:anon_id;size:190;not null"`
	CreatedAt            time.Time `gorm:"column:created_at;not null;index"`
	Message              string    `gorm:"column:message;type:text;not null"`
	Age                  *int64    `gorm:"column:age"`
	Country              *string   `gorm:"column:country;size:190"`
	CategoriesJSON       string    `gorm:"column:resolution_category;type:text;not null"`
	MotivationsJSON      string    `gorm:"column:motivation;type:text;not null"`
	PastYearScore        *int64    `gorm:"column:past_year_score"`
	NewYearScore         *int64    `gorm:"column:new_year_score"`
	CompletionConfidence *int64    `gorm:"column:completion_confidence"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "messages"
}

// Categories decodes the stored category set.
func (r Record) Categories() []string {
	return decodeStringSet(r.CategoriesJSON)
}

// Motivations decodes the stored motivation set.
func (r Record) Motivations() []string {
	return decodeStringSet(r.MotivationsJSON)
}

func decodeStringSet(encoded string) []string {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil
	}
	return values
}

func encodeStringSet(values []string) (string, error) {
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// Draft is a validated candidate record produced by Collect and not yet
// persisted. Set-valued fields are kept as slices; the gateway owns the
// storage encoding.
type Draft struct {
	Message              string
	Age                  *int64
	Country              *string
	Categories           []string
	Motivations          []string
	PastYearScore        int64
	NewYearScore         int64
	CompletionConfidence int64
}
