package resolutions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errInvalidWindow   = errors.New("limit must be positive and offset must not be negative")
	noOpLogger         = zap.NewNop()

	// ErrAlreadySubmitted indicates that a record for this anonymous id
	// already exists. The unique index on anon_id surfaces it even when two
	// near-simultaneous submissions pass the existence check together.
	ErrAlreadySubmitted = errors.New("resolutions: identity has already submitted")
)

// ServiceError carries a stable machine-readable code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "resolutions.service.new"
	opSubmit       = "resolutions.submit"
	opHasSubmitted = "resolutions.has_submitted"
	opListPage     = "resolutions.list_page"
	opTotalCount   = "resolutions.total_count"
	opAllRecords   = "resolutions.all_records"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig wires the store gateway's collaborators.
type ServiceConfig struct {
	Database      *gorm.DB
	Clock         func() time.Time
	Logger        *zap.Logger
	CountCacheTTL time.Duration
}

// Service is the typed gateway over the messages table. All operations are
// network-bound from the caller's point of view and may fail with a
// connectivity error.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	logger   *zap.Logger
	countTTL time.Duration

	countMu      sync.Mutex
	countValue   int64
	countExpires time.Time
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:       cfg.Database,
		clock:    clock,
		logger:   logger,
		countTTL: cfg.CountCacheTTL,
	}, nil
}

// Submit persists one draft for the given identity. CreatedAt is set
// server-side in UTC; optional fields with no value are written as NULL,
// never as empty string or zero. A duplicate identity maps to
// ErrAlreadySubmitted; any other store failure is logged and returned as a
// coded error that the caller must treat as "not submitted", leaving the
// one-submission gate unchanged so the visitor can retry.
func (s *Service) Submit(ctx context.Context, anonID AnonID, draft Draft) (*Record, error) {
	categoriesJSON, err := encodeStringSet(draft.Categories)
	if err != nil {
		s.logError(opSubmit, "encode_categories_failed", err, zap.String("anon_id", anonID.String()))
		return nil, newServiceError(opSubmit, "encode_categories_failed", err)
	}
	motivationsJSON, err := encodeStringSet(draft.Motivations)
	if err != nil {
		s.logError(opSubmit, "encode_motivations_failed", err, zap.String("anon_id", anonID.String()))
		return nil, newServiceError(opSubmit, "encode_motivations_failed", err)
	}

	pastYear := draft.PastYearScore
	newYear := draft.NewYearScore
	confidence := draft.CompletionConfidence

	record := &Record{
		AnonID:               anonID.String(),
		CreatedAt:            s.clock().UTC(),
		Message:              draft.Message,
		Age:                  draft.Age,
		Country:              draft.Country,
		CategoriesJSON:       categoriesJSON,
		MotivationsJSON:      motivationsJSON,
		PastYearScore:        &pastYear,
		NewYearScore:         &newYear,
		CompletionConfidence: &confidence,
	}

	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadySubmitted
		}
		s.logError(opSubmit, "insert_failed", err, zap.String("anon_id", anonID.String()))
		return nil, newServiceError(opSubmit, "insert_failed", err)
	}

	s.invalidateCountCache()
	return record, nil
}

// HasSubmitted reports whether at least one record exists for the identity.
// It is a limit-1 existence probe, not a count.
func (s *Service) HasSubmitted(ctx context.Context, anonID AnonID) (bool, error) {
	var matches []int64
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("anon_id = ?", anonID.String()).
		Limit(1).
		Pluck("id", &matches).Error
	if err != nil {
		s.logError(opHasSubmitted, "query_failed", err, zap.String("anon_id", anonID.String()))
		return false, newServiceError(opHasSubmitted, "query_failed", err)
	}
	return len(matches) > 0, nil
}

// ListPage returns one page of records ordered by creation time, most
// recent first, with the id as a tiebreaker so equal timestamps keep a
// stable order. There is no coherency guarantee against concurrent
// inserts: a record inserted between two page reads may shift rows by one.
func (s *Service) ListPage(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 || offset < 0 {
		return nil, newServiceError(opListPage, "invalid_window", fmt.Errorf("%w: limit=%d offset=%d", errInvalidWindow, limit, offset))
	}

	var records []Record
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		s.logError(opListPage, "query_failed", err, zap.Int("limit", limit), zap.Int("offset", offset))
		return nil, newServiceError(opListPage, "query_failed", err)
	}
	return records, nil
}

// TotalCount returns the number of stored records, served from a
// short-lived cache. Page counts tolerate a brief undercount or overcount,
// and overwrite races on the cache are benign: any value within the TTL
// window is an acceptable approximation. A zero TTL disables caching.
func (s *Service) TotalCount(ctx context.Context) (int64, error) {
	now := s.clock()

	s.countMu.Lock()
	if s.countTTL > 0 && now.Before(s.countExpires) {
		cached := s.countValue
		s.countMu.Unlock()
		return cached, nil
	}
	s.countMu.Unlock()

	var total int64
	if err := s.db.WithContext(ctx).Model(&Record{}).Count(&total).Error; err != nil {
		s.logError(opTotalCount, "query_failed", err)
		return 0, newServiceError(opTotalCount, "query_failed", err)
	}

	if s.countTTL > 0 {
		s.countMu.Lock()
		s.countValue = total
		s.countExpires = now.Add(s.countTTL)
		s.countMu.Unlock()
	}
	return total, nil
}

// AllRecords returns the full record set for the stats aggregator, most
// recent first.
func (s *Service) AllRecords(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		s.logError(opAllRecords, "query_failed", err)
		return nil, newServiceError(opAllRecords, "query_failed", err)
	}
	return records, nil
}

func (s *Service) invalidateCountCache() {
	s.countMu.Lock()
	s.countExpires = time.Time{}
	s.countMu.Unlock()
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("resolutions service error", attrs...)
}
