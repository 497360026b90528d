// Package gormstore persists bookings, ledger records and users with GORM on
// Postgres or SQLite.
package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19
	sqliteUniqueFailurePart = "UNIQUE constraint failed: "

	constraintGatewayPayment = "gateway_payment_id"
	constraintUserEmail      = "email"

	errorOperationStore     = "store"
	errorSubjectBooking     = "booking"
	errorSubjectClaim       = "slot_claim"
	errorSubjectExpense     = "expense"
	errorSubjectOrder       = "payment_order"
	errorSubjectSequence    = "sequence"
	errorSubjectSettings    = "settings"
	errorSubjectTransaction = "transaction"
	errorSubjectUser        = "user"
	errorCodeCount          = "count"
	errorCodeCreate         = "create"
	errorCodeDelete         = "delete"
	errorCodeDuplicate      = "duplicate"
	errorCodeGet            = "get"
	errorCodeInsert         = "insert"
	errorCodeInvalid        = "invalid"
	errorCodeList           = "list"
	errorCodeNext           = "next"
	errorCodeSum            = "sum"
	errorCodeUpdate         = "update"
	errorCodeUpdateStatus   = "update_status"
)

// Store groups the domain stores that share one database handle.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Bookings returns the booking.Store view.
func (store *Store) Bookings() *BookingStore {
	return &BookingStore{db: store.db}
}

// Ledger returns the ledger.Store view.
func (store *Store) Ledger() *LedgerStore {
	return &LedgerStore{db: store.db}
}

// Users returns the user store.
func (store *Store) Users() *UserStore {
	return &UserStore{db: store.db}
}

// Ping checks that the database answers.
func (store *Store) Ping(ctx context.Context) error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

// nextSequence increments the named counter, creating it from seed when absent.
func nextSequence(ctx context.Context, db *gorm.DB, name string, seed ledger.SequenceSeed) (int64, error) {
	value, found, err := incrementSequence(ctx, db, name)
	if err != nil {
		return 0, err
	}
	if found {
		return value, nil
	}
	var start int64
	if seed != nil {
		start, err = seed(ctx)
		if err != nil {
			return 0, err
		}
	}
	created := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Sequence{Name: name, Value: start + 1})
	if created.Error != nil {
		return 0, wrapStoreError(errorSubjectSequence, errorCodeCreate, created.Error)
	}
	if created.RowsAffected == 1 {
		return start + 1, nil
	}
	value, found, err = incrementSequence(ctx, db, name)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, wrapStoreError(errorSubjectSequence, errorCodeNext, gorm.ErrRecordNotFound)
	}
	return value, nil
}

func incrementSequence(ctx context.Context, db *gorm.DB, name string) (int64, bool, error) {
	result := db.WithContext(ctx).
		Model(&Sequence{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1"))
	if result.Error != nil {
		return 0, false, wrapStoreError(errorSubjectSequence, errorCodeNext, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, false, nil
	}
	var row Sequence
	if err := db.WithContext(ctx).Where("name = ?", name).Take(&row).Error; err != nil {
		return 0, false, wrapStoreError(errorSubjectSequence, errorCodeNext, err)
	}
	return row.Value, true, nil
}

// ensureSequenceAtLeast raises the named counter to floor, creating it when absent.
func ensureSequenceAtLeast(ctx context.Context, db *gorm.DB, name string, floor int64) error {
	result := db.WithContext(ctx).
		Model(&Sequence{}).
		Where("name = ? AND value < ?", name, floor).
		Update("value", floor)
	if result.Error != nil {
		return wrapStoreError(errorSubjectSequence, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Sequence{Name: name, Value: floor}).Error
	if err != nil {
		return wrapStoreError(errorSubjectSequence, errorCodeCreate, err)
	}
	return nil
}

// uniqueViolation reports whether err is a unique constraint failure and, when
// the driver exposes it, the constraint or column list that failed.
func uniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code()&0xFF != sqliteConstraintCode {
			return "", false
		}
		message := sqliteErr.Error()
		if index := strings.Index(message, sqliteUniqueFailurePart); index >= 0 {
			return message[index+len(sqliteUniqueFailurePart):], true
		}
		return "", true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}

func stringPointer(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func searchPattern(search string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(strings.TrimSpace(search)))
	return "%" + escaped + "%"
}
