package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	settingsRowID   = 1
	searchCondition = `(lower(booking_id) LIKE ? ESCAPE '\' OR lower(customer_name) LIKE ? ESCAPE '\' OR lower(customer_contact) LIKE ? ESCAPE '\')`
)

// BookingStore implements booking.Store using GORM.
type BookingStore struct {
	db *gorm.DB
}

// WithTx executes fn within a transaction.
func (store *BookingStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &BookingStore{db: transaction})
	})
}

func (store *BookingStore) NextSequence(ctx context.Context, name string, seed ledger.SequenceSeed) (int64, error) {
	return nextSequence(ctx, store.db, name, seed)
}

func (store *BookingStore) EnsureSequenceAtLeast(ctx context.Context, name string, floor int64) error {
	return ensureSequenceAtLeast(ctx, store.db, name, floor)
}

func (store *BookingStore) InsertTransaction(ctx context.Context, transaction ledger.Transaction) error {
	return insertTransaction(ctx, store.db, transaction)
}

func (store *BookingStore) LatestBookingID(ctx context.Context, initials booking.Initials) (booking.BookingID, error) {
	var row Booking
	err := store.db.WithContext(ctx).
		Select("booking_id").
		Where("booking_id LIKE ?", initials.String()+"%").
		Order("length(booking_id) DESC").
		Order("booking_id DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.BookingID{}, booking.ErrBookingNotFound
	}
	if err != nil {
		return booking.BookingID{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	id, err := booking.NewBookingID(row.BookingID)
	if err != nil {
		return booking.BookingID{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return id, nil
}

func (store *BookingStore) InsertBooking(ctx context.Context, record booking.Booking) error {
	model, err := bookingModel(record)
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	err = store.db.WithContext(ctx).Create(&model).Error
	if constraint, conflict := uniqueViolation(err); conflict {
		if strings.Contains(constraint, constraintGatewayPayment) {
			return wrapStoreError(errorSubjectBooking, errorCodeDuplicate, booking.ErrDuplicatePayment)
		}
		return wrapStoreError(errorSubjectBooking, errorCodeDuplicate, booking.ErrDuplicateBookingID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	return nil
}

// ClaimSlots inserts one slot_claims row per hour. The unique (date, hour)
// index turns a concurrent claim into ErrSlotUnavailable.
func (store *BookingStore) ClaimSlots(ctx context.Context, id booking.BookingID, date booking.Date, slots booking.Range) error {
	now := time.Now().UTC()
	claims := make([]SlotClaim, 0, slots.Duration)
	for _, hour := range slots.Hours() {
		claims = append(claims, SlotClaim{Date: date.String(), Hour: int(hour), BookingID: id.String(), CreatedAt: now})
	}
	err := store.db.WithContext(ctx).Create(&claims).Error
	if _, conflict := uniqueViolation(err); conflict {
		return wrapStoreError(errorSubjectClaim, errorCodeDuplicate, booking.ErrSlotUnavailable)
	}
	if err != nil {
		return wrapStoreError(errorSubjectClaim, errorCodeInsert, err)
	}
	return nil
}

func (store *BookingStore) ReleaseSlots(ctx context.Context, id booking.BookingID) error {
	err := store.db.WithContext(ctx).Where("booking_id = ?", id.String()).Delete(&SlotClaim{}).Error
	if err != nil {
		return wrapStoreError(errorSubjectClaim, errorCodeDelete, err)
	}
	return nil
}

func (store *BookingStore) GetBooking(ctx context.Context, id booking.BookingID) (booking.Booking, error) {
	return store.findBooking(store.db.WithContext(ctx).Where("booking_id = ?", id.String()))
}

// LockBooking reads a booking with a row lock. SQLite drops the locking clause.
func (store *BookingStore) LockBooking(ctx context.Context, id booking.BookingID) (booking.Booking, error) {
	return store.findBooking(store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("booking_id = ?", id.String()))
}

func (store *BookingStore) FindBookingByPaymentID(ctx context.Context, paymentID string) (booking.Booking, error) {
	return store.findBooking(store.db.WithContext(ctx).Where("gateway_payment_id = ?", paymentID))
}

func (store *BookingStore) findBooking(query *gorm.DB) (booking.Booking, error) {
	var model Booking
	err := query.Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrBookingNotFound)
	}
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, err)
	}
	record, err := mapBooking(model)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return record, nil
}

// UpdateBooking writes the mutable fields when the stored status still equals expected.
func (store *BookingStore) UpdateBooking(ctx context.Context, record booking.Booking, expected booking.BookingStatus) error {
	entries, err := marshalEntries(record.Amount.Entries)
	if err != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ? AND status = ?", record.ID.String(), expected.String()).
		Updates(map[string]interface{}{
			"status":         record.Status.String(),
			"payment_status": record.PaymentStatus.String(),
			"entries":        entries,
			"updated_at":     record.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdateStatus, booking.ErrInvalidStatusTransition)
	}
	return nil
}

func (store *BookingStore) ListBookings(ctx context.Context, filter booking.BookingFilter) ([]booking.Booking, int64, error) {
	query := store.db.WithContext(ctx).Model(&Booking{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status.String())
	}
	if !filter.OnDate.IsZero() {
		query = query.Where("date = ?", filter.OnDate.String())
	}
	if !filter.FromDate.IsZero() {
		query = query.Where("date >= ?", filter.FromDate.String())
	}
	if !filter.BeforeDate.IsZero() {
		query = query.Where("date < ?", filter.BeforeDate.String())
	}
	if filter.Search != "" {
		pattern := searchPattern(filter.Search)
		query = query.Where(searchCondition, pattern, pattern, pattern)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrapStoreError(errorSubjectBooking, errorCodeCount, err)
	}
	var rows []Booking
	err := query.
		Order("created_at DESC").
		Order("booking_id DESC").
		Offset(filter.Page.Offset()).
		Limit(filter.Page.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	bookings, err := mapBookings(rows)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func (store *BookingStore) ListActiveBookingsOn(ctx context.Context, date booking.Date) ([]booking.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Where("date = ? AND status <> ?", date.String(), booking.BookingCancelled.String()).
		Order("start_hour ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

func (store *BookingStore) RecentBookings(ctx context.Context, limit int) ([]booking.Booking, error) {
	var rows []Booking
	err := store.db.WithContext(ctx).
		Order("created_at DESC").
		Order("booking_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectBooking, errorCodeList, err)
	}
	return mapBookings(rows)
}

// CountBookings counts bookings created in [from, to) that were not cancelled.
func (store *BookingStore) CountBookings(ctx context.Context, from time.Time, to time.Time) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Where("status <> ?", booking.BookingCancelled.String()).
		Count(&count).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBooking, errorCodeCount, err)
	}
	return count, nil
}

// SaveOrder records the slots and charge of an opened gateway order.
func (store *BookingStore) SaveOrder(ctx context.Context, order booking.PaymentOrder) error {
	model := PaymentOrder{
		OrderID:     order.ID,
		Date:        order.Date.String(),
		StartHour:   int(order.Range.Start),
		Duration:    order.Range.Duration,
		PayFees:     order.PayFees,
		AmountPaise: order.AmountPaise,
		CreatedAt:   order.CreatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if _, conflict := uniqueViolation(err); conflict {
		return wrapStoreError(errorSubjectOrder, errorCodeDuplicate, err)
	}
	if err != nil {
		return wrapStoreError(errorSubjectOrder, errorCodeInsert, err)
	}
	return nil
}

func (store *BookingStore) GetOrder(ctx context.Context, orderID string) (booking.PaymentOrder, error) {
	var model PaymentOrder
	err := store.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.PaymentOrder{}, wrapStoreError(errorSubjectOrder, errorCodeGet, booking.ErrOrderNotFound)
	}
	if err != nil {
		return booking.PaymentOrder{}, wrapStoreError(errorSubjectOrder, errorCodeGet, err)
	}
	date, err := booking.ParseDate(model.Date)
	if err != nil {
		return booking.PaymentOrder{}, wrapStoreError(errorSubjectOrder, errorCodeInvalid, err)
	}
	return booking.PaymentOrder{
		ID:          model.OrderID,
		Date:        date,
		Range:       booking.Range{Start: booking.SlotHour(model.StartHour), Duration: model.Duration},
		PayFees:     model.PayFees,
		AmountPaise: model.AmountPaise,
		CreatedAt:   model.CreatedAt,
	}, nil
}

func (store *BookingStore) GetSettings(ctx context.Context) (booking.Settings, error) {
	var model TurfSettings
	err := store.db.WithContext(ctx).Where("settings_id = ?", settingsRowID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Settings{}, wrapStoreError(errorSubjectSettings, errorCodeGet, booking.ErrSettingsNotFound)
	}
	if err != nil {
		return booking.Settings{}, wrapStoreError(errorSubjectSettings, errorCodeGet, err)
	}
	settings, err := mapSettings(model)
	if err != nil {
		return booking.Settings{}, wrapStoreError(errorSubjectSettings, errorCodeInvalid, err)
	}
	return settings, nil
}

// SaveSettings inserts the first settings row when expectedVersion is zero and
// otherwise replaces the row only if its version still equals expectedVersion.
func (store *BookingStore) SaveSettings(ctx context.Context, settings booking.Settings, expectedVersion int64) error {
	model := settingsModel(settings)
	if expectedVersion == 0 {
		result := store.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if result.Error != nil {
			return wrapStoreError(errorSubjectSettings, errorCodeCreate, result.Error)
		}
		if result.RowsAffected == 0 {
			return wrapStoreError(errorSubjectSettings, errorCodeCreate, booking.ErrSettingsVersionConflict)
		}
		return nil
	}
	result := store.db.WithContext(ctx).
		Model(&TurfSettings{}).
		Where("settings_id = ? AND version = ?", settingsRowID, expectedVersion).
		Select("*").
		Updates(&model)
	if result.Error != nil {
		return wrapStoreError(errorSubjectSettings, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSettings, errorCodeUpdate, booking.ErrSettingsVersionConflict)
	}
	return nil
}

type entryRecord struct {
	TransactionID string          `json:"txnId"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"paymentMethod"`
	Reference     string          `json:"reference,omitempty"`
	Note          string          `json:"note,omitempty"`
	RecordedAt    time.Time       `json:"recordedAt"`
}

func marshalEntries(entries []booking.AmountEntry) (datatypes.JSON, error) {
	records := make([]entryRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, entryRecord{
			TransactionID: entry.TransactionID,
			Kind:          string(entry.Kind),
			Amount:        entry.Amount,
			Method:        entry.Method.String(),
			Reference:     entry.Reference,
			Note:          entry.Note,
			RecordedAt:    entry.RecordedAt.UTC(),
		})
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func unmarshalEntries(raw datatypes.JSON) ([]booking.AmountEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var records []entryRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	entries := make([]booking.AmountEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, booking.AmountEntry{
			TransactionID: record.TransactionID,
			Kind:          booking.EntryKind(record.Kind),
			Amount:        record.Amount,
			Method:        ledger.PaymentMethod(record.Method),
			Reference:     record.Reference,
			Note:          record.Note,
			RecordedAt:    record.RecordedAt,
		})
	}
	return entries, nil
}

func bookingModel(record booking.Booking) (Booking, error) {
	entries, err := marshalEntries(record.Amount.Entries)
	if err != nil {
		return Booking{}, err
	}
	model := Booking{
		BookingID:       record.ID.String(),
		Date:            record.Date.String(),
		StartHour:       int(record.Range.Start),
		Duration:        record.Range.Duration,
		CustomerName:    record.Customer.Name,
		CustomerContact: record.Customer.Contact,
		TotalAmount:     record.Amount.Total,
		AdvanceAmount:   record.Amount.Advance,
		RemainingAmount: record.Amount.Remaining,
		Discount:        record.Amount.Discount,
		Entries:         entries,
		PaymentStatus:   record.PaymentStatus.String(),
		Status:          record.Status.String(),
		CreatedBy:       record.CreatedBy,
		CreatedAt:       record.CreatedAt.UTC(),
		UpdatedAt:       record.UpdatedAt.UTC(),
	}
	if record.Gateway != nil {
		model.PayFees = record.Gateway.PayFeesFlag
		model.GatewayOrderID = stringPointer(record.Gateway.OrderID)
		model.GatewayPaymentID = stringPointer(record.Gateway.PaymentID)
		model.GatewaySignature = stringPointer(record.Gateway.Signature)
		model.GatewayFee = decimal.NewNullDecimal(record.Gateway.Fee)
	}
	return model, nil
}

func mapBooking(model Booking) (booking.Booking, error) {
	id, err := booking.NewBookingID(model.BookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	date, err := booking.ParseDate(model.Date)
	if err != nil {
		return booking.Booking{}, err
	}
	status, err := booking.ParseBookingStatus(model.Status)
	if err != nil {
		return booking.Booking{}, err
	}
	paymentStatus, err := booking.ParsePaymentStatus(model.PaymentStatus)
	if err != nil {
		return booking.Booking{}, err
	}
	entries, err := unmarshalEntries(model.Entries)
	if err != nil {
		return booking.Booking{}, err
	}
	record := booking.Booking{
		ID:       id,
		Date:     date,
		Range:    booking.Range{Start: booking.SlotHour(model.StartHour), Duration: model.Duration},
		Customer: booking.Customer{Name: model.CustomerName, Contact: model.CustomerContact},
		Amount: booking.AmountDetails{
			Total:     model.TotalAmount,
			Advance:   model.AdvanceAmount,
			Remaining: model.RemainingAmount,
			Discount:  model.Discount,
			Entries:   entries,
		},
		PaymentStatus: paymentStatus,
		Status:        status,
		CreatedBy:     model.CreatedBy,
		CreatedAt:     model.CreatedAt.UTC(),
		UpdatedAt:     model.UpdatedAt.UTC(),
	}
	if model.GatewayPaymentID != nil {
		record.Gateway = &booking.GatewayPayment{
			PayFeesFlag: model.PayFees,
			OrderID:     stringValue(model.GatewayOrderID),
			PaymentID:   stringValue(model.GatewayPaymentID),
			Signature:   stringValue(model.GatewaySignature),
			Fee:         model.GatewayFee.Decimal,
		}
	}
	return record, nil
}

func mapBookings(rows []Booking) ([]booking.Booking, error) {
	bookings := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		record, err := mapBooking(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, record)
	}
	return bookings, nil
}

func settingsModel(settings booking.Settings) TurfSettings {
	return TurfSettings{
		SettingsID:        settingsRowID,
		TurfName:          settings.TurfName,
		BookingInitials:   settings.Initials.String(),
		HourlyRate:        settings.Fees.HourlyRate,
		BookingFeePerHour: settings.Fees.BookingFeePerHour,
		GatewayFeeRate:    settings.Fees.GatewayFeeRate,
		GSTRate:           settings.Fees.GSTRate,
		OpenHour:          settings.Hours.Open,
		CloseHour:         settings.Hours.Close,
		GatewayVendor:     settings.GatewayVendor,
		Version:           settings.Version,
		UpdatedAt:         settings.UpdatedAt.UTC(),
	}
}

func mapSettings(model TurfSettings) (booking.Settings, error) {
	initials, err := booking.NewInitials(model.BookingInitials)
	if err != nil {
		return booking.Settings{}, err
	}
	fees, err := booking.NewFeeSchedule(model.HourlyRate, model.BookingFeePerHour, model.GatewayFeeRate, model.GSTRate)
	if err != nil {
		return booking.Settings{}, err
	}
	hours, err := booking.NewOperatingHours(model.OpenHour, model.CloseHour)
	if err != nil {
		return booking.Settings{}, err
	}
	return booking.Settings{
		TurfName:      model.TurfName,
		Initials:      initials,
		Fees:          fees,
		Hours:         hours,
		GatewayVendor: model.GatewayVendor,
		Version:       model.Version,
		UpdatedAt:     model.UpdatedAt.UTC(),
	}, nil
}
