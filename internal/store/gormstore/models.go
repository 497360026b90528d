package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Booking mirrors the bookings table.
type Booking struct {
	BookingID        string              `gorm:"primaryKey;size:16"`
	Date             string              `gorm:"size:10;not null;index:idx_bookings_date_status,priority:1"`
	StartHour        int                 `gorm:"not null"`
	Duration         int                 `gorm:"not null"`
	CustomerName     string              `gorm:"size:120;not null"`
	CustomerContact  string              `gorm:"size:120;not null"`
	TotalAmount      decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	AdvanceAmount    decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	RemainingAmount  decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	Discount         decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	Entries          datatypes.JSON      `gorm:"type:jsonb;not null"`
	PaymentStatus    string              `gorm:"size:16;not null"`
	Status           string              `gorm:"size:16;not null;index:idx_bookings_date_status,priority:2"`
	PayFees          bool                `gorm:"not null;default:false"`
	GatewayOrderID   *string             `gorm:"size:64"`
	GatewayPaymentID *string             `gorm:"size:64;uniqueIndex:idx_bookings_gateway_payment_id"`
	GatewaySignature *string             `gorm:"size:128"`
	GatewayFee       decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	CreatedBy        string              `gorm:"size:120;not null"`
	CreatedAt        time.Time           `gorm:"not null;index:idx_bookings_created_at"`
	UpdatedAt        time.Time           `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

// SlotClaim mirrors the slot_claims table. One row per booked hour.
type SlotClaim struct {
	ClaimID   string    `gorm:"type:uuid;primaryKey"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_slot_claims_date_hour,priority:1"`
	Hour      int       `gorm:"not null;uniqueIndex:idx_slot_claims_date_hour,priority:2"`
	BookingID string    `gorm:"size:16;not null;index:idx_slot_claims_booking"`
	CreatedAt time.Time `gorm:"not null"`
}

func (SlotClaim) TableName() string { return "slot_claims" }

func (claim *SlotClaim) BeforeCreate(tx *gorm.DB) error {
	if claim.ClaimID == "" {
		claim.ClaimID = uuid.NewString()
	}
	return nil
}

// Transaction mirrors the transactions table.
type Transaction struct {
	TransactionID  string          `gorm:"primaryKey;size:24"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Date           time.Time       `gorm:"not null;index:idx_transactions_type_status_date,priority:3"`
	Description    string          `gorm:"size:500;not null"`
	Category       string          `gorm:"size:24;not null"`
	PaymentMethod  string          `gorm:"size:24;not null"`
	Type           string          `gorm:"size:16;not null;index:idx_transactions_type_status_date,priority:1"`
	Status         string          `gorm:"size:16;not null;index:idx_transactions_type_status_date,priority:2"`
	RelatedBooking *string         `gorm:"size:16;index:idx_transactions_related_booking"`
	Vendor         *string         `gorm:"size:120"`
	GatewayDetails datatypes.JSON  `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"not null"`
}

func (Transaction) TableName() string { return "transactions" }

// Expense mirrors the expenses table.
type Expense struct {
	ExpenseID            string          `gorm:"primaryKey;size:24"`
	Amount               decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Date                 time.Time       `gorm:"not null;index:idx_expenses_status_date,priority:2"`
	Description          string          `gorm:"size:500;not null"`
	Category             string          `gorm:"size:24;not null"`
	Vendor               string          `gorm:"size:120;not null"`
	PaymentMethod        string          `gorm:"size:24;not null"`
	Status               string          `gorm:"size:16;not null;index:idx_expenses_status_date,priority:1"`
	RelatedTransactionID string          `gorm:"size:24;not null;uniqueIndex:idx_expenses_related_transaction"`
	CreatedAt            time.Time       `gorm:"not null"`
}

func (Expense) TableName() string { return "expenses" }

// PaymentOrder mirrors the payment_orders table of opened gateway orders.
type PaymentOrder struct {
	OrderID     string    `gorm:"primaryKey;size:64"`
	Date        string    `gorm:"size:10;not null"`
	StartHour   int       `gorm:"not null"`
	Duration    int       `gorm:"not null"`
	PayFees     bool      `gorm:"not null;default:false"`
	AmountPaise int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (PaymentOrder) TableName() string { return "payment_orders" }

// Sequence mirrors the sequences table of named counters.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:32"`
	Value int64  `gorm:"not null"`
}

func (Sequence) TableName() string { return "sequences" }

// TurfSettings mirrors the single-row turf_settings table.
type TurfSettings struct {
	SettingsID        int             `gorm:"primaryKey;autoIncrement:false"`
	TurfName          string          `gorm:"size:120;not null"`
	BookingInitials   string          `gorm:"size:2;not null"`
	HourlyRate        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	BookingFeePerHour decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	GatewayFeeRate    decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	GSTRate           decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	OpenHour          int             `gorm:"not null"`
	CloseHour         int             `gorm:"not null"`
	GatewayVendor     string          `gorm:"size:64;not null"`
	Version           int64           `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

func (TurfSettings) TableName() string { return "turf_settings" }

// User mirrors the users table.
type User struct {
	UserID       string    `gorm:"type:uuid;primaryKey"`
	Name         string    `gorm:"size:120;not null"`
	Email        string    `gorm:"size:254;not null;uniqueIndex:idx_users_email"`
	Mobile       string    `gorm:"size:20;not null;default:''"`
	PasswordHash string    `gorm:"size:100;not null"`
	Role         string    `gorm:"size:16;not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&Booking{},
		&SlotClaim{},
		&Transaction{},
		&Expense{},
		&Sequence{},
		&TurfSettings{},
		&User{},
		&PaymentOrder{},
	}
}

// AutoMigrate creates or updates every table. Production Postgres uses the
// embedded SQL migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
