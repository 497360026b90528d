package booking

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule holds the rates used to price a booking. Gateway and GST rates
// are fractions, so 0.02 means two percent.
type FeeSchedule struct {
	HourlyRate        decimal.Decimal
	BookingFeePerHour decimal.Decimal
	GatewayFeeRate    decimal.Decimal
	GSTRate           decimal.Decimal
}

// NewFeeSchedule validates rates. The per-hour booking fee may not exceed the hourly rate.
func NewFeeSchedule(hourlyRate, bookingFeePerHour, gatewayFeeRate, gstRate decimal.Decimal) (FeeSchedule, error) {
	if !hourlyRate.IsPositive() {
		return FeeSchedule{}, fmt.Errorf("%w: hourly rate must be positive", ErrInvalidFeeSchedule)
	}
	if !bookingFeePerHour.IsPositive() {
		return FeeSchedule{}, fmt.Errorf("%w: booking fee must be positive", ErrInvalidFeeSchedule)
	}
	if bookingFeePerHour.GreaterThan(hourlyRate) {
		return FeeSchedule{}, fmt.Errorf("%w: booking fee %s exceeds hourly rate %s", ErrInvalidFeeSchedule, bookingFeePerHour, hourlyRate)
	}
	if gatewayFeeRate.IsNegative() || gatewayFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeSchedule{}, fmt.Errorf("%w: gateway fee rate must be in [0, 1)", ErrInvalidFeeSchedule)
	}
	if gstRate.IsNegative() || gstRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return FeeSchedule{}, fmt.Errorf("%w: gst rate must be in [0, 1)", ErrInvalidFeeSchedule)
	}
	return FeeSchedule{
		HourlyRate:        hourlyRate,
		BookingFeePerHour: bookingFeePerHour,
		GatewayFeeRate:    gatewayFeeRate,
		GSTRate:           gstRate,
	}, nil
}

// Amounts is the price breakdown for a booking.
type Amounts struct {
	DurationHours   int
	Total           decimal.Decimal
	Advance         decimal.Decimal
	Remaining       decimal.Decimal
	GatewayFee      decimal.Decimal
	GatewayFeeTax   decimal.Decimal
	TotalGatewayFee decimal.Decimal
}

// Calculate prices durationHours of play. Zero hours prices to zero.
func (schedule FeeSchedule) Calculate(durationHours int) (Amounts, error) {
	if durationHours < 0 {
		return Amounts{}, fmt.Errorf("%w: %d", ErrInvalidDuration, durationHours)
	}
	hours := decimal.NewFromInt(int64(durationHours))
	total := schedule.HourlyRate.Mul(hours).Round(2)
	advance := schedule.BookingFeePerHour.Mul(hours).Round(2)
	gatewayFee := advance.Mul(schedule.GatewayFeeRate).Round(2)
	gatewayFeeTax := gatewayFee.Mul(schedule.GSTRate).Round(2)
	return Amounts{
		DurationHours:   durationHours,
		Total:           total,
		Advance:         advance,
		Remaining:       total.Sub(advance),
		GatewayFee:      gatewayFee,
		GatewayFeeTax:   gatewayFeeTax,
		TotalGatewayFee: gatewayFee.Add(gatewayFeeTax),
	}, nil
}

// ChargeAmount is what the gateway collects: the advance, plus the gateway
// fee when the customer chose to bear it.
func (amounts Amounts) ChargeAmount(payFees bool) decimal.Decimal {
	if payFees {
		return amounts.Advance.Add(amounts.TotalGatewayFee)
	}
	return amounts.Advance
}

// ChargePaise converts ChargeAmount to the gateway's integer minor unit.
func (amounts Amounts) ChargePaise(payFees bool) int64 {
	return amounts.ChargeAmount(payFees).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
