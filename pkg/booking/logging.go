package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation string
	BookingID BookingID
	PaymentID string
	Date      Date
	Amount    decimal.Decimal
	Attempts  int
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithPaymentClaimer serializes concurrent commits of one payment through claimer.
func WithPaymentClaimer(claimer PaymentClaimer, ttl time.Duration) ServiceOption {
	return func(service *Service) {
		service.claimer = claimer
		if ttl > 0 {
			service.claimTTL = ttl
		}
	}
}

// WithEventPublisher wires lifecycle event delivery.
func WithEventPublisher(publisher EventPublisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithOrderGateway wires gateway order creation.
func WithOrderGateway(gateway OrderGateway) ServiceOption {
	return func(service *Service) {
		service.gateway = gateway
	}
}

// WithLocation sets the time zone that defines "today" and slot start instants.
func WithLocation(location *time.Location) ServiceOption {
	return func(service *Service) {
		if location != nil {
			service.location = location
		}
	}
}
