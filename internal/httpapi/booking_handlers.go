package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/gin-gonic/gin"
)

func (server *Server) handleSlots(ctx *gin.Context) {
	date, err := booking.ParseDate(ctx.Query("date"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	availability, err := server.bookings.Availability(ctx.Request.Context(), date)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	booked := make([]bookedSlotPayload, 0, len(availability.Booked))
	for _, occupied := range availability.Booked {
		booked = append(booked, bookedSlotPayload{StartTime: occupied.StartTime, Duration: occupied.Duration})
	}
	slots := make([]slotPayload, 0, len(availability.Slots))
	for _, slot := range availability.Slots {
		slots = append(slots, slotPayload{ID: int(slot.ID), StartTime: slot.StartTime, Available: slot.Available})
	}
	respond(ctx, http.StatusOK, gin.H{
		"date":        availability.Date.String(),
		"bookedSlots": booked,
		"slots":       slots,
	})
}

// handleCreateBooking commits a gateway-paid booking. A replayed payment
// returns the booking created by the first request.
func (server *Server) handleCreateBooking(ctx *gin.Context) {
	var request createBookingRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	date, start, err := request.parse()
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	customer, err := booking.NewCustomer(request.Customer.Name, request.Customer.Contact)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	proof, err := request.Payment.proof()
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	result, err := server.bookings.CommitGatewayBooking(ctx.Request.Context(), booking.GatewayBookingRequest{
		Date:     date,
		Start:    start,
		Duration: request.Duration,
		Customer: customer,
		PayFees:  request.PayFees,
		Proof:    proof,
	})
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	respond(ctx, status, gin.H{
		"bookingId": result.Booking.ID.String(),
		"replayed":  result.Replayed,
		"booking":   newBookingPayload(result.Booking),
	})
}

func (server *Server) handleManualBooking(ctx *gin.Context) {
	var request manualBookingRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	date, start, err := request.parse()
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	customer, err := booking.NewCustomer(request.Customer.Name, request.Customer.Contact)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	var method ledger.PaymentMethod
	if request.PaymentMethod != "" {
		if method, err = ledger.ParsePaymentMethod(request.PaymentMethod); err != nil {
			server.abortWithError(ctx, err)
			return
		}
	}
	user, _ := currentUser(ctx)
	created, err := server.bookings.CommitManualBooking(ctx.Request.Context(), booking.ManualBookingRequest{
		Date:          date,
		Start:         start,
		Duration:      request.Duration,
		Customer:      customer,
		PaymentMethod: method,
		Discount:      request.Discount,
		CreatedBy:     user.Email,
	})
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, gin.H{"bookingId": created.ID.String(), "booking": newBookingPayload(created)})
}

func (server *Server) handleGetBooking(ctx *gin.Context) {
	id, err := booking.NewBookingID(ctx.Param("id"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	found, err := server.bookings.GetBooking(ctx.Request.Context(), id)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"booking": newBookingPayload(found)})
}

func (server *Server) handleListBookings(ctx *gin.Context) {
	var query bookingListQuery
	if err := bindQuery(ctx, &query); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	page, err := ledger.NewPage(query.Page, query.Limit)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	bookingQuery := booking.BookingQuery{Page: page, Search: query.Search}
	if query.Status != "" {
		if bookingQuery.Status, err = booking.ParseBookingStatus(query.Status); err != nil {
			server.abortWithError(ctx, err)
			return
		}
	}
	if bookingQuery.DateFilter, err = booking.ParseDateFilter(query.DateFilter); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	if query.Date != "" {
		if bookingQuery.Date, err = booking.ParseDate(query.Date); err != nil {
			server.abortWithError(ctx, err)
			return
		}
		if bookingQuery.DateFilter == booking.DateFilterAll {
			bookingQuery.DateFilter = booking.DateFilterOn
		}
	}
	bookings, pagination, err := server.bookings.ListBookings(ctx.Request.Context(), bookingQuery)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{
		"bookings":   newBookingPayloads(bookings),
		"pagination": newPaginationPayload(pagination),
	})
}

func (server *Server) handleUpdateBookingStatus(ctx *gin.Context) {
	id, err := booking.NewBookingID(ctx.Param("id"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	var request bookingStatusRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	status, err := booking.ParseBookingStatus(request.Status)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	var method ledger.PaymentMethod
	if request.PaymentMethod != "" {
		if method, err = ledger.ParsePaymentMethod(request.PaymentMethod); err != nil {
			server.abortWithError(ctx, err)
			return
		}
	}
	updated, err := server.bookings.UpdateStatus(ctx.Request.Context(), id, status, method)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"booking": newBookingPayload(updated)})
}

func (server *Server) handleCreateOrder(ctx *gin.Context) {
	var request createOrderRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	date, start, err := request.parse()
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	order, amounts, err := server.bookings.CreateOrder(ctx.Request.Context(), booking.OrderInput{
		Date:     date,
		Start:    start,
		Duration: request.Duration,
		PayFees:  request.PayFees,
	})
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusCreated, gin.H{
		"keyId": server.config.GatewayKeyID,
		"order": orderPayload{
			ID:       order.ID,
			Amount:   order.AmountPaise,
			Currency: order.Currency,
			Receipt:  order.Receipt,
			Status:   order.Status,
		},
		"amounts": newQuotePayload(amounts),
	})
}

func (server *Server) handleVerifyPayment(ctx *gin.Context) {
	var request paymentProofRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	proof, err := request.proof()
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	if err := server.bookings.VerifyPayment(proof); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"verified": true, "paymentId": proof.PaymentID})
}
