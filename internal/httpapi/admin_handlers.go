package httpapi

import (
	"net/http"
	"strconv"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"github.com/MarkoPoloResearchLab/turf/pkg/ledger"
	"github.com/gin-gonic/gin"
)

func (server *Server) handleDashboardStats(ctx *gin.Context) {
	period, err := ledger.ParsePeriod(ctx.Query("period"))
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	stats, err := server.bookings.BookingStats(ctx.Request.Context(), period)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	summary, err := server.ledger.Summary(ctx.Request.Context(), period)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{
		"period":           period.String(),
		"window":           newWindowPayload(stats.Window),
		"totalBookings":    stats.Current,
		"previousBookings": stats.Previous,
		"bookingsChange":   stats.Change,
		"revenue":          summary.TotalRevenue,
		"revenueChange":    summary.RevenueChange,
		"expenses":         summary.TotalExpenses,
		"netProfit":        summary.NetProfit,
		"pendingPayments":  summary.PendingPayments,
	})
}

func (server *Server) handleRecentBookings(ctx *gin.Context) {
	limit := 0
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			server.abortWithError(ctx, ledger.ErrInvalidPage)
			return
		}
		limit = parsed
	}
	bookings, err := server.bookings.RecentBookings(ctx.Request.Context(), limit)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"bookings": newBookingPayloads(bookings)})
}

// handleSchedule lists the day's bookings; an empty date means today.
func (server *Server) handleSchedule(ctx *gin.Context) {
	var date booking.Date
	if raw := ctx.Query("date"); raw != "" {
		parsed, err := booking.ParseDate(raw)
		if err != nil {
			server.abortWithError(ctx, err)
			return
		}
		date = parsed
	}
	bookings, err := server.bookings.Schedule(ctx.Request.Context(), date)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"bookings": newBookingPayloads(bookings)})
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	session, err := server.auth.Login(ctx.Request.Context(), request.Email, request.Password)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{
		"user":   newUserPayload(session.User),
		"tokens": newTokensPayload(session.Tokens),
	})
}

func (server *Server) handleRefresh(ctx *gin.Context) {
	var request refreshRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	tokens, err := server.auth.Refresh(ctx.Request.Context(), request.RefreshToken)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"tokens": newTokensPayload(tokens)})
}

func (server *Server) handleMe(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		server.abortWithError(ctx, errMissingUser)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"user": newUserPayload(user)})
}

func (server *Server) handleGetSettings(ctx *gin.Context) {
	settings, err := server.bookings.Settings(ctx.Request.Context())
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"settings": newSettingsPayload(settings)})
}

// handleUpdateSettings replaces the settings when the caller's version is current.
func (server *Server) handleUpdateSettings(ctx *gin.Context) {
	var request settingsRequest
	if err := bindJSON(ctx, &request); err != nil {
		server.abortWithError(ctx, err)
		return
	}
	update, err := request.settings()
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	saved, err := server.bookings.UpdateSettings(ctx.Request.Context(), update, request.Version)
	if err != nil {
		server.abortWithError(ctx, err)
		return
	}
	respond(ctx, http.StatusOK, gin.H{"settings": newSettingsPayload(saved)})
}
