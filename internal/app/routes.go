package app

import (
	"github.com/gorilla/mux"
	"github.com/schedr/schedr/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {

	// Event series
	r.HandleFunc("/api/events", deps.SeriesHandler.ListEvents).Methods("GET")
	r.HandleFunc("/api/events", deps.SeriesHandler.CreateEvent).Methods("POST")
	r.HandleFunc("/api/events/{eventId}", deps.SeriesHandler.GetEvent).Methods("GET")
	r.HandleFunc("/api/events/{eventId}", deps.SeriesHandler.UpdateEvent).Methods("PUT", "PATCH")
	r.HandleFunc("/api/events/{eventId}", deps.SeriesHandler.DeleteEvent).Methods("DELETE")
	r.HandleFunc("/api/events/{eventId}/restore", deps.SeriesHandler.RestoreOccurrence).Methods("POST")

	// Materialized calendar
	r.HandleFunc("/api/calendar", deps.ScheduleHandler.GetCalendar).Methods("GET")
	r.HandleFunc("/api/upcoming", deps.ScheduleHandler.GetUpcoming).Methods("GET")

	// User management
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
}
