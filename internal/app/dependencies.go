package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/schedr/schedr/internal/config"
	"github.com/schedr/schedr/internal/event_bus"
	"github.com/schedr/schedr/internal/utils"
	"github.com/schedr/schedr/pkg/override"
	"github.com/schedr/schedr/pkg/schedule"
	"github.com/schedr/schedr/pkg/series"
	"github.com/schedr/schedr/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	EventBus *event_bus.EventBus

	UserService user.Service
	UserHandler *user.Handler

	SeriesRepo    series.Repository
	OverrideRepo  override.Repository
	SeriesService *series.Service
	SeriesHandler *series.Handler

	Materializer    *schedule.Materializer
	ScheduleHandler *schedule.Handler

	Clock utils.Clock
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.EventBus = event_bus.NewEventBus()
	registerChangeLogging(deps.EventBus)

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.SeriesRepo = series.NewRepository(db)
	deps.OverrideRepo = override.NewRepository(db)
	deps.SeriesService = series.NewService(deps.SeriesRepo, deps.OverrideRepo, deps.EventBus)
	deps.SeriesHandler = series.NewHandler(deps.SeriesService)

	deps.Clock = &utils.SystemClock{}
	deps.Materializer = schedule.NewMaterializer(deps.SeriesRepo, deps.OverrideRepo, cfg.Calendar)
	deps.ScheduleHandler = schedule.NewHandler(deps.Materializer, deps.Clock)

	return deps
}

// registerChangeLogging records every series and occurrence change so that
// operators can trace what happened to a calendar without DB access.
func registerChangeLogging(bus *event_bus.EventBus) {
	logSeries := func(e event_bus.Event) error {
		change, ok := e.Data.(event_bus.SeriesChange)
		if !ok {
			return nil
		}
		log.Infof("%s: series=%s title=%q start=%s", e.Type, change.SeriesID, change.Title, change.Start)
		return nil
	}
	logOccurrence := func(e event_bus.Event) error {
		change, ok := e.Data.(event_bus.OccurrenceChange)
		if !ok {
			return nil
		}
		log.Infof("%s: series=%s occurrence=%s", e.Type, change.SeriesID, change.OriginalStart)
		return nil
	}

	bus.Subscribe(event_bus.SeriesCreated, logSeries)
	bus.Subscribe(event_bus.SeriesUpdated, logSeries)
	bus.Subscribe(event_bus.SeriesDeleted, logSeries)
	bus.Subscribe(event_bus.OccurrenceModified, logOccurrence)
	bus.Subscribe(event_bus.OccurrenceCancelled, logOccurrence)
}
