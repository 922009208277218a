/*
Copyright (C) 2026 El Palenque

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage and services into the
// HTTP process.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/elpalenque/rienda/internal/api"
	"github.com/elpalenque/rienda/internal/audit"
	"github.com/elpalenque/rienda/internal/calendar"
	"github.com/elpalenque/rienda/internal/clock"
	"github.com/elpalenque/rienda/internal/config"
	"github.com/elpalenque/rienda/internal/db"
	"github.com/elpalenque/rienda/internal/directory"
	"github.com/elpalenque/rienda/internal/events"
	"github.com/elpalenque/rienda/internal/leadership"
	"github.com/elpalenque/rienda/internal/lifecycle"
	"github.com/elpalenque/rienda/internal/scheduling"
	"github.com/elpalenque/rienda/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cal       *clock.Calendar
	bus       *events.Bus
	dirs      scheduling.Directories
	scheduler *scheduling.Service
	calendar  *calendar.Operator
	lifecycle *lifecycle.Service
	election  *leadership.Election
	auditSvc  *audit.Service
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("rienda-api"))
	router.Use(telemetry.MetricsMiddleware)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := s.initDependencies(); err != nil {
		return nil, err
	}
	s.configureRoutes()
	s.startBackgroundWorkers()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	cal, err := clock.NewCalendar(s.cfg.Timezone)
	if err != nil {
		return err
	}
	s.cal = cal

	s.dirs = scheduling.Directories{
		Students:     directory.NewStudents(database, s.logger),
		Instructors:  directory.NewInstructors(database, s.logger),
		Horses:       directory.NewHorses(database, s.logger),
		TrialPersons: directory.NewTrialPersons(database, s.logger),
	}
	s.scheduler = scheduling.NewService(database, s.dirs, cal, s.bus, s.logger)
	s.calendar = calendar.NewOperator(database, s.bus, s.logger)
	s.auditSvc = audit.NewService(database, s.bus, s.logger)

	windowStart, err := clock.ParseTimeOfDay(s.cfg.TickerWindowStart)
	if err != nil {
		return err
	}
	windowEnd, err := clock.ParseTimeOfDay(s.cfg.TickerWindowEnd)
	if err != nil {
		return err
	}
	rawDays, err := config.ParseWeekdays(s.cfg.TickerDays)
	if err != nil {
		return err
	}
	days := make(map[time.Weekday]bool, len(rawDays))
	for d := range rawDays {
		days[time.Weekday(d)] = true
	}
	s.lifecycle = lifecycle.NewService(database, cal, s.bus, lifecycle.Config{
		Cadence:     time.Duration(s.cfg.TickerCadenceMinutes) * time.Minute,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Days:        days,
	}, s.logger)

	// With several instances sharing one database only the elected
	// leader runs the lifecycle ticker.
	if s.cfg.LeaderElectionEnabled {
		election, err := leadership.NewElection(leadership.ElectionConfig{
			RedisAddr:     s.cfg.RedisAddr,
			RedisPassword: s.cfg.RedisPassword,
			RedisDB:       s.cfg.RedisDB,
			InstanceID:    s.cfg.InstanceID,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}
		s.election = election
		s.lifecycle.SetLeaderGate(election)
		s.DeferClose(election.Stop)

		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Msg("leader election enabled for lifecycle ticker")
	}

	s.api = api.New(s.scheduler, s.calendar, s.dirs, s.auditSvc, s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.api.Routes(s.router)
	s.router.Handle("/metrics", telemetry.Handler())
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.election != nil {
		if err := s.election.Start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader election failed to start")
		}
	}

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.lifecycle.Run(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	// Periodically surface connection pool gauges.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	s.bgWG.Wait()
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// DB exposes the database handle, used by auxiliary commands.
func (s *Server) DB() *gorm.DB {
	return s.db
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
