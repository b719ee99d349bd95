package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/glowchain/device"
	"gregoryjjb/glowchain/gpio"
	"gregoryjjb/glowchain/relay"
)

// Longest hold a fake upstream pulse may ask for
const maxInjectHold = time.Second

// srvlog is built per call; a copy taken at init would miss InitializeLogger.
func srvlog() *zerolog.Logger {
	l := log.With().Str("component", "server").Logger()
	return &l
}

/////////////////////
// Response helpers

func RespondText(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func RespondJSON(w http.ResponseWriter, body any) {
	w.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		RespondText(w, http.StatusInternalServerError, err.Error())
	}
}

type versionResponse struct {
	Version   string    `json:"version"`
	BuildTime time.Time `json:"build_time"`
	Commit    string    `json:"commit"`
}

type statusResponse struct {
	device.Status
	Mask string `json:"mask"`
}

// NewRouter builds the control API. It only reads device state, except for
// /api/trigger which fakes an upstream pulse on boards that can.
func NewRouter(config *Config, build BuildInfo, dev *device.Device, board gpio.Board) http.Handler {
	r := chi.NewRouter()
	r.Use(LoggerMiddleware(srvlog()))

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, versionResponse{
				Version:   build.Version,
				BuildTime: build.Time,
				Commit:    build.Commit,
			})
		})

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			RespondJSON(w, statusResponse{
				Status: dev.Status(),
				Mask:   config.Mask().String(),
			})
		})

		r.Get("/history", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Cache-Control", "no-cache, no-store")
			RespondJSON(w, dev.History())
		})

		r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
			hold := relay.Hold
			if v := r.URL.Query().Get("hold"); v != "" {
				d, err := time.ParseDuration(v)
				if err != nil || d <= 0 || d > maxInjectHold {
					RespondText(w, http.StatusBadRequest, fmt.Sprintf("hold must be a duration in (0, %s]", maxInjectHold))
					return
				}
				hold = d
			}

			injector, ok := board.(gpio.Injector)
			if !ok {
				RespondText(w, http.StatusNotImplemented, gpio.ErrUnsupported.Error())
				return
			}
			if err := injector.HoldLow(dev.Trigger(), hold); err != nil {
				RespondText(w, http.StatusInternalServerError, err.Error())
				return
			}

			srvlog().Info().Str("hold", hold.String()).Msg("Injected trigger")
			w.WriteHeader(http.StatusNoContent)
		})

		r.Get("/events", createWebsocketHandler(dev))
	})

	return r
}

// StartServer serves the control API until ctx is cancelled.
func StartServer(ctx context.Context, config *Config, build BuildInfo, dev *device.Device, board gpio.Board) error {
	server := &http.Server{
		Addr:    config.ServerAddress(),
		Handler: NewRouter(config, build, dev, board),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			srvlog().Err(err).Msg("Server shutdown failed")
		}
	}()

	srvlog().Info().Str("listen", server.Addr).Msg("Launching server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
