// Copyright 2025 The Tsaudit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server is the thin HTTP wrapper around the pipeline. Handlers
// decode a file identity and a caller-owned work directory, invoke the
// pipeline, and encode its result; no domain logic lives here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/researchspace/tsaudit/pkg/identity"
	"github.com/researchspace/tsaudit/pkg/pipeline"
)

// Server serves the stamp/check endpoints plus health and metrics.
type Server struct {
	httpServer *http.Server
	log        *logrus.Logger
}

// New wires the router. issuer and checker must be non-nil.
func New(addr string, issuer *pipeline.Issuer, checker *pipeline.Checker, log *logrus.Logger) *Server {
	h := &handlers{issuer: issuer, checker: checker, log: log}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Post("/v1/files/stamp", h.stamp)
	r.Post("/v1/files/check", h.check)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n")) //nolint:errcheck
	})
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
		log: log,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// fileRequest is the wire form of one stamp/check invocation. The caller
// has already downloaded the file into work_dir under local_file.
type fileRequest struct {
	User      string `json:"user"`
	FileID    string `json:"file_id"`
	ProjectID string `json:"project_id"`
	Provider  string `json:"provider"`
	Path      string `json:"path"`
	LocalFile string `json:"local_file"`
	WorkDir   string `json:"work_dir"`
}

func (fr *fileRequest) identity() identity.FileIdentity {
	if fr.Provider == identity.InternalProvider {
		return identity.Internal(fr.FileID, fr.ProjectID, fr.Path)
	}
	return identity.External(fr.ProjectID, fr.Provider, fr.Path)
}

func (fr *fileRequest) validate() error {
	switch {
	case fr.User == "":
		return errors.New("user is required")
	case fr.Provider == "":
		return errors.New("provider is required")
	case fr.Provider == identity.InternalProvider && fr.FileID == "":
		return errors.New("file_id is required for the internal provider")
	case fr.LocalFile == "" || fr.WorkDir == "":
		return errors.New("local_file and work_dir are required")
	}
	return nil
}

type handlers struct {
	issuer  *pipeline.Issuer
	checker *pipeline.Checker
	log     *logrus.Logger
}

func (h *handlers) stamp(w http.ResponseWriter, r *http.Request) {
	fr, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.issuer.Stamp(r.Context(), pipeline.StampRequest{
		User:          fr.User,
		Identity:      fr.identity(),
		LocalFileName: fr.LocalFile,
		WorkDir:       fr.WorkDir,
	})
	h.respond(w, r, res, err)
}

func (h *handlers) check(w http.ResponseWriter, r *http.Request) {
	fr, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.checker.Check(r.Context(), pipeline.CheckRequest{
		User:          fr.User,
		Identity:      fr.identity(),
		LocalFileName: fr.LocalFile,
		WorkDir:       fr.WorkDir,
	})
	h.respond(w, r, res, err)
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request) (*fileRequest, bool) {
	var fr fileRequest
	if err := json.NewDecoder(r.Body).Decode(&fr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := fr.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &fr, true
}

// respond maps pipeline outcomes to HTTP. A result with an error means the
// pass was indeterminate; it still carries a well-formed body, returned
// with 502 so callers do not mistake it for a settled status.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, res *pipeline.Result, err error) {
	if err != nil {
		h.log.WithError(err).WithField("request_id", r.Header.Get(requestIDHeader)).Error("pipeline pass failed")
		if res == nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

const requestIDHeader = "X-Request-Id"

// requestID tags each request for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
