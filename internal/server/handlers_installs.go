package server

import (
	"net/http"
	"strconv"

	"github.com/thrane20/dillinger/internal/engine"
	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/store"
)

type installAction func(r *http.Request, gameID, platformID string) (*games.InstallationRecord, error)

// handleRecord runs fn for the path's installation and writes the record.
func (s *Server) handleRecord(status int, fn installAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, platformID := pathIDs(r)
		rec, err := fn(r, gameID, platformID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		writeJSON(w, status, rec)
	}
}

func (s *Server) handleGetInstallation(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(http.StatusOK, func(r *http.Request, gameID, platformID string) (*games.InstallationRecord, error) {
		return s.installs.Get(r.Context(), gameID, platformID)
	})(w, r)
}

func (s *Server) handleStartInstall(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(http.StatusAccepted, func(r *http.Request, gameID, platformID string) (*games.InstallationRecord, error) {
		var req engine.StartRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		if (req.GameID != "" && req.GameID != gameID) || (req.PlatformID != "" && req.PlatformID != platformID) {
			return nil, errs.InvalidRequest("request body names a different game or platform than the URL")
		}
		req.GameID, req.PlatformID = gameID, platformID
		return s.installs.Start(r.Context(), req)
	})(w, r)
}

func (s *Server) handlePollInstall(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(http.StatusOK, func(r *http.Request, gameID, platformID string) (*games.InstallationRecord, error) {
		return s.installs.Poll(r.Context(), gameID, platformID)
	})(w, r)
}

func (s *Server) handleCancelInstall(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(http.StatusOK, func(r *http.Request, gameID, platformID string) (*games.InstallationRecord, error) {
		return s.installs.Cancel(r.Context(), gameID, platformID)
	})(w, r)
}

func (s *Server) handleResetInstall(w http.ResponseWriter, r *http.Request) {
	s.handleRecord(http.StatusOK, func(r *http.Request, gameID, platformID string) (*games.InstallationRecord, error) {
		return s.installs.Reset(r.Context(), gameID, platformID)
	})(w, r)
}

func (s *Server) handleInstallLogs(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)
	afterID := 0
	if afterStr := r.URL.Query().Get("after"); afterStr != "" {
		n, err := strconv.Atoi(afterStr)
		if err != nil || n < 0 {
			writeErr(w, r, errs.InvalidRequest("after must be a non-negative integer"))
			return
		}
		afterID = n
	}

	logs, lastID, err := s.installs.Logs(r.Context(), gameID, platformID, afterID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if logs == nil {
		logs = []*store.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":    logs,
		"last_id": lastID,
	})
}
