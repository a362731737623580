package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindInvalidRequest, errs.KindLastPlatform:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindAlreadyConfigured, errs.KindAlreadyInstalling, errs.KindDuplicateHostPath, errs.KindConflict:
		return http.StatusConflict
	case errs.KindInstallerNotSelected:
		return http.StatusUnprocessableEntity
	case errs.KindExternalRunner:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeErr reports a service error. Expected kinds carry their kind in the
// body; anything else is logged and reported as an internal error.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if !errs.IsExpected(err) {
		log.Printf("[http] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, status, "internal error")
		return
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  string(errs.KindOf(err)),
	})
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errs.InvalidRequest("invalid request body: %v", err)
	}
	return nil
}

type healthComponent struct {
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Detail interface{} `json:"detail,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	components := map[string]healthComponent{}

	if s.db != nil {
		c := healthComponent{Status: "ok"}
		if err := s.db.Ping(ctx); err != nil {
			c = healthComponent{Status: "error", Error: err.Error()}
			status = "degraded"
		}
		components["database"] = c
	}

	if s.docker != nil {
		c := healthComponent{Status: "ok"}
		if info, err := s.docker.Info(ctx); err != nil {
			c = healthComponent{Status: "error", Error: err.Error()}
			status = "degraded"
		} else {
			c.Detail = info
		}
		components["docker"] = c
	} else {
		components["docker"] = healthComponent{Status: "disabled", Error: notConfigured("docker")}
	}

	if s.installers != nil {
		if list, err := s.installers.Installers(ctx); err == nil {
			components["installers"] = healthComponent{Status: "ok", Detail: map[string]int{"containers": len(list)}}
		} else {
			components["installers"] = healthComponent{Status: "error", Error: err.Error()}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"version":    version.Version,
		"components": components,
	})
}

func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms := games.KnownPlatforms()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"platforms": platforms,
		"total":     len(platforms),
	})
}
