package server

import (
	"fmt"
	"net/http"

	"github.com/thrane20/dillinger/internal/errs"
	"github.com/thrane20/dillinger/internal/games"
	"github.com/thrane20/dillinger/internal/lutris"
)

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	list, err := s.games.ListGames(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []*games.Game{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"games": list,
		"total": len(list),
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title      string `json:"title"`
		PlatformID string `json:"platform_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	g, err := s.games.CreateGame(r.Context(), body.Title, body.PlatformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.games.GetGame(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.games.DeleteGame(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// draftRequest carries the caller's in-progress draft, if any, and the
// platform to switch to or add.
type draftRequest struct {
	Current    *games.Draft `json:"current,omitempty"`
	PlatformID string       `json:"platform_id"`
}

func (s *Server) handleSelectPlatform(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	d, err := s.games.SelectPlatform(r.Context(), r.PathValue("id"), body.Current, body.PlatformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleAddPlatform(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	d, err := s.games.AddPlatform(r.Context(), r.PathValue("id"), body.Current, body.PlatformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleCommitDraft(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)
	var d games.Draft
	if err := decodeBody(r, &d); err != nil {
		writeErr(w, r, err)
		return
	}
	if d.PlatformID == "" {
		d.PlatformID = platformID
	}
	if d.PlatformID != platformID {
		writeErr(w, r, errs.InvalidRequest("draft is for %q, not %q", d.PlatformID, platformID))
		return
	}
	g, err := s.games.CommitDraft(r.Context(), gameID, &d)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleRemovePlatform(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)
	g, err := s.games.RemovePlatform(r.Context(), gameID, platformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleSetDefaultPlatform(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlatformID string `json:"platform_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	g, err := s.games.SetDefaultPlatform(r.Context(), r.PathValue("id"), body.PlatformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleAttachLutris replaces a platform's Lutris installers with the given
// scripts. Each script is a full installer document in YAML or JSON.
func (s *Server) handleAttachLutris(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)
	var body struct {
		Scripts []string `json:"scripts"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	installers := make([]lutris.Installer, 0, len(body.Scripts))
	for i, script := range body.Scripts {
		inst, err := lutris.ParseInstaller([]byte(script), fmt.Sprintf("%s-%d", platformID, i+1))
		if err != nil {
			writeErr(w, r, errs.InvalidRequest("script %d: %v", i+1, err))
			return
		}
		installers = append(installers, *inst)
	}
	g, err := s.games.AttachLutrisInstallers(r.Context(), gameID, platformID, installers)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleSelectLutris(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)
	var body struct {
		InstallerID string `json:"installer_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	g, err := s.games.SelectLutrisInstaller(r.Context(), gameID, platformID, body.InstallerID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}
