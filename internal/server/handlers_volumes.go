package server

import (
	"net/http"

	"github.com/thrane20/dillinger/internal/volumes"
)

func (s *Server) volumeChanged(id string, v *volumes.Volume) {
	if s.hub != nil {
		s.hub.VolumeChanged(id, v)
	}
}

func (s *Server) handleListVolumes(w http.ResponseWriter, r *http.Request) {
	vols, err := s.volumes.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if vols == nil {
		vols = []volumes.Volume{}
	}
	resp := map[string]interface{}{
		"volumes": vols,
		"total":   len(vols),
	}
	if r.URL.Query().Get("all") == "1" {
		unmanaged, err := s.volumes.Discover(r.Context())
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if unmanaged == nil {
			unmanaged = []volumes.Unmanaged{}
		}
		resp["unmanaged"] = unmanaged
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateVolume(w http.ResponseWriter, r *http.Request) {
	var req volumes.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	v, err := s.volumes.Create(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.volumeChanged(v.ID, v)
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleUnmanagedVolumes(w http.ResponseWriter, r *http.Request) {
	unmanaged, err := s.volumes.Discover(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if unmanaged == nil {
		unmanaged = []volumes.Unmanaged{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"volumes": unmanaged,
		"total":   len(unmanaged),
	})
}

func (s *Server) handleVolumeDefaults(w http.ResponseWriter, r *http.Request) {
	d, err := s.volumes.Defaults(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleResolveDefault answers 200 with a null volume when the purpose has
// no holder.
func (s *Server) handleResolveDefault(w http.ResponseWriter, r *http.Request) {
	purpose := volumes.Purpose(r.PathValue("purpose"))
	v, err := s.volumes.ResolveDefault(r.Context(), purpose)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"purpose": purpose,
		"volume":  v,
	})
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	v, err := s.volumes.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRemoveVolume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.volumes.Remove(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	s.volumeChanged(id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleReassignPurpose(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Purpose volumes.Purpose `json:"purpose"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	v, err := s.volumes.ReassignPurpose(r.Context(), r.PathValue("id"), body.Purpose)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.volumeChanged(v.ID, v)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSetStorageType(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StorageType volumes.StorageType `json:"storage_type"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	v, err := s.volumes.SetStorageType(r.Context(), r.PathValue("id"), body.StorageType)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.volumeChanged(v.ID, v)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVolumeUsage(w http.ResponseWriter, r *http.Request) {
	u, err := s.volumes.Usage(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
