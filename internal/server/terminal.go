package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/creack/pty"
	"nhooyr.io/websocket"

	"github.com/thrane20/dillinger/internal/docker"
	"github.com/thrane20/dillinger/internal/games"
)

// terminalResize is sent by the frontend to resize the terminal.
type terminalResize struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

var allowedShells = map[string]bool{"/bin/bash": true, "/bin/sh": true}

// handleTerminal attaches a websocket to a shell inside the installation's
// running installer container.
func (s *Server) handleTerminal(w http.ResponseWriter, r *http.Request) {
	gameID, platformID := pathIDs(r)

	rec, err := s.installs.Get(r.Context(), gameID, platformID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if rec.Status != games.StatusInstalling || rec.ContainerID == "" {
		writeError(w, http.StatusConflict, fmt.Sprintf("%s/%s has no running installer", gameID, platformID))
		return
	}

	shell := r.URL.Query().Get("shell")
	if shell != "" && !allowedShells[shell] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("shell %q is not allowed", shell))
		return
	}
	cmd := docker.ShellCmd(rec.ContainerID, shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOriginPatterns(r),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		conn.Close(websocket.StatusInternalError, fmt.Sprintf("failed to start shell: %v", err))
		return
	}
	defer ptmx.Close()

	pty.Setsize(ptmx, &pty.Winsize{Rows: 24, Cols: 80})

	var wg sync.WaitGroup

	// PTY -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				if writeErr := conn.Write(ctx, websocket.MessageBinary, buf[:n]); writeErr != nil {
					break
				}
			}
			if err != nil {
				break
			}
		}
	}()

	// WebSocket -> PTY
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			msgType, data, err := conn.Read(ctx)
			if err != nil {
				break
			}
			if msgType == websocket.MessageText {
				var resize terminalResize
				if json.Unmarshal(data, &resize) == nil && resize.Type == "resize" {
					pty.Setsize(ptmx, &pty.Winsize{
						Rows: uint16(resize.Rows),
						Cols: uint16(resize.Cols),
					})
					continue
				}
			}
			if _, err := ptmx.Write(data); err != nil {
				break
			}
		}
		ptmx.Write([]byte{4}) // Ctrl-D
	}()

	cmd.Wait()
	ptmx.Close()

	conn.Close(websocket.StatusNormalClosure, "shell exited")
	wg.Wait()
}
