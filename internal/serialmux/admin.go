package serialmux

import (
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"
)

const sendCommandPage = `<!doctype html>
<title>send command</title>
<form method="post" action="send-command-api">
  <input name="command" size="40" placeholder="go(1500,1500,1500);">
  <button type="submit">send</button>
</form>
<p>Live board output: <a href="tail">/debug/tail</a></p>
`

// AttachAdminRoutes mounts a raw command form and a live tail of board
// output on the tsweb debug index.
func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "Send a raw command to the controller board", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, sendCommandPage)
	})
	debug.HandleSilentFunc("send-command-api", s.sendCommandAPI)
	debug.HandleSilentFunc("tail", s.tail)
}

func (s *SerialMux[T]) sendCommandAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}
	if err := s.SendCommand(command); err != nil {
		http.Error(w, "Failed to write command", http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "Wrote command %s to serial port", html.EscapeString(command))
}

// tail streams board lines as Server-Sent Events until the client leaves
// or the mux closes.
func (s *SerialMux[T]) tail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	id, lines := s.Subscribe()
	defer s.Unsubscribe(id)

	io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
