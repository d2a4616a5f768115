package web

import (
	"net/http"

	"github.com/JonMunkholm/detailing/internal/tables"
)

// handleListTemplates lists the registered export templates in probe order.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	infos := []tables.Info{}
	for _, t := range s.deps.Templates.All() {
		infos = append(infos, t.Info())
	}
	writeJSON(w, infos)
}
