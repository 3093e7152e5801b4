package mockbackend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	inkwell "github.com/inkwellai/inkwell-go"
)

// ===== Notebook registry =====

func (s *Server) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]inkwell.Notebook, 0, len(s.notebooks))
	for _, nb := range s.notebooks {
		out = append(out, nb)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateNotebook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httpError(w, http.StatusBadRequest, "notebook name required")
		return
	}

	nb := inkwell.Notebook{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.notebooks[nb.ID] = nb
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, nb)
}

func (s *Server) handleDeleteNotebook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, exists := s.notebooks[id]
	if exists {
		delete(s.notebooks, id)
		for docID, doc := range s.documents {
			if doc.NotebookID == id {
				delete(s.documents, docID)
			}
		}
	}
	s.mu.Unlock()

	if !exists {
		httpError(w, http.StatusNotFound, "notebook not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, exists := s.notebooks[id]
	out := make([]inkwell.Document, 0)
	for _, doc := range s.documents {
		if doc.NotebookID == id {
			out = append(out, doc)
		}
	}
	s.mu.Unlock()

	if !exists {
		httpError(w, http.StatusNotFound, "notebook not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, exists := s.documents[id]
	delete(s.documents, id)
	s.mu.Unlock()

	if !exists {
		httpError(w, http.StatusNotFound, "document not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDocument seeds a document, for tests and the CLI's offline mode.
func (s *Server) AddDocument(notebookID, filename string) inkwell.Document {
	doc := inkwell.Document{
		ID:         uuid.NewString(),
		NotebookID: notebookID,
		Filename:   filename,
		PageCount:  1,
		UploadedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.documents[doc.ID] = doc
	s.mu.Unlock()
	return doc
}

// ===== Connection registry =====

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]inkwell.Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		out = append(out, conn)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	var conn inkwell.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil || conn.Name == "" {
		httpError(w, http.StatusBadRequest, "connection name required")
		return
	}
	conn.ID = uuid.NewString()

	s.mu.Lock()
	s.connections[conn.ID] = conn
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, exists := s.connections[id]
	delete(s.connections, id)
	s.mu.Unlock()

	if !exists {
		httpError(w, http.StatusNotFound, "connection not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
