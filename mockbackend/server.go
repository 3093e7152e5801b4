// Package mockbackend is an in-process answer backend speaking the same wire
// protocol as the real one. It generates lorem ipsum answers, so the client
// library, the CLI's offline mode, and the test suite can all exercise the
// real network path without an actual model behind it.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"github.com/google/uuid"

	inkwell "github.com/inkwellai/inkwell-go"
)

// Prompt directives. A prompt starting with one of these prefixes makes the
// mock misbehave on purpose, for exercising the client's failure paths.
const (
	// PromptError streams a few deltas and then an error frame carrying the
	// rest of the prompt as the message.
	PromptError = "error:"

	// PromptTruncate streams deltas and closes the connection without a
	// terminal frame.
	PromptTruncate = "truncate:"

	// PromptSlow paces the stream at one word per 100ms.
	PromptSlow = "slow:"
)

// Server is the mock backend. Create with New, mount via Handler.
type Server struct {
	// WordDelay paces streamed deltas. Zero (the default) streams as fast
	// as the connection allows, which is what tests want.
	WordDelay time.Duration

	mu          sync.Mutex
	gen         *loremgen.Lorem
	notebooks   map[string]inkwell.Notebook
	documents   map[string]inkwell.Document
	connections map[string]inkwell.Connection
	attempts    map[string]*attempt
	bySession   map[string]string // session id -> incomplete attempt id
	questions   []bankQuestion
}

type bankQuestion struct {
	question inkwell.Question
	correct  string
}

type attempt struct {
	id        string
	name      string
	sessionID string
	index     int // next question to serve (0-based)
	score     int
	completed bool
}

// New creates a mock backend with a three-question quiz bank and empty
// registries.
func New() *Server {
	s := &Server{
		gen:         loremgen.New(),
		notebooks:   make(map[string]inkwell.Notebook),
		documents:   make(map[string]inkwell.Document),
		connections: make(map[string]inkwell.Connection),
		attempts:    make(map[string]*attempt),
		bySession:   make(map[string]string),
	}
	s.questions = s.buildQuestionBank(3)
	return s
}

// buildQuestionBank generates n lorem questions with a known correct choice.
func (s *Server) buildQuestionBank(n int) []bankQuestion {
	bank := make([]bankQuestion, 0, n)
	answers := []string{"A", "B", "C", "D"}
	for i := 0; i < n; i++ {
		q := inkwell.Question{
			ID:   fmt.Sprintf("q-%d", i+1),
			Text: s.gen.Sentence(5, 12) + "?",
			Choices: map[string]string{
				"A": s.gen.Word(3, 10),
				"B": s.gen.Word(3, 10),
				"C": s.gen.Word(3, 10),
				"D": s.gen.Word(3, 10),
			},
		}
		bank = append(bank, bankQuestion{question: q, correct: answers[i%len(answers)]})
	}
	return bank
}

// Handler returns the backend's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleLegacyChat)
	mux.HandleFunc("POST /api/notebooks/{id}/chat", s.handleNotebookChat)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/ask", s.handleAsk)

	mux.HandleFunc("GET /api/notebooks", s.handleListNotebooks)
	mux.HandleFunc("POST /api/notebooks", s.handleCreateNotebook)
	mux.HandleFunc("DELETE /api/notebooks/{id}", s.handleDeleteNotebook)
	mux.HandleFunc("GET /api/notebooks/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)

	mux.HandleFunc("GET /api/connections", s.handleListConnections)
	mux.HandleFunc("POST /api/connections", s.handleCreateConnection)
	mux.HandleFunc("DELETE /api/connections/{id}", s.handleDeleteConnection)

	mux.HandleFunc("POST /api/quiz/attempts", s.handleStartAttempt)
	mux.HandleFunc("POST /api/quiz/attempts/{id}/answers", s.handleSubmitAnswer)

	return mux
}

// ===== Streaming =====

// streamWriter emits wire frames onto a flushable response.
type streamWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newStreamWriter(w http.ResponseWriter) (*streamWriter, bool) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	return &streamWriter{w: w, f: f}, true
}

func (sw *streamWriter) frame(payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(sw.w, "data: %s\n", b)
	sw.f.Flush()
}

func (sw *streamWriter) sentinel() {
	fmt.Fprint(sw.w, "data: [DONE]\n")
	sw.f.Flush()
}

// answerPlan is what one streamed answer should do, derived from the prompt
// directives.
type answerPlan struct {
	words    []string
	delay    time.Duration
	errorMsg string // stream an error frame after the deltas if non-empty
	truncate bool   // close without a terminal frame
}

func (s *Server) planAnswer(prompt string) answerPlan {
	plan := answerPlan{delay: s.WordDelay}

	switch {
	case strings.HasPrefix(prompt, PromptError):
		plan.errorMsg = strings.TrimSpace(strings.TrimPrefix(prompt, PromptError))
		if plan.errorMsg == "" {
			plan.errorMsg = "mock backend error"
		}
	case strings.HasPrefix(prompt, PromptTruncate):
		plan.truncate = true
	case strings.HasPrefix(prompt, PromptSlow):
		plan.delay = 100 * time.Millisecond
	}

	s.mu.Lock()
	sentence := s.gen.Sentence(8, 16)
	s.mu.Unlock()
	plan.words = strings.Fields(sentence)
	return plan
}

// streamDeltas writes the plan's words as delta frames using emit, honoring
// pacing and client disconnect. Returns false if the stream should end
// without a terminal frame.
func (s *Server) streamDeltas(r *http.Request, sw *streamWriter, plan answerPlan, emit func(word string)) bool {
	for i, word := range plan.words {
		if plan.delay > 0 {
			select {
			case <-r.Context().Done():
				return false
			case <-time.After(plan.delay):
			}
		}
		text := word
		if i < len(plan.words)-1 {
			text += " "
		}
		emit(text)
		// A couple of deltas are enough before an injected failure.
		if plan.errorMsg != "" && i >= 1 {
			sw.frame(map[string]string{"error": plan.errorMsg})
			return false
		}
		if plan.truncate && i >= 1 {
			return false
		}
	}
	return true
}

// handleLegacyChat speaks the legacy protocol: bare token frames terminated
// by the [DONE] sentinel.
func (s *Server) handleLegacyChat(w http.ResponseWriter, r *http.Request) {
	var req inkwell.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Stream {
		httpError(w, http.StatusBadRequest, "streaming endpoint requires stream=true")
		return
	}

	sw, ok := newStreamWriter(w)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	plan := s.planAnswer(req.Question)
	if s.streamDeltas(r, sw, plan, func(word string) {
		sw.frame(map[string]string{"token": word})
	}) {
		sw.sentinel()
	}
}

// handleNotebookChat speaks the multi-event protocol: typed content frames,
// a sources frame, then a typed done frame with the session id.
func (s *Server) handleNotebookChat(w http.ResponseWriter, r *http.Request) {
	notebookID := r.PathValue("id")
	s.mu.Lock()
	_, exists := s.notebooks[notebookID]
	s.mu.Unlock()
	if !exists {
		httpError(w, http.StatusNotFound, "notebook not found")
		return
	}

	var req inkwell.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Stream {
		httpError(w, http.StatusBadRequest, "streaming endpoint requires stream=true")
		return
	}

	sw, ok := newStreamWriter(w)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	plan := s.planAnswer(req.Question)
	if !s.streamDeltas(r, sw, plan, func(word string) {
		sw.frame(map[string]string{"type": "content", "content": word})
	}) {
		return
	}

	sw.frame(map[string]interface{}{
		"type": "sources",
		"sources": []inkwell.Source{
			{Filename: "lorem.pdf", Page: 1, Snippet: strings.Join(plan.words, " ")},
		},
	})

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sw.frame(map[string]string{"type": "done", "session_id": sessionID})
}

// handleQuery streams the query workflow: phase labels around generated
// query text, ending in a done frame carrying an executed result set.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req inkwell.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Stream {
		httpError(w, http.StatusBadRequest, "streaming endpoint requires stream=true")
		return
	}
	s.mu.Lock()
	_, exists := s.connections[req.ConnectionID]
	s.mu.Unlock()
	if !exists {
		httpError(w, http.StatusNotFound, "connection not found")
		return
	}

	sw, ok := newStreamWriter(w)
	if !ok {
		httpError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	plan := s.planAnswer(req.Prompt)

	sw.frame(map[string]string{"type": "phase", "phase": "generating"})
	query := "SELECT " + strings.Join(plan.words, ", ") + " FROM lorem"
	for _, chunk := range strings.SplitAfter(query, " ") {
		if plan.delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(plan.delay):
			}
		}
		sw.frame(map[string]string{"type": "content", "content": chunk})
	}
	if plan.errorMsg != "" {
		sw.frame(map[string]string{"error": plan.errorMsg})
		return
	}

	sw.frame(map[string]string{"type": "phase", "phase": "validating"})
	sw.frame(map[string]string{"type": "phase", "phase": "executing"})
	if plan.truncate {
		return
	}

	sw.frame(map[string]interface{}{
		"type": "done",
		"metadata": map[string]interface{}{
			"columns":     []string{"word", "length"},
			"rows":        s.loremRows(3),
			"row_count":   3,
			"duration_ms": 12,
		},
	})
}

func (s *Server) loremRows(n int) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]map[string]interface{}, 0, n)
	for i := 0; i < n; i++ {
		word := s.gen.Word(3, 10)
		rows = append(rows, map[string]interface{}{"word": word, "length": len(word)})
	}
	return rows
}

// handleAsk is the synchronous sibling of the chat endpoints.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req inkwell.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Stream {
		httpError(w, http.StatusBadRequest, "synchronous endpoint requires stream=false")
		return
	}
	if strings.HasPrefix(req.Question, PromptError) {
		httpError(w, http.StatusInternalServerError,
			strings.TrimSpace(strings.TrimPrefix(req.Question, PromptError)))
		return
	}

	s.mu.Lock()
	answer := s.gen.Paragraph(3, 5)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, inkwell.AskResponse{
		Answer:    answer,
		Sources:   []inkwell.Source{{Filename: "lorem.pdf", Page: 1}},
		SessionID: req.SessionID,
	})
}

// ===== Helpers =====

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
