package mockbackend

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	inkwell "github.com/inkwellai/inkwell-go"
)

// quizTimeLimitMinutes is the time limit the mock advertises per attempt.
const quizTimeLimitMinutes = 10

func (s *Server) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var req inkwell.StartAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		httpError(w, http.StatusBadRequest, "name required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Resume an incomplete attempt for the same session, preserving score.
	var att *attempt
	resumed := false
	if id, ok := s.bySession[req.SessionID]; ok && req.SessionID != "" {
		if existing := s.attempts[id]; existing != nil && !existing.completed {
			att = existing
			resumed = true
		}
	}
	if att == nil {
		att = &attempt{
			id:        uuid.NewString(),
			name:      req.Name,
			sessionID: req.SessionID,
		}
		s.attempts[att.id] = att
		if req.SessionID != "" {
			s.bySession[req.SessionID] = att.id
		}
	}

	question := s.questions[att.index].question
	writeJSON(w, http.StatusOK, inkwell.StartAttemptResponse{
		AttemptID:        att.id,
		Question:         &question,
		QuestionNum:      att.index + 1,
		Total:            len(s.questions),
		Score:            att.score,
		Difficulty:       "mixed",
		TimeLimitMinutes: quizTimeLimitMinutes,
		Resumed:          resumed,
	})
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	attemptID := r.PathValue("id")

	var req inkwell.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	att := s.attempts[attemptID]
	if att == nil {
		httpError(w, http.StatusNotFound, "attempt not found")
		return
	}
	if att.completed || att.index >= len(s.questions) {
		httpError(w, http.StatusConflict, "attempt already completed")
		return
	}

	current := s.questions[att.index]
	if req.QuestionID != current.question.ID {
		httpError(w, http.StatusConflict, "answer does not match the current question")
		return
	}

	correct := req.Choice == current.correct
	if correct {
		att.score++
	}
	att.index++

	resp := inkwell.SubmitAnswerResponse{
		Correct:       correct,
		CorrectAnswer: current.correct,
		Explanation:   s.gen.Sentence(6, 12),
	}

	if att.index >= len(s.questions) {
		att.completed = true
		delete(s.bySession, att.sessionID)
		resp.Completed = true
		resp.Results = &inkwell.QuizResults{
			AttemptID:   att.id,
			Score:       att.score,
			Total:       len(s.questions),
			Percent:     float64(att.score) / float64(len(s.questions)) * 100,
			CompletedAt: time.Now().UTC(),
		}
	} else {
		next := s.questions[att.index].question
		resp.NextQuestion = &next
	}

	writeJSON(w, http.StatusOK, resp)
}
