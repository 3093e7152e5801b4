package inkwell

import "time"

// Notebook is a named collection of documents the backend answers from.
type Notebook struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Document is a single ingested file within a notebook.
type Document struct {
	ID         string    `json:"id"`
	NotebookID string    `json:"notebook_id,omitempty"`
	Filename   string    `json:"filename"`
	PageCount  int       `json:"page_count,omitempty"`
	UploadedAt time.Time `json:"uploaded_at,omitempty"`
}

// Connection is a registered database connection the backend can run
// generated queries against.
type Connection struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Driver string `json:"driver"`
	DSN    string `json:"dsn,omitempty"`
}

// Question is one quiz question as served by the backend. Answer choices
// are keyed by letter ("A".."D").
type Question struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Choices  map[string]string `json:"choices"`
	Category string            `json:"category,omitempty"`
}

// AnswerFeedback is the per-question verdict returned after submitting an
// answer. It is shown to the user between questions.
type AnswerFeedback struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

// QuizResults is the terminal record for a finished attempt.
type QuizResults struct {
	AttemptID   string    `json:"attempt_id,omitempty"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Percent     float64   `json:"percent,omitempty"`
	TimedOut    bool      `json:"timed_out,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// StartAttemptRequest begins (or resumes) a quiz attempt.
type StartAttemptRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// StartAttemptResponse seeds the attempt state machine.
type StartAttemptResponse struct {
	AttemptID        string    `json:"attempt_id"`
	Question         *Question `json:"question,omitempty"`
	QuestionNum      int       `json:"question_num"`
	Total            int       `json:"total"`
	Score            int       `json:"score"`
	Difficulty       string    `json:"difficulty,omitempty"`
	TimeLimitMinutes int       `json:"time_limit_minutes,omitempty"`
	Resumed          bool      `json:"resumed"`
}

// SubmitAnswerRequest grades one answer choice.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Choice     string `json:"choice"`
}

// SubmitAnswerResponse carries the verdict plus exactly one of NextQuestion
// (attempt continues) or Results (attempt finished).
type SubmitAnswerResponse struct {
	Correct       bool         `json:"correct"`
	CorrectAnswer string       `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	Completed     bool         `json:"completed"`
	NextQuestion  *Question    `json:"next_question,omitempty"`
	Results       *QuizResults `json:"results,omitempty"`
}

// AskRequest is the request body shared by the streaming and non-streaming
// question endpoints. Stream declares the intent to consume an event stream;
// the backend answers synchronously with a single JSON object when it is
// false.
type AskRequest struct {
	Question   string        `json:"question"`
	NotebookID string        `json:"notebook_id,omitempty"`
	SessionID  string        `json:"session_id,omitempty"`
	History    []ChatMessage `json:"history,omitempty"`
	Stream     bool          `json:"stream"`
}

// AskResponse is the synchronous (non-streaming) answer shape.
type AskResponse struct {
	Answer    string           `json:"answer"`
	Sources   []Source         `json:"sources,omitempty"`
	Images    []GeneratedImage `json:"images,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
}

// ChatMessage is one turn of conversation history.
type ChatMessage struct {
	// Role is either "user" or "assistant"
	Role string `json:"role"`

	Content string `json:"content"`
}
