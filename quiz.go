package inkwell

import (
	"context"
	"sync"
	"time"
)

// QuizPhase is the lifecycle phase of a quiz attempt.
type QuizPhase string

const (
	QuizPhaseLanding  QuizPhase = "landing"
	QuizPhaseQuestion QuizPhase = "question"
	QuizPhaseFeedback QuizPhase = "feedback"
	QuizPhaseResults  QuizPhase = "results"
	QuizPhaseError    QuizPhase = "error"
)

// QuizState is a read-only snapshot for the presentation layer. Feedback is
// populated exactly while the phase is feedback; Results exactly while the
// phase is results.
type QuizState struct {
	Phase       QuizPhase
	AttemptID   string
	Question    *Question
	QuestionNum int
	Total       int
	Score       int
	Difficulty  string
	Deadline    *time.Time
	Resumed     bool
	Feedback    *AnswerFeedback
	Results     *QuizResults
	Err         error
}

// QuizAttempt is the state machine for a timed multi-question assessment.
//
// The answer→feedback→continue two-step is deliberate: SubmitAnswer stashes
// the server's next question (or final results) and stops at feedback, and
// ContinueToNext consumes the stash without another network round trip.
// That decouples network completion from the user's pacing and makes it
// impossible to skip the feedback step even under fast double-submission.
//
// The time limit is a local wall-clock fact: HandleTimeUp forces the attempt
// to results from locally known score/total, regardless of any network call
// still in flight.
type QuizAttempt struct {
	client   *Client
	onChange func(QuizState)

	mu          sync.Mutex
	phase       QuizPhase
	attemptID   string
	question    *Question
	questionNum int
	total       int
	score       int
	difficulty  string
	deadline    *time.Time
	resumed     bool
	feedback    *AnswerFeedback
	results     *QuizResults
	err         error

	stashedNext    *Question
	stashedResults *QuizResults
	submitting     bool
	timer          *time.Timer
}

// NewQuizAttempt creates an attempt on the landing phase. onChange, if
// non-nil, receives a snapshot after every transition.
func (c *Client) NewQuizAttempt(onChange func(QuizState)) *QuizAttempt {
	return &QuizAttempt{
		client:   c,
		onChange: onChange,
		phase:    QuizPhaseLanding,
	}
}

// State returns a snapshot of the attempt.
func (q *QuizAttempt) State() QuizState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *QuizAttempt) snapshotLocked() QuizState {
	return QuizState{
		Phase:       q.phase,
		AttemptID:   q.attemptID,
		Question:    q.question,
		QuestionNum: q.questionNum,
		Total:       q.total,
		Score:       q.score,
		Difficulty:  q.difficulty,
		Deadline:    q.deadline,
		Resumed:     q.resumed,
		Feedback:    q.feedback,
		Results:     q.results,
		Err:         q.err,
	}
}

// Start creates (or resumes) the attempt and moves landing→question. The
// running score is preserved when the backend resumes an incomplete attempt.
// A time limit, if any, starts a local countdown of now + limit; the timer
// fires HandleTimeUp independent of network state.
func (q *QuizAttempt) Start(ctx context.Context, name, email string) error {
	q.mu.Lock()
	if q.phase != QuizPhaseLanding {
		q.mu.Unlock()
		return ErrInvalidTransition
	}
	q.mu.Unlock()

	resp, err := q.client.StartAttempt(ctx, StartAttemptRequest{Name: name, Email: email})
	if err != nil {
		q.failWith(err)
		return err
	}

	q.mu.Lock()
	if q.phase != QuizPhaseLanding {
		// Timed out or errored while the call was in flight.
		q.mu.Unlock()
		return ErrInvalidTransition
	}
	q.attemptID = resp.AttemptID
	q.question = resp.Question
	q.questionNum = resp.QuestionNum
	q.total = resp.Total
	q.score = resp.Score
	q.difficulty = resp.Difficulty
	q.resumed = resp.Resumed
	if resp.Question != nil {
		q.phase = QuizPhaseQuestion
	}
	if resp.TimeLimitMinutes > 0 {
		deadline := time.Now().Add(time.Duration(resp.TimeLimitMinutes) * time.Minute)
		q.deadline = &deadline
		q.timer = time.AfterFunc(time.Until(deadline), q.HandleTimeUp)
	}
	q.mu.Unlock()
	q.notify()
	return nil
}

// SubmitAnswer grades the current question. On success the machine moves to
// feedback, incrementing the score only if the server's verdict was correct,
// and stashes whichever of nextQuestion/results the server returned. The
// visible question does not advance until ContinueToNext.
func (q *QuizAttempt) SubmitAnswer(ctx context.Context, choice string) error {
	q.mu.Lock()
	if q.phase != QuizPhaseQuestion || q.question == nil {
		q.mu.Unlock()
		return ErrInvalidTransition
	}
	if q.submitting {
		q.mu.Unlock()
		return ErrSessionBusy
	}
	q.submitting = true
	attemptID := q.attemptID
	questionID := q.question.ID
	q.mu.Unlock()

	resp, err := q.client.SubmitAnswer(ctx, attemptID, SubmitAnswerRequest{
		QuestionID: questionID,
		Choice:     choice,
	})

	q.mu.Lock()
	q.submitting = false
	if q.phase != QuizPhaseQuestion {
		// The local clock ran out (or the attempt failed) while the call
		// was pending; the verdict no longer applies.
		q.mu.Unlock()
		return nil
	}
	if err != nil {
		q.phase = QuizPhaseError
		q.err = err
		q.stopTimerLocked()
		q.mu.Unlock()
		q.notify()
		return err
	}

	if resp.Correct {
		q.score++
	}
	q.feedback = &AnswerFeedback{
		Correct:       resp.Correct,
		CorrectAnswer: resp.CorrectAnswer,
		Explanation:   resp.Explanation,
	}
	if resp.Results != nil {
		q.stashedResults = resp.Results
	} else {
		q.stashedNext = resp.NextQuestion
	}
	q.phase = QuizPhaseFeedback
	q.mu.Unlock()
	q.notify()
	return nil
}

// ContinueToNext consumes the value stashed at answer submission: the next
// question if one was returned (never re-fetched), otherwise the final
// results. Calling it outside the feedback phase is a no-op, so a double
// call cannot double-advance.
func (q *QuizAttempt) ContinueToNext() {
	q.mu.Lock()
	if q.phase != QuizPhaseFeedback {
		q.mu.Unlock()
		return
	}
	q.feedback = nil

	if q.stashedNext != nil {
		q.question = q.stashedNext
		q.stashedNext = nil
		q.questionNum++
		q.phase = QuizPhaseQuestion
		q.mu.Unlock()
		q.notify()
		return
	}

	results := q.stashedResults
	if results == nil {
		results = &QuizResults{AttemptID: q.attemptID, Score: q.score, Total: q.total}
	}
	q.finishLocked(results)
	q.mu.Unlock()
	q.notify()
}

// HandleTimeUp forces the attempt to results using only locally known
// score/total. Safe to call from the countdown timer or directly; no-op
// once the attempt is already terminal or still on the landing phase.
func (q *QuizAttempt) HandleTimeUp() {
	q.mu.Lock()
	if q.phase != QuizPhaseQuestion && q.phase != QuizPhaseFeedback {
		q.mu.Unlock()
		return
	}
	q.finishLocked(&QuizResults{
		AttemptID: q.attemptID,
		Score:     q.score,
		Total:     q.total,
		TimedOut:  true,
	})
	q.mu.Unlock()
	q.notify()
}

// finishLocked moves to the results phase. Caller holds q.mu.
func (q *QuizAttempt) finishLocked(results *QuizResults) {
	q.phase = QuizPhaseResults
	q.results = results
	q.question = nil
	q.feedback = nil
	q.stashedNext = nil
	q.stashedResults = nil
	q.stopTimerLocked()
}

func (q *QuizAttempt) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *QuizAttempt) failWith(err error) {
	q.mu.Lock()
	q.phase = QuizPhaseError
	q.err = err
	q.stopTimerLocked()
	q.mu.Unlock()
	q.notify()
}

func (q *QuizAttempt) notify() {
	if q.onChange != nil {
		q.onChange(q.State())
	}
}
