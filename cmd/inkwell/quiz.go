package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	inkwell "github.com/inkwellai/inkwell-go"
)

func newQuizCmd(flags *rootFlags) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Take a timed quiz interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()
			return runQuiz(cmd, e.client, name, email)
		},
	}

	cmd.Flags().StringVar(&name, "name", "anonymous", "participant name")
	cmd.Flags().StringVar(&email, "email", "", "participant email")
	return cmd
}

func runQuiz(cmd *cobra.Command, client *inkwell.Client, name, email string) error {
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	quiz := client.NewQuizAttempt(nil)
	if err := quiz.Start(cmd.Context(), name, email); err != nil {
		return err
	}

	st := quiz.State()
	if st.Resumed {
		fmt.Fprintf(out, "Resuming attempt at question %d of %d (score %d).\n\n", st.QuestionNum, st.Total, st.Score)
	} else {
		fmt.Fprintf(out, "Quiz started: %d questions", st.Total)
		if st.Deadline != nil {
			fmt.Fprintf(out, ", time limit %s", st.Deadline.Format("15:04:05"))
		}
		fmt.Fprintln(out, ".")
		fmt.Fprintln(out)
	}

	for quiz.State().Phase == inkwell.QuizPhaseQuestion {
		st = quiz.State()
		printQuestion(out, st)

		fmt.Fprint(out, "answer> ")
		if !in.Scan() {
			break
		}
		choice := strings.ToUpper(strings.TrimSpace(in.Text()))
		if choice == "" {
			continue
		}

		if err := quiz.SubmitAnswer(cmd.Context(), choice); err != nil {
			return err
		}

		st = quiz.State()
		if st.Feedback != nil {
			if st.Feedback.Correct {
				fmt.Fprintln(out, "correct!")
			} else {
				fmt.Fprintf(out, "wrong — the answer was %s\n", st.Feedback.CorrectAnswer)
			}
			if st.Feedback.Explanation != "" {
				fmt.Fprintf(out, "  %s\n", st.Feedback.Explanation)
			}
			fmt.Fprintln(out)
		}
		quiz.ContinueToNext()
	}

	st = quiz.State()
	if st.Phase == inkwell.QuizPhaseResults && st.Results != nil {
		fmt.Fprintf(out, "Final score: %d/%d\n", st.Results.Score, st.Results.Total)
		if st.Results.TimedOut {
			fmt.Fprintln(out, "(time ran out)")
		}
	}
	return st.Err
}

func printQuestion(out io.Writer, st inkwell.QuizState) {
	fmt.Fprintf(out, "Question %d/%d: %s\n", st.QuestionNum, st.Total, st.Question.Text)

	keys := make([]string, 0, len(st.Question.Choices))
	for k := range st.Question.Choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s) %s\n", k, st.Question.Choices[k])
	}
}
