package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	inkwell "github.com/inkwellai/inkwell-go"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question synchronously",
		Long:  "Asks a single question and blocks for the complete answer. For incremental output use the chat command.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			resp, err := e.client.Ask(cmd.Context(), inkwell.AskRequest{Question: args[0]})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Answer)
			printSources(out, resp.Sources)
			return nil
		},
	}
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	var (
		notebookID string
		variant    string
	)

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Stream answers in a conversation",
		Long:  "Streams an answer token by token. With a question argument it answers once; without one it opens an interactive loop (Ctrl+C cancels the in-flight answer, empty line quits).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			nb := notebookID
			if nb == "" {
				nb = e.notebookID
			}
			wire := inkwell.WireVariant(variant)
			if variant == "" {
				wire = e.config.WireVariant
			}
			conv := e.client.NewConversation(nb, wire)

			if len(args) == 1 {
				return chatTurn(cmd, conv, args[0])
			}
			return chatLoop(cmd, conv)
		},
	}

	cmd.Flags().StringVarP(&notebookID, "notebook", "n", "", "notebook to answer from")
	cmd.Flags().StringVar(&variant, "variant", "", "wire protocol variant (legacy or multi_event)")
	return cmd
}

// chatTurn streams one answer and prints its side channels.
func chatTurn(cmd *cobra.Command, conv *inkwell.Conversation, question string) error {
	out := cmd.OutOrStdout()

	var turnErr error
	s := conv.Send(cmd.Context(), question, inkwell.Callbacks{
		OnToken: func(text string) {
			fmt.Fprint(out, text)
		},
		OnComplete: func(c inkwell.Completion) {
			fmt.Fprintln(out)
			if c.Truncated {
				fmt.Fprintln(out, "[answer truncated: stream ended early]")
			}
		},
		OnError: func(err error) {
			turnErr = err
		},
		OnCancelled: func() {
			fmt.Fprintln(out, "\n[cancelled]")
		},
	})

	// Ctrl+C cancels the answer, not the process.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	select {
	case <-s.Done():
	case <-stop:
		s.Cancel()
		<-s.Done()
	}

	if turnErr != nil {
		return turnErr
	}
	printSources(out, conv.LastSources())
	return nil
}

func chatLoop(cmd *cobra.Command, conv *inkwell.Conversation) error {
	out := cmd.OutOrStdout()
	in := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintln(out, "Type a question (empty line to quit).")
	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return in.Err()
		}
		question := strings.TrimSpace(in.Text())
		if question == "" {
			return nil
		}
		if err := chatTurn(cmd, conv, question); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
	}
}

func printSources(out io.Writer, sources []inkwell.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for _, src := range sources {
		if src.Page > 0 {
			fmt.Fprintf(out, "  - %s (p.%d)\n", src.Filename, src.Page)
		} else {
			fmt.Fprintf(out, "  - %s\n", src.Filename)
		}
	}
}
