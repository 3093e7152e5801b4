package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"

	"github.com/spf13/cobra"

	inkwell "github.com/inkwellai/inkwell-go"
	"github.com/inkwellai/inkwell-go/mockbackend"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	baseURL    string
	configPath string
	mock       bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "inkwell",
		Short: "Inkwell — talk to a generative answer backend",
		Long:  "Inkwell streams answers, natural-language queries and quizzes from an Inkwell backend. Use --mock to run against an in-process lorem backend, no server required.",
	}

	cmd.PersistentFlags().StringVar(&flags.baseURL, "base-url", "", "backend base URL (overrides config)")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVar(&flags.mock, "mock", false, "run against an in-process mock backend")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newAskCmd(flags))
	cmd.AddCommand(newChatCmd(flags))
	cmd.AddCommand(newQueryCmd(flags))
	cmd.AddCommand(newQuizCmd(flags))
	cmd.AddCommand(newNotebooksCmd(flags))
	cmd.AddCommand(newConnectionsCmd(flags))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "inkwell %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// env is what a subcommand needs to talk to a backend. With --mock it also
// owns the in-process server and a pre-seeded notebook and connection.
type env struct {
	client     *inkwell.Client
	config     *inkwell.Config
	mock       *mockbackend.Server
	notebookID string
	connID     string
	cleanup    func()
}

// connect builds the client from flags and config, standing up the mock
// backend when asked. Callers must invoke cleanup when done.
func connect(flags *rootFlags) (*env, error) {
	cfg := inkwell.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := inkwell.LoadConfigFromFile(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.baseURL != "" {
		cfg.BaseURL = flags.baseURL
	}

	e := &env{config: cfg, cleanup: func() {}}

	if flags.mock {
		e.mock = mockbackend.New()
		srv := httptest.NewServer(e.mock.Handler())
		e.cleanup = srv.Close
		cfg.BaseURL = srv.URL
	}

	client, err := inkwell.NewClientFromConfig(cfg)
	if err != nil {
		e.cleanup()
		return nil, err
	}
	e.client = client

	if flags.mock {
		if err := e.seedMock(); err != nil {
			e.cleanup()
			return nil, err
		}
	}
	return e, nil
}

// seedMock registers a notebook and a connection so the streaming commands
// have something to talk to out of the box.
func (e *env) seedMock() error {
	nb, err := e.client.CreateNotebook(context.Background(), "scratch", "mock notebook")
	if err != nil {
		return err
	}
	e.notebookID = nb.ID
	e.mock.AddDocument(nb.ID, "lorem.pdf")

	conn, err := e.client.CreateConnection(context.Background(), inkwell.Connection{
		Name:   "mock-warehouse",
		Driver: "lorem",
	})
	if err != nil {
		return err
	}
	e.connID = conn.ID
	return nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
