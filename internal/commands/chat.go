package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"crewsheet/internal/exportsink"
	"crewsheet/internal/orchestrator"
	"crewsheet/internal/session"
	"crewsheet/internal/tools"
)

const greeting = "Hello! Let's record today's timesheet. Who worked, on what date, and for how many hours?"

func newChatCmd(load loadFunc) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Record a session interactively from stdin",
		Long: `chat reads one utterance per line. Besides timesheet statements it accepts:
  summary   show the records and ask for approval
  confirm   approve the records shown by summary
  quit      end the session`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			logger := discardLogger()
			if verbose {
				logger = stderrLogger()
			}

			sink, err := exportsink.Open(cfg.Session.SavePath, cfg.Export)
			if err != nil {
				return err
			}
			defer exportsink.Close(sink)

			f, err := session.NewFactory(cfg.Session, sink, nil, logger)
			if err != nil {
				return err
			}
			parser, closeParser, err := newParser(cmd.Context(), cfg.LLM, f.Dates, logger)
			if err != nil {
				return err
			}
			defer closeParser()
			f.Parser = parser

			o := f.New("cli")
			defer o.Close()
			return runChat(cmd.Context(), o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log turns and model calls to stderr")
	return cmd
}

// runChat drives one session from line-oriented input until EOF or quit.
func runChat(ctx context.Context, o *orchestrator.Orchestrator, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, greeting)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "bye":
			return nil
		case "summary":
			s := o.RequestConfirmation()
			fmt.Fprintln(out, s.Text)
			fmt.Fprintln(out, `Type "confirm" to approve.`)
			continue
		case "confirm":
			if err := o.Confirm(); err != nil {
				fmt.Fprintln(out, confirmMessage(err))
				continue
			}
			fmt.Fprintln(out, "Approved. Say \"done\" to export.")
			continue
		}

		res, err := o.HandleTurn(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "Sorry, I couldn't process that: %v\n", err)
			continue
		}
		printTurn(out, res)
	}
}

func confirmMessage(err error) string {
	switch {
	case errors.Is(err, orchestrator.ErrStaleConfirmation):
		return `Records changed since the summary. Type "summary" again.`
	case errors.Is(err, orchestrator.ErrNotAwaitingConfirmation):
		return `Type "summary" first.`
	}
	return err.Error()
}

func printTurn(out io.Writer, res orchestrator.TurnResult) {
	if res.Reply != "" {
		fmt.Fprintln(out, res.Reply)
	}
	for _, r := range res.Results {
		if !r.OK() {
			continue
		}
		switch r.Tool {
		case tools.ExportCSV, tools.ExportLaborCSV, tools.ExportMaterialsCSV:
			var doc struct {
				CSV      string `json:"csv"`
				Location string `json:"location"`
			}
			if json.Unmarshal(r.Output, &doc) != nil {
				continue
			}
			fmt.Fprint(out, doc.CSV)
			if doc.Location != "" {
				fmt.Fprintf(out, "Saved to %s\n", doc.Location)
			}
			if r.Warning != "" {
				fmt.Fprintf(out, "Warning: %s\n", r.Warning)
			}
		case tools.ResolveDate, tools.ListCompanyInfo:
			fmt.Fprintln(out, string(r.Output))
		}
	}
	if res.FollowUp != "" {
		fmt.Fprintln(out, res.FollowUp)
	}
}
