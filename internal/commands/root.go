// Package commands holds the crewsheet cobra command tree.
package commands

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"crewsheet/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// sessionFlags override the environment for every subcommand.
type sessionFlags struct {
	configPath          string
	savePath            string
	timezone            string
	baseDate            string
	fullDay             string
	requireConfirmation bool
	rules               bool
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	var flags sessionFlags
	rootCmd := &cobra.Command{
		Use:   "crewsheet",
		Short: "Conversational crew timesheet recorder",
		Long: `crewsheet turns what a supervisor says about the crew's day into validated
timesheet, labor and material records and exports them as CSV for payroll.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "company config file (YAML or JSON); overrides TIMESHEET_CONFIG_PATH")
	pf.StringVar(&flags.savePath, "save", "", "timesheet CSV save path; overrides TIMESHEET_SAVE_PATH")
	pf.StringVar(&flags.timezone, "tz", "", "IANA timezone for relative dates; overrides TIMESHEET_TZ")
	pf.StringVar(&flags.baseDate, "base-date", "", "YYYY-MM-DD used as today; overrides TIMESHEET_BASE_DATE")
	pf.StringVar(&flags.fullDay, "full-day", "", "hours in a full day; overrides TIMESHEET_FULL_DAY_HOURS")
	pf.BoolVar(&flags.requireConfirmation, "require-confirmation", false, "require an approved summary before export")
	pf.BoolVar(&flags.rules, "rules", false, "use the rule-based parser even when GEMINI_API_KEY is set")

	load := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		changed := cmd.Flags().Changed
		if changed("config") {
			cfg.Session.ConfigPath = strings.TrimSpace(flags.configPath)
		}
		if changed("save") {
			cfg.Session.SavePath = strings.TrimSpace(flags.savePath)
		}
		if changed("tz") {
			cfg.Session.Timezone = strings.TrimSpace(flags.timezone)
		}
		if changed("base-date") {
			cfg.Session.BaseDate = strings.TrimSpace(flags.baseDate)
		}
		if changed("full-day") {
			cfg.Session.FullDayHours = config.ParseFullDay(strings.TrimSpace(flags.fullDay))
		}
		if changed("require-confirmation") {
			cfg.Session.RequireConfirmation = flags.requireConfirmation
		}
		if flags.rules {
			cfg.LLM.APIKey = ""
		}
		return cfg, nil
	}

	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newChatCmd(load))
	rootCmd.AddCommand(newResolveDateCmd(load))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

type loadFunc func(cmd *cobra.Command) (*config.Config, error)

func stderrLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
