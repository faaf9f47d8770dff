package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/runger/cadence/internal/config"
	"github.com/runger/cadence/internal/ipc"
	"github.com/runger/cadence/internal/storage"
)

var (
	journalSession string
	journalSource  string
	journalLimit   int
	pruneDays      int
	pruneMax       int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and maintain the trigger journal",
	Long: `Inspect and maintain the SQLite trigger journal.

Every forwarded snapshot lands in the journal: when it fired, from which
session, via which path (auto or manual), how fast the typing was, and the
text itself.

Subcommands:
  list   - Show journaled triggers, newest first
  prune  - Apply the retention policy now`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show journaled triggers, newest first",
	Long: `Show journaled triggers, newest first.

Reads through the daemon when it is running, otherwise straight from the
database file.

Examples:
  cadence journal list
  cadence journal list --session term-42 --limit 5
  cadence journal list --source manual --json`,
	RunE: runJournalList,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Apply the retention policy now",
	Long: `Delete journal rows older than the retention window and enforce the
row cap. Defaults come from the journal section of the config file.

Examples:
  cadence journal prune
  cadence journal prune --days 7 --max 1000`,
	RunE: runJournalPrune,
}

func init() {
	journalListCmd.Flags().StringVar(&journalSession, "session", "", "only this session")
	journalListCmd.Flags().StringVar(&journalSource, "source", "", "only this source (auto|manual)")
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 20, "maximum rows")

	journalPruneCmd.Flags().IntVar(&pruneDays, "days", -1, "delete rows older than this many days (0 disables)")
	journalPruneCmd.Flags().IntVar(&pruneMax, "max", -1, "keep at most this many rows (0 disables)")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalPruneCmd)
	rootCmd.AddCommand(journalCmd)
}

func runJournalList(cmd *cobra.Command, args []string) error {
	triggers, err := loadTriggers()
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(triggers)
	}

	if len(triggers) == 0 {
		fmt.Printf("%sNo journaled triggers.%s\n", colorDim, colorReset)
		return nil
	}
	printTriggerTable(os.Stdout, triggers, getTermWidth(100))
	return nil
}

// loadTriggers prefers the daemon's view and falls back to the database file
// when the daemon is down.
func loadTriggers() ([]storage.Trigger, error) {
	client := ipc.NewClient("")
	defer client.Close()
	if client.Ping() {
		return client.Triggers(journalSession, journalSource, journalLimit)
	}

	journal, err := openJournalDirect()
	if err != nil {
		return nil, err
	}
	defer journal.Close()

	return journal.ListTriggers(context.Background(), storage.TriggerQuery{
		Session: journalSession,
		Source:  journalSource,
		Limit:   journalLimit,
	})
}

func runJournalPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	days := pruneDays
	if days < 0 {
		days = cfg.Journal.RetentionDays
	}
	maxEntries := pruneMax
	if maxEntries < 0 {
		maxEntries = cfg.Journal.MaxEntries
	}

	journal, err := openJournalDirect()
	if err != nil {
		return err
	}
	defer journal.Close()

	cutoff := storage.RetentionCutoff(time.Now(), days)
	res, err := journal.Prune(context.Background(), cutoff, maxEntries)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	fmt.Printf("Pruned %s%d%s trigger(s) and %s%d%s rejection(s).\n",
		colorCyan, res.Triggers, colorReset, colorCyan, res.Rejections, colorReset)
	return nil
}

// openJournalDirect opens the journal database the CLI way: configured path,
// configured busy timeout, no checkpoint chatter.
func openJournalDirect() (*storage.Journal, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	path := cfg.Journal.Path
	if path == "" {
		path = config.DefaultPaths().JournalFile()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no journal at %s (daemon never ran with journaling on?)", path)
	}
	return storage.Open(storage.Options{
		Path:          path,
		BusyTimeoutMs: cfg.Journal.SQLiteBusyTimeoutMs,
	})
}

// printTriggerTable renders triggers as a fixed-column table, truncating the
// text column to the terminal width.
func printTriggerTable(w io.Writer, triggers []storage.Trigger, width int) {
	fmt.Fprintf(w, "%s%-16s %-12s %-6s %5s %5s  %s%s\n",
		colorBold, "FIRED AT", "SESSION", "SRC", "CHARS", "VEL", "TEXT", colorReset)
	fmt.Fprintln(w, strings.Repeat("-", width))

	textWidth := width - 52
	if textWidth < 10 {
		textWidth = 10
	}
	for _, t := range triggers {
		fmt.Fprintf(w, "%-16s %-12s %-6s %5d %5.1f  %s\n",
			t.FiredAt.Local().Format("2006-01-02 15:04"),
			runewidth.Truncate(t.Session, 12, "…"),
			t.Source,
			t.TextLen,
			t.Velocity,
			runewidth.Truncate(oneLine(t.Text), textWidth, "…"),
		)
	}
}

// oneLine collapses a snapshot to its first line for table display.
func oneLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "↩"
	}
	return s
}
