package logcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/bootstrap"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/chatlog"
)

const logLongDesc string = `Show the most recent turns in the local SQLite chat log.

Records are listed newest first. Only the sqlite sink can be read
back; supabase records are inspected in the Supabase dashboard.

Examples:
  chatrelay log
  chatrelay log --limit 50
  chatrelay log --sqlite ./chatrelay.db --json`

const logShortDesc string = "Show recent chat log records"

type logCommander struct {
	flags      bootstrap.Flags
	sqlitePath string
	limit      int
	asJSON     bool
}

func NewLogCmd() *cobra.Command {
	cmder := &logCommander{}

	cmd := &cobra.Command{
		Use:   "log",
		Short: logShortDesc,
		Long:  logLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	bootstrap.AddConfigFlags(cmd, &cmder.flags)
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite chat log (default from config)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Number of records to show")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print records as a JSON array")

	return cmd
}

func (c *logCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := c.flags.Load()
	if err != nil {
		return err
	}

	dbPath := c.sqlitePath
	if dbPath == "" {
		dbPath = cfg.Log.SQLitePath
	}

	sink, err := chatlog.OpenSQLiteLog(dbPath, cfg.Log.Table)
	if errors.Is(err, chatlog.ErrNoChatLog) {
		return err
	}
	if err != nil {
		return fmt.Errorf("could not open chat log %s: %w", dbPath, err)
	}
	defer sink.Close()

	records, err := sink.Recent(ctx, c.limit)
	if err != nil {
		return fmt.Errorf("could not list records: %w", err)
	}

	out := cmd.OutOrStdout()

	if c.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No chat log records.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMESSAGE\tREPLY")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			chat.Truncate(rec.Message, 40),
			chat.Truncate(rec.Reply, 60),
		)
	}
	return w.Flush()
}
