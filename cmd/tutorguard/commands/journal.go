package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/tutorguard/internal/errors"
	"git.home.luguber.info/inful/tutorguard/internal/journal"
)

// JournalCmd groups the journal subcommands.
type JournalCmd struct {
	List  JournalListCmd  `cmd:"" help:"List journaled errors, newest first"`
	Prune JournalPruneCmd `cmd:"" help:"Delete journaled errors older than a cutoff"`
}

// JournalListCmd implements 'journal list'.
type JournalListCmd struct {
	Category string        `help:"Only errors of this category"`
	Severity string        `help:"Only errors at or above this severity"`
	Session  string        `help:"Only errors from this session ID"`
	Since    time.Duration `help:"Only errors newer than this (e.g. 24h)"`
	Limit    int           `help:"Maximum number of records" default:"50"`
	JSON     bool          `name:"json" help:"Print one JSON object per line"`
}

func (l *JournalListCmd) Run(g *Global, root *CLI) error {
	filter, err := l.filter(time.Now())
	if err != nil {
		return err
	}
	store, err := openJournal(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(g.context(), filter)
	if err != nil {
		return err
	}
	if l.JSON {
		return writeRecordsJSON(g.out(), records)
	}
	return writeRecordsTable(g.out(), records)
}

func (l *JournalListCmd) filter(now time.Time) (journal.Filter, error) {
	f := journal.Filter{SessionID: l.Session, Limit: l.Limit}
	if l.Category != "" {
		c, err := errors.ParseCategory(l.Category)
		if err != nil {
			return f, errors.NewValidationError(err.Error(), "category")
		}
		f.Category = c
	}
	if l.Severity != "" {
		s, err := errors.ParseSeverity(l.Severity)
		if err != nil {
			return f, errors.NewValidationError(err.Error(), "severity")
		}
		f.MinSeverity = s
	}
	if l.Since > 0 {
		f.Since = now.Add(-l.Since)
	}
	return f, nil
}

// JournalPruneCmd implements 'journal prune'.
type JournalPruneCmd struct {
	OlderThan time.Duration `name:"older-than" help:"Delete errors older than this; 0 uses journal.retention"`
}

func (p *JournalPruneCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	age := p.OlderThan
	if age <= 0 {
		age = cfg.Journal.RetentionDuration()
	}

	store, err := openJournal(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Prune(g.context(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	g.logger().Info("Pruned error journal", "removed", n, "older_than", age.String())
	_, _ = fmt.Fprintf(g.out(), "Pruned %d records older than %s\n", n, age)
	return nil
}

func openJournal(root *CLI) (*journal.SQLiteStore, error) {
	cfg, err := root.LoadConfig()
	if err != nil {
		return nil, err
	}
	return journal.NewSQLiteStore(cfg.Journal.Path)
}

func writeRecordsJSON(w io.Writer, records []journal.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

func writeRecordsTable(w io.Writer, records []journal.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tCATEGORY\tSEVERITY\tCODE\tACTION\tSESSION\tMESSAGE")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.OccurredAt.UTC().Format(time.RFC3339),
			r.Category, r.Severity, r.Code, r.Action, r.SessionID, r.Message)
	}
	return tw.Flush()
}
