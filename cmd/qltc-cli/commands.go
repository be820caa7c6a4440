package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"qltc/internal/core"
	"qltc/internal/ledger"
)

type command func(ctx context.Context, s *ledger.Session, args []string, out io.Writer) error

var commands = map[string]command{
	"list":    listCommand,
	"summary": summaryCommand,
	"add":     addCommand,
	"edit":    editCommand,
	"delete":  deleteCommand,
}

// filterFlags adds -type and -q to fs and returns a func applying them.
func filterFlags(fs *flag.FlagSet) func(*ledger.Session) ledger.AppState {
	t := fs.String("type", ledger.FilterAll, "only this type (all for every type)")
	q := fs.String("q", "", "substring of category or note")
	return func(s *ledger.Session) ledger.AppState {
		s.SetTypeFilter(*t)
		return s.SetSearch(*q)
	}
}

// draftFlags adds the transaction fields to fs. Only flags given on the
// command line override the base draft.
func draftFlags(fs *flag.FlagSet) func(base ledger.Draft) ledger.Draft {
	var d ledger.Draft
	fs.StringVar(&d.Date, "date", "", "date, dd/mm/yyyy or yyyy-mm-dd")
	fs.StringVar(&d.Type, "type", "", "Thu (income) or Chi (expense)")
	fs.StringVar(&d.Category, "category", "", "category")
	fs.StringVar(&d.Amount, "amount", "", "amount, e.g. 1,250,000")
	fs.StringVar(&d.Note, "note", "", "note")
	return func(base ledger.Draft) ledger.Draft {
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "date":
				base.Date = d.Date
			case "type":
				base.Type = d.Type
			case "category":
				base.Category = d.Category
			case "amount":
				base.Amount = d.Amount
			case "note":
				base.Note = d.Note
			}
		})
		return base
	}
}

func listCommand(_ context.Context, s *ledger.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	apply := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	st := apply(s)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tCATEGORY\tAMOUNT\tNOTE\t")
	for _, tx := range st.Visible {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			tx.ID, tx.Date, tx.Type, tx.Category, core.FormatAmount(tx.Amount), tx.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return printSummary(out, st)
}

func summaryCommand(_ context.Context, s *ledger.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	apply := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return printSummary(out, apply(s))
}

func printSummary(out io.Writer, st ledger.AppState) error {
	_, err := fmt.Fprintf(out, "%d transactions  income %s  expense %s  balance %s\n",
		len(st.Visible),
		core.FormatCurrency(st.Summary.Income),
		core.FormatCurrency(st.Summary.Expense),
		core.FormatCurrency(st.Summary.Balance))
	return err
}

func addCommand(ctx context.Context, s *ledger.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	merge := draftFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s.CancelEdit()
	s.UpdateDraft(merge(ledger.Draft{}))
	if err := s.Submit(ctx); err != nil {
		return err
	}
	return notice(out, s.State())
}

func editCommand(ctx context.Context, s *ledger.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	id := fs.String("id", "", "transaction id (required)")
	merge := draftFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("edit: -id is required")
	}

	st := s.BeginEdit(*id)
	if !st.IsEditing() {
		return fmt.Errorf("edit %s: %w", *id, core.ErrNotFound)
	}
	s.UpdateDraft(merge(st.Draft))
	if err := s.Submit(ctx); err != nil {
		return err
	}
	return notice(out, s.State())
}

func deleteCommand(ctx context.Context, s *ledger.Session, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "transaction id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("delete: -id is required")
	}
	if err := s.Delete(ctx, *id); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "Deleted %s. %d transactions left.\n", *id, len(s.State().All))
	return err
}

func notice(out io.Writer, st ledger.AppState) error {
	if st.Notice == nil {
		return nil
	}
	_, err := fmt.Fprintln(out, st.Notice.Message)
	return err
}
