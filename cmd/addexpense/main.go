package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"spendview/internal/core"
	"spendview/internal/storage"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("addexpense", flag.ContinueOnError)
	fs.SetOutput(stderr)

	amount := fs.String("amount", "", "Amount in decimal form, e.g. 42.50")
	date := fs.String("date", time.Now().Format("2006-01-02"), "Expense date (YYYY-MM-DD)")
	method := fs.String("method", "", "Payment method name, e.g. Cash")
	source := fs.String("source", "", "Payment source name, e.g. Wallet")
	dbPath := fs.String("db", "./data/spendview.db", "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *amount == "" || *method == "" || *source == "" {
		fmt.Fprintln(stdout, "Usage: addexpense -amount <decimal> -method <name> -source <name> [-date <YYYY-MM-DD>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: amount, method, source")
	}

	cents, err := core.ParseDecimalToCents(*amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", *amount, err)
	}
	money := core.Money{Cents: cents}
	if err := money.Validate(); err != nil {
		return fmt.Errorf("invalid amount %q: %w", *amount, err)
	}

	day, err := core.ParseDate(*date)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", *date, err)
	}

	// Allow overriding db path via env var if not explicitly set via flag
	if path := os.Getenv("SQLITE_DB_PATH"); path != "" && *dbPath == "./data/spendview.db" {
		*dbPath = path
	}

	repo, err := storage.NewSQLiteRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	ctx := context.Background()

	methodID, err := repo.MethodIDByName(ctx, *method)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("unknown payment method %q", *method)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve method: %w", err)
	}

	sourceID, err := repo.SourceIDByName(ctx, *source)
	if errors.Is(err, core.ErrNotFound) {
		sourceID, err = repo.InsertSource(ctx, *source)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve source: %w", err)
	}

	id, err := repo.InsertExpense(ctx, core.Expense{
		Date:     day,
		Amount:   money,
		MethodID: methodID,
		SourceID: sourceID,
	})
	if err != nil {
		return fmt.Errorf("failed to record expense: %w", err)
	}

	fmt.Fprintf(stdout, "Expense %d recorded: %s via %s/%s on %s\n", id, money, *method, *source, day)
	return nil
}
