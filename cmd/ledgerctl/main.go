// Command ledgerctl inspects and resets a ledger file.
//
//	ledgerctl hash -supplier 1000000001 -buyer 2000000002 -vat 16 -amount 100
//	ledgerctl lookup [-ledger ledger.json] <hash>
//	ledgerctl clear [-ledger ledger.json] -yes
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"github.com/zra-invoice-integrity/internal/config"
	"github.com/zra-invoice-integrity/internal/data/filestore"
	"github.com/zra-invoice-integrity/internal/domain/invoice"
	"github.com/zra-invoice-integrity/internal/domain/ledger"
	"github.com/zra-invoice-integrity/internal/hasher"
)

// configName is the service whose configs/<name>.env owns the ledger location
const configName = "ledger_registrar"

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "hash":
		return handleHash(args[2:], stdout, stderr)
	case "lookup":
		return handleLookup(args[2:], stdout, stderr)
	case "clear":
		return handleClear(args[2:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func handleHash(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	supplier := fs.String("supplier", "", "supplier TPIN")
	buyer := fs.String("buyer", "", "buyer TPIN")
	vat := fs.String("vat", "0", "VAT amount")
	amount := fs.String("amount", "", "invoice amount")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	vatValue, err := decimal.NewFromString(*vat)
	if err != nil {
		fmt.Fprintln(stderr, "invalid -vat:", err)
		return 2
	}
	amountValue, err := decimal.NewFromString(*amount)
	if err != nil {
		fmt.Fprintln(stderr, "invalid -amount:", err)
		return 2
	}

	inv, err := invoice.NewInvoice(*supplier, *buyer, vatValue, amountValue)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	digest, err := hasher.Hash(inv.HashPayload())
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintln(stdout, digest)
	return 0
}

func handleLookup(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("ledger", "", "ledger file (defaults to LEDGER_PATH from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "lookup requires <hash>")
		return 2
	}

	store, err := openLedger(*path, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	record, err := store.Lookup(fs.Arg(0))
	if errors.Is(err, ledger.ErrRecordNotFound{}) {
		fmt.Fprintln(stderr, "not found")
		return 1
	}
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func handleClear(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("ledger", "", "ledger file (defaults to LEDGER_PATH from config)")
	confirm := fs.Bool("yes", false, "confirm deleting every record")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !*confirm {
		fmt.Fprintln(stderr, "clear deletes every ledger record; pass -yes to confirm")
		return 2
	}

	store, err := openLedger(*path, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := store.Clear(); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	fmt.Fprintf(stdout, "cleared %s\n", store.Path())
	return 0
}

func cliLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelError}))
}

// openLedger opens the -ledger path, or the configured LEDGER_PATH when the flag is empty
func openLedger(path string, stderr io.Writer) (*filestore.Ledger, error) {
	if path == "" {
		cfg, err := config.LoadLedgerConfig(configName)
		if err != nil {
			return nil, err
		}
		path = cfg.Path
	}
	return filestore.NewLedger(path, cliLogger(stderr)), nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: ledgerctl <hash|lookup|clear> [flags]")
}
