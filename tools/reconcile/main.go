package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const dateLayout = "2006-01-02"

type config struct {
	dbURL    string
	bankPath string
	from     time.Time
	to       time.Time
	outDir   string
}

// bankLine is one row of the bank statement export.
type bankLine struct {
	Reference string
	Amount    decimal.Decimal
	ValueDate time.Time
}

// ledgerPayment is one row of the payments table.
type ledgerPayment struct {
	ID            string
	BeneficiaryID string
	InvoiceNumber string
	Amount        decimal.Decimal
	ReceivedAt    time.Time
	Reference     string
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if err := os.MkdirAll(cfg.outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "create out dir:", err)
		os.Exit(2)
	}

	bank, err := loadBankStatement(cfg.bankPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load bank statement:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	ledger, err := loadLedger(context.Background(), db, cfg.from, cfg.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load ledger:", err)
		os.Exit(2)
	}

	matched, missingInLedger, missingInBank := reconcile(bank, ledger)

	if err := writeMatched(filepath.Join(cfg.outDir, "matched.csv"), matched); err != nil {
		fmt.Fprintln(os.Stderr, "write matched:", err)
		os.Exit(2)
	}
	if err := writeBankLines(filepath.Join(cfg.outDir, "missing_in_ledger.csv"), missingInLedger); err != nil {
		fmt.Fprintln(os.Stderr, "write missing in ledger:", err)
		os.Exit(2)
	}
	if err := writeLedgerPayments(filepath.Join(cfg.outDir, "missing_in_bank.csv"), missingInBank); err != nil {
		fmt.Fprintln(os.Stderr, "write missing in bank:", err)
		os.Exit(2)
	}

	fmt.Printf("reconcile: matched=%d missing_in_ledger=%d missing_in_bank=%d\n",
		len(matched), len(missingInLedger), len(missingInBank))
	if len(missingInLedger) > 0 || len(missingInBank) > 0 {
		os.Exit(1)
	}
}

func parseFlags() (config, error) {
	var cfg config
	var fromStr, toStr string
	flag.StringVar(&cfg.dbURL, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.bankPath, "bank-csv", "", "bank statement CSV (reference,amount,value_date)")
	flag.StringVar(&fromStr, "from", "", "start of the reconciliation window (YYYY-MM-DD)")
	flag.StringVar(&toStr, "to", "", "end of the reconciliation window, exclusive (YYYY-MM-DD)")
	flag.StringVar(&cfg.outDir, "out-dir", "reconcile-out", "directory for report CSVs")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("pg-dsn or DATABASE_URL is required")
	}
	if cfg.bankPath == "" {
		return cfg, errors.New("bank-csv is required")
	}
	var err error
	if cfg.from, err = time.Parse(dateLayout, fromStr); err != nil {
		return cfg, errors.New("from must be YYYY-MM-DD")
	}
	if cfg.to, err = time.Parse(dateLayout, toStr); err != nil {
		return cfg, errors.New("to must be YYYY-MM-DD")
	}
	if !cfg.to.After(cfg.from) {
		return cfg, errors.New("to must be after from")
	}
	return cfg, nil
}

func loadBankStatement(path string) ([]bankLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var lines []bankLine
	for i, record := range records {
		if len(record) < 3 {
			return nil, fmt.Errorf("bank line %d: expected 3 columns", i+1)
		}
		if i == 0 && strings.EqualFold(record[0], "reference") {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("bank line %d: bad amount %q", i+1, record[1])
		}
		valueDate, err := time.Parse(dateLayout, strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("bank line %d: bad value date %q", i+1, record[2])
		}
		lines = append(lines, bankLine{
			Reference: strings.TrimSpace(record[0]),
			Amount:    amount,
			ValueDate: valueDate.UTC(),
		})
	}
	return lines, nil
}

func loadLedger(ctx context.Context, db *sql.DB, from, to time.Time) ([]ledgerPayment, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, beneficiary_id, invoice_number, amount, received_at, reference
FROM payments
WHERE received_at >= $1 AND received_at < $2
ORDER BY received_at ASC, id ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []ledgerPayment
	for rows.Next() {
		var p ledgerPayment
		var invoiceNumber, reference sql.NullString
		var amount string
		if err := rows.Scan(&p.ID, &p.BeneficiaryID, &invoiceNumber, &amount, &p.ReceivedAt, &reference); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %s: bad amount %q", p.ID, amount)
		}
		p.InvoiceNumber = invoiceNumber.String
		p.Reference = reference.String
		p.ReceivedAt = p.ReceivedAt.UTC()
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

// reconcile matches bank lines to ledger payments. A line matches first
// by exact reference, then by amount on the same value date. Each
// ledger payment matches at most one bank line.
func reconcile(bank []bankLine, ledger []ledgerPayment) (matched []ledgerPayment, missingInLedger []bankLine, missingInBank []ledgerPayment) {
	byReference := make(map[string]int)
	used := make([]bool, len(ledger))
	for i, p := range ledger {
		if p.Reference != "" {
			byReference[p.Reference] = i
		}
	}

	for _, line := range bank {
		idx := -1
		if i, ok := byReference[line.Reference]; ok && !used[i] && ledger[i].Amount.Equal(line.Amount) {
			idx = i
		} else {
			for i, p := range ledger {
				if used[i] {
					continue
				}
				if p.Amount.Equal(line.Amount) && sameDay(p.ReceivedAt, line.ValueDate) {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			missingInLedger = append(missingInLedger, line)
			continue
		}
		used[idx] = true
		matched = append(matched, ledger[idx])
	}

	for i, p := range ledger {
		if !used[i] {
			missingInBank = append(missingInBank, p)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	sort.Slice(missingInBank, func(i, j int) bool { return missingInBank[i].ID < missingInBank[j].ID })
	return matched, missingInLedger, missingInBank
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Format(dateLayout) == b.UTC().Format(dateLayout)
}

func writeMatched(path string, payments []ledgerPayment) error {
	return writeLedgerPayments(path, payments)
}

func writeLedgerPayments(path string, payments []ledgerPayment) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"payment_id", "student_id", "invoice_number", "amount", "received_at", "reference"}); err != nil {
		return err
	}
	for _, p := range payments {
		if err := writer.Write([]string{
			p.ID,
			p.BeneficiaryID,
			p.InvoiceNumber,
			p.Amount.String(),
			p.ReceivedAt.Format(time.RFC3339),
			p.Reference,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeBankLines(path string, lines []bankLine) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"reference", "amount", "value_date"}); err != nil {
		return err
	}
	for _, line := range lines {
		if err := writer.Write([]string{
			line.Reference,
			line.Amount.String(),
			line.ValueDate.Format(dateLayout),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
