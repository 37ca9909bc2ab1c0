package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dsn           string
	programCode   string
	academicYear  string
	studentPrefix string
	studentCount  int
	tranche       string
	payFraction   int
	seedTeachers  bool
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.studentCount <= 0 {
		log.Fatal("student-count must be > 0")
	}
	if cfg.payFraction < 0 || cfg.payFraction > 100 {
		log.Fatal("pay-fraction must be between 0 and 100")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if err := seedProgram(ctx, db, cfg.programCode); err != nil {
		log.Fatalf("seed program: %v", err)
	}

	studentIDs := buildStudentIDs(cfg.studentPrefix, cfg.studentCount)
	log.Printf("seeding students: program=%s year=%s count=%d", cfg.programCode, cfg.academicYear, cfg.studentCount)
	if err := seedStudents(ctx, db, studentIDs, cfg.programCode, cfg.academicYear); err != nil {
		log.Fatalf("seed students: %v", err)
	}

	log.Printf("seeding invoices and payments: tranche=%s paid=%d%%", cfg.tranche, cfg.payFraction)
	if err := seedBilling(ctx, db, studentIDs, cfg); err != nil {
		log.Fatalf("seed billing: %v", err)
	}

	if cfg.seedTeachers {
		if err := seedTeachingAssignments(ctx, db, cfg.programCode); err != nil {
			log.Fatalf("seed teaching assignments: %v", err)
		}
	}

	log.Printf("seed completed")
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.programCode, "program", envOrDefault("PROGRAM_CODE", "AGRO-L1"), "program code to seed")
	flag.StringVar(&cfg.academicYear, "year", envOrDefault("ACADEMIC_YEAR", "2025-2026"), "academic year")
	flag.StringVar(&cfg.studentPrefix, "student-prefix", envOrDefault("STUDENT_PREFIX", "ETU-SEED-"), "student id prefix")
	flag.IntVar(&cfg.studentCount, "student-count", envOrInt("STUDENT_COUNT", 25), "number of students to seed")
	flag.StringVar(&cfg.tranche, "tranche-amount", envOrDefault("TRANCHE_AMOUNT", "50000"), "tuition tranche amount")
	flag.IntVar(&cfg.payFraction, "pay-fraction", envOrInt("PAY_FRACTION", 60), "percentage of students seeded with a full first payment")
	flag.BoolVar(&cfg.seedTeachers, "seed-teachers", envOrBool("SEED_TEACHERS", true), "seed teaching assignments for the program units")
	flag.Parse()
	return cfg
}

func buildStudentIDs(prefix string, count int) []string {
	ids := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		ids = append(ids, fmt.Sprintf("%s%04d", prefix, i))
	}
	return ids
}

func seedProgram(ctx context.Context, db *sql.DB, code string) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO programs (code, label, level, department)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO NOTHING`,
		code, "Programme "+code, "L1", "Sciences")
	return err
}

func seedStudents(ctx context.Context, db *sql.DB, ids []string, programCode, academicYear string) error {
	enrolled := time.Now().UTC()
	for _, id := range ids {
		if _, err := db.ExecContext(ctx, `
INSERT INTO students (id, full_name, program_code, academic_year, email, enrolled_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`,
			id, "Etudiant "+id, programCode, academicYear, "", enrolled,
		); err != nil {
			return err
		}
	}
	return nil
}

func seedBilling(ctx context.Context, db *sql.DB, ids []string, cfg config) error {
	now := time.Now().UTC()
	year := now.Year()
	due := now.AddDate(0, 1, 0)
	lineItems := fmt.Sprintf(`[{"code":"SCOLARITE","label":"Premiere tranche de scolarite","amount":%q},{"code":"KIT","label":"Kit","amount":"0"},{"code":"LABO","label":"Laboratoire","amount":"0"}]`, cfg.tranche)

	paidCount := len(ids) * cfg.payFraction / 100
	for i, id := range ids {
		number := fmt.Sprintf("%d_FACT_SCOL_%04d", year, 9000+i)
		if _, err := db.ExecContext(ctx, `
INSERT INTO invoices (number, beneficiary_id, program_code, academic_year, issue_date, due_date, status, line_items, total_amount)
VALUES ($1, $2, $3, $4, $5, $6, 'ISSUED', $7, $8)
ON CONFLICT (number) DO NOTHING`,
			number, id, cfg.programCode, cfg.academicYear, now, due, lineItems, cfg.tranche,
		); err != nil {
			return err
		}
		if i >= paidCount {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO payments (id, beneficiary_id, invoice_number, amount, received_at, method, reference)
VALUES ($1, $2, $3, $4, $5, 'CASH', $6)
ON CONFLICT (id) DO NOTHING`,
			"PAY-SEED-"+number, id, number, cfg.tranche, now, "seed",
		); err != nil {
			return err
		}
	}
	return nil
}

func seedTeachingAssignments(ctx context.Context, db *sql.DB, programCode string) error {
	units := []string{"UE-MATH", "UE-BIO", "UE-CHIM"}
	for i, unit := range units {
		teacher := fmt.Sprintf("ENS-SEED-%02d", i+1)
		if _, err := db.ExecContext(ctx, `
INSERT INTO teaching_assignments (teacher_id, ue_code, program_code)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`,
			teacher, unit, programCode,
		); err != nil {
			return err
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
