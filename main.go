package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	academicapp "campus-ledger/internal/academic/application"
	academic "campus-ledger/internal/academic/domain"
	academicrepo "campus-ledger/internal/academic/infrastructure/postgres"
	academicinterfaces "campus-ledger/internal/academic/interfaces"
	apihttp "campus-ledger/internal/api/http"
	"campus-ledger/internal/auth"
	billingapp "campus-ledger/internal/billing/application"
	billing "campus-ledger/internal/billing/domain"
	billingrepo "campus-ledger/internal/billing/infrastructure/postgres"
	billinginterfaces "campus-ledger/internal/billing/interfaces"
	"campus-ledger/internal/eventing"
	"campus-ledger/internal/eventing/eventbus"
	eventingrepo "campus-ledger/internal/eventing/infrastructure/postgres"
	grantsapp "campus-ledger/internal/grants/application"
	grants "campus-ledger/internal/grants/domain"
	grantsrepo "campus-ledger/internal/grants/infrastructure/postgres"
	grantsinterfaces "campus-ledger/internal/grants/interfaces"
	grantsnotify "campus-ledger/internal/grants/notify"
	registryapp "campus-ledger/internal/masterdata/application"
	masterdatarepo "campus-ledger/internal/masterdata/infrastructure/postgres"
	registryinterfaces "campus-ledger/internal/masterdata/interfaces"
	"campus-ledger/internal/observability/metrics"
	"campus-ledger/internal/rules"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	resolver, err := rules.LoadDir(cfg.RulesDir)
	if err != nil {
		logger.Fatalf("rules load error: %v", err)
	}

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(billing.RecomputeRequested{})
	registry.Register(billing.BalanceRecomputed{})
	registry.Register(billing.PaymentRecorded{})
	registry.Register(billing.InvoiceIssued{})
	registry.Register(academic.GradeRecorded{})
	registry.Register(academic.UnitValidationClosed{})
	registry.Register(grants.ScholarshipGranted{})
	registry.Register(grants.ScholarshipSuspended{})
	registry.Register(grants.ScholarshipReinstated{})
	registry.Register(grants.ScholarshipTerminated{})
	registry.Register(grants.DeferralGranted{})
	registry.Register(grants.DeferralHonored{})
	registry.Register(grants.DeferralLapsed{})
	registry.Register(grants.SoDViolationRejected{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, baseBus)

	invoiceRepo := billingrepo.NewInvoiceRepository(db)
	paymentRepo := billingrepo.NewPaymentRepository(db)
	financeRepo := billingrepo.NewFinanceRepository(db)
	totalsReader := billingrepo.NewTotalsReader(db)
	gradeRepo := academicrepo.NewGradeRepository(db)
	scholarshipRepo := grantsrepo.NewScholarshipRepository(db)
	deferralRepo := grantsrepo.NewDeferralRepository(db)
	programRepo := masterdatarepo.NewProgramRepository(db)
	studentRepo := masterdatarepo.NewStudentRepository(db)

	grantService, err := grantsapp.NewGrantService(
		scholarshipRepo,
		deferralRepo,
		financeDebtReader{finance: financeRepo},
		publisher,
		grantsapp.SystemClock{},
		eventing.NewEventID,
	)
	if err != nil {
		logger.Fatalf("grant service error: %v", err)
	}

	balanceService, err := billingapp.NewBalanceService(financeRepo, totalsReader, grantService, publisher, billingapp.SystemClock{})
	if err != nil {
		logger.Fatalf("balance service error: %v", err)
	}
	billingService, err := billingapp.NewBillingService(invoiceRepo, paymentRepo, financeRepo, resolver, publisher, billingapp.SystemClock{})
	if err != nil {
		logger.Fatalf("billing service error: %v", err)
	}
	scheduleService, err := billingapp.NewScheduleService(resolver, paymentRepo, billingapp.SystemClock{})
	if err != nil {
		logger.Fatalf("schedule service error: %v", err)
	}
	validationService, err := academicapp.NewValidationService(gradeRepo, resolver, publisher, academicapp.SystemClock{})
	if err != nil {
		logger.Fatalf("validation service error: %v", err)
	}
	registryService, err := registryapp.NewRegistryService(programRepo, studentRepo, billingService)
	if err != nil {
		logger.Fatalf("registry service error: %v", err)
	}

	eventing.Subscribe(baseBus, eventbus.EventTypeOf[billing.RecomputeRequested](), "billing.recompute", func(ctx context.Context, event any) error {
		evt, ok := event.(billing.RecomputeRequested)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return balanceService.HandleRecomputeRequested(ctx, evt)
	}, processedStore)

	eventing.Subscribe(baseBus, eventbus.EventTypeOf[billing.BalanceRecomputed](), "billing.log", func(ctx context.Context, event any) error {
		evt, ok := event.(billing.BalanceRecomputed)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("balance recomputed: student=%s balance=%s status=%s", evt.BeneficiaryID, evt.Balance, evt.Status)
		return nil
	}, processedStore)

	if cfg.GrantWebhookURL != "" {
		channel, err := grantsnotify.NewWebhookChannel(cfg.GrantWebhookURL)
		if err != nil {
			logger.Fatalf("grant webhook error: %v", err)
		}
		opts := []grantsnotify.Option{}
		if cfg.GrantNotifyDedupeWindow > 0 {
			opts = append(opts, grantsnotify.WithDedupeWindow(cfg.GrantNotifyDedupeWindow))
		}
		wireGrantNotifications(baseBus, processedStore, grantsnotify.NewNotifier(channel, opts...))
	}

	go func() {
		ticker := time.NewTicker(cfg.DispatchInterval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := dispatcher.Dispatch(context.Background(), cfg.DispatchBatch); err != nil {
				logger.Printf("outbox dispatch error: %v", err)
			}
		}
	}()

	billingHandler, err := billinginterfaces.NewHandler(billingService, balanceService, scheduleService)
	if err != nil {
		logger.Fatalf("billing handler error: %v", err)
	}
	academicHandler, err := academicinterfaces.NewHandler(validationService, teachingUnitsLookup(db, logger))
	if err != nil {
		logger.Fatalf("academic handler error: %v", err)
	}
	grantsHandler, err := grantsinterfaces.NewHandler(grantService)
	if err != nil {
		logger.Fatalf("grants handler error: %v", err)
	}
	registryHandler, err := registryinterfaces.NewHandler(registryService)
	if err != nil {
		logger.Fatalf("registry handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/invoices", billingHandler)
	mux.Handle("/api/v1/invoices/", billingHandler)
	mux.Handle("/api/v1/payments", billingHandler)
	mux.Handle("/api/v1/students/", billingHandler)
	mux.Handle("/api/v1/grades", academicHandler)
	mux.Handle("/api/v1/scholarships", grantsHandler)
	mux.Handle("/api/v1/scholarships/", grantsHandler)
	mux.Handle("/api/v1/deferrals", grantsHandler)
	mux.Handle("/api/v1/deferrals/", grantsHandler)
	mux.Handle("/api/v1/registry/", registryHandler)
	mux.Handle("/api/v1/reports/payments", apihttp.NewPaymentsReportHandler(db))
	mux.Handle("/api/v1/reports/payments.csv", apihttp.NewExportPaymentsCSVHandler(db))
	mux.Handle("/api/v1/reports/invoices", apihttp.NewInvoicesReportHandler(db))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// wireGrantNotifications subscribes the notifier to the lifecycle
// events worth a human's attention.
func wireGrantNotifications(bus eventbus.EventBus, store eventing.ProcessedStore, notifier grantsnotify.GrantNotifier) {
	eventing.Subscribe(bus, eventbus.EventTypeOf[grants.ScholarshipSuspended](), "grants.notify.suspended", func(ctx context.Context, event any) error {
		evt, ok := event.(grants.ScholarshipSuspended)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		notifier.Notify(ctx, grantsnotify.Event{
			Kind:          "bourse.suspendue",
			BeneficiaryID: evt.BeneficiaryID,
			GrantID:       evt.GrantID,
			OccurredAt:    evt.OccurredAt,
		})
		return nil
	}, store)
	eventing.Subscribe(bus, eventbus.EventTypeOf[grants.ScholarshipTerminated](), "grants.notify.terminated", func(ctx context.Context, event any) error {
		evt, ok := event.(grants.ScholarshipTerminated)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		detail := ""
		if evt.Auto {
			detail = "expiration automatique"
		}
		notifier.Notify(ctx, grantsnotify.Event{
			Kind:          "bourse.terminee",
			BeneficiaryID: evt.BeneficiaryID,
			GrantID:       evt.GrantID,
			Detail:        detail,
			OccurredAt:    evt.OccurredAt,
		})
		return nil
	}, store)
	eventing.Subscribe(bus, eventbus.EventTypeOf[grants.DeferralLapsed](), "grants.notify.lapsed", func(ctx context.Context, event any) error {
		evt, ok := event.(grants.DeferralLapsed)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		notifier.Notify(ctx, grantsnotify.Event{
			Kind:          "moratoire.depasse",
			BeneficiaryID: evt.BeneficiaryID,
			GrantID:       evt.GrantID,
			OccurredAt:    evt.OccurredAt,
		})
		return nil
	}, store)
	eventing.Subscribe(bus, eventbus.EventTypeOf[grants.SoDViolationRejected](), "grants.notify.sod", func(ctx context.Context, event any) error {
		evt, ok := event.(grants.SoDViolationRejected)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		notifier.Notify(ctx, grantsnotify.Event{
			Kind:          "sod.rejet",
			BeneficiaryID: evt.BeneficiaryID,
			Detail:        "tentative d'auto-attribution par " + evt.ActorID,
			OccurredAt:    evt.OccurredAt,
		})
		return nil
	}, store)
}

// teachingUnitsLookup resolves the units a teacher may grade from the
// teaching_assignments table.
func teachingUnitsLookup(db *sql.DB, logger *log.Logger) func(actorID string) []string {
	return func(actorID string) []string {
		if actorID == "" {
			return nil
		}
		rows, err := db.QueryContext(context.Background(), `
SELECT ue_code FROM teaching_assignments WHERE teacher_id = $1`, actorID)
		if err != nil {
			logger.Printf("teaching assignments lookup error: %v", err)
			return nil
		}
		defer rows.Close()
		var codes []string
		for rows.Next() {
			var code string
			if err := rows.Scan(&code); err != nil {
				logger.Printf("teaching assignments scan error: %v", err)
				return nil
			}
			codes = append(codes, code)
		}
		if err := rows.Err(); err != nil {
			logger.Printf("teaching assignments rows error: %v", err)
			return nil
		}
		return codes
	}
}

// financeDebtReader reads the current debt from the last computed
// financial standing. Credit balances read as zero debt.
type financeDebtReader struct {
	finance billing.FinanceRepository
}

func (r financeDebtReader) CurrentDebt(ctx context.Context, beneficiaryID string) (decimal.Decimal, error) {
	standing, err := r.finance.FindByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		if errors.Is(err, billing.ErrNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	balance := standing.Balance()
	if balance.IsNegative() {
		return decimal.Zero, nil
	}
	return balance, nil
}

type config struct {
	DatabaseURL             string
	HTTPAddr                string
	RulesDir                string
	JWTSecret               string
	GrantWebhookURL         string
	GrantNotifyDedupeWindow time.Duration
	DispatchInterval        time.Duration
	DispatchBatch           int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:             getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                getenvDefault("HTTP_ADDR", ":8080"),
		RulesDir:                getenvDefault("RULES_DIR", "config/programs"),
		JWTSecret:               getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		GrantWebhookURL:         getenvDefault("GRANT_WEBHOOK_URL", ""),
		GrantNotifyDedupeWindow: getenvDuration("GRANT_NOTIFY_DEDUP_WINDOW", 0),
		DispatchInterval:        getenvDuration("OUTBOX_DISPATCH_INTERVAL", 2*time.Second),
		DispatchBatch:           getenvIntDefault("OUTBOX_DISPATCH_BATCH", 50),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
