// Command enrichctl is the host-plugin-runtime stand-in described in
// spec §6: it triggers enrichment runs over HTTP and supplies
// configuration, mirroring the teacher's cmd/server entrypoint (backend/
// cmd/server/main.go) — godotenv for local config, a zap logger, a
// logging+recovery middleware chain, and swaggo-served API docs.
//
// @title Transaction Enrichment Engine API
// @version 1.0
// @description Triggers enrichment batch runs and reports outcomes.
// @BasePath /api
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_swaggerHttp "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/fincore/txn-enrichment/docs"
	"github.com/fincore/txn-enrichment/internal/controller"
	"github.com/fincore/txn-enrichment/internal/dao"
	"github.com/fincore/txn-enrichment/internal/dao/fixtures"
	"github.com/fincore/txn-enrichment/internal/logger"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "serve", "serve | summary")
	flag.Parse()

	zl, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer zl.Sync()
	sugar := zl.Sugar()

	store, err := openStore()
	if err != nil {
		sugar.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if !fixtures.Load(store) {
		sugar.Infow("store does not support fixture seeding; assuming it is pre-populated")
	}

	ctl := controller.New(demoLoader{}, demoPersister{log: zl}, store, zl)

	switch *mode {
	case "summary":
		runSummary(ctl, sugar)
	default:
		serve(ctl, zl, sugar)
	}
}

func openStore() (dao.Store, error) {
	switch os.Getenv("STORE_BACKEND") {
	case "postgres":
		return dao.NewPostgresStore(dao.NewPostgresConfigFromEnv())
	case "sqlite":
		return dao.NewSQLiteStore(os.Getenv("SQLITE_PATH"))
	default:
		return dao.NewMemoryStore(), nil
	}
}

func runSummary(ctl *controller.EnrichmentController, sugar *zap.SugaredLogger) {
	report, err := ctl.Run(context.Background(), controller.Config{StopOnError: false, BatchID: "cli-summary"})
	if err != nil {
		sugar.Fatalf("run failed: %v", err)
	}
	sugar.Infof("batch %s: %d/%d succeeded in %s", report.BatchID, report.SuccessCount, report.TotalCount, report.Elapsed)
	for step, count := range report.StepSuccessRate {
		sugar.Infof("  %s: %d succeeded", step, count)
	}
}

func serve(ctl *controller.EnrichmentController, zl *zap.Logger, sugar *zap.SugaredLogger) {
	router := mux.NewRouter()

	router.HandleFunc("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusFound)
	})
	router.PathPrefix("/swagger/").Handler(_swaggerHttp.WrapHandler)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "txn-enrichment"})
	}).Methods(http.MethodGet)

	// runBatch triggers one enrichment run over the currently loaded rows.
	//
	// @Summary Trigger an enrichment batch run
	// @Produce json
	// @Success 200 {object} controller.Report
	// @Router /runs [post]
	router.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		report, err := ctl.Run(r.Context(), controller.Config{StopOnError: false, BatchID: r.URL.Query().Get("batchId")})
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(report)
	}).Methods(http.MethodPost)

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	handler := recovery(zl)(requestLogger(zl)(router))
	sugar.Infof("enrichctl listening on port %s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// requestLogger and recovery mirror the teacher's cmd/server middleware
// (backend/cmd/server/main.go).
func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote", r.RemoteAddr),
			)
			next.ServeHTTP(w, r)
		})
	}
}

func recovery(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					l.Error("panic recovered", zap.Any("error", rec))
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
