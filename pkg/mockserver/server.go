// Package mockserver serves the mock backend over real HTTP so the live
// client can be exercised end to end without the training service.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/spline-tsfm/dashctl/pkg/api"
	"github.com/spline-tsfm/dashctl/pkg/config"
	"github.com/spline-tsfm/dashctl/pkg/logging"
)

// Server exposes the mock backend under the same routes the real service
// uses. Responses are wrapped in the {ok, data} envelope when Envelope is
// set, which is how the production gateway replies.
type Server struct {
	mock     *api.MockClient
	log      *logging.Logger
	envelope bool

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// New creates a server over the given job registry.
func New(store *api.MockStore, log *logging.Logger, envelope bool) *Server {
	if log == nil {
		log = logging.New(logging.INFO, false)
	}
	s := &Server{
		mock:     api.NewMockClient(store),
		log:      log,
		envelope: envelope,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashctl_mockserver_requests_total",
				Help: "Handled requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
	s.registry.MustRegister(s.requests)
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	v1 := r.PathPrefix(config.APIPrefix).Subrouter()
	v1.HandleFunc("/pipelines/spline-tsfm:run", s.handleSubmit).Methods("POST")
	v1.HandleFunc("/jobs/{id:[^:]+}:cancel", s.handleCancel).Methods("POST")
	v1.HandleFunc("/jobs/{id}/logs", s.handleLogs).Methods("GET")
	v1.HandleFunc("/jobs/{id}", s.handleJob).Methods("GET")
	v1.HandleFunc("/dashboard/summary", s.handleDashboard).Methods("GET")
	v1.HandleFunc("/runs/{id}/metrics", s.handleRunMetrics).Methods("GET")
	v1.HandleFunc("/runs/{id}/report", s.handleRunReport).Methods("GET")
	v1.HandleFunc("/runs/{id}/artifacts", s.handleRunArtifacts).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	return r
}

// ListenAndServe runs the server until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("mock server listening", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, route string, status int, payload interface{}) {
	if s.envelope && status < 400 {
		payload = map[string]interface{}{"ok": true, "data": payload}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response failed", map[string]interface{}{"route": route, "error": err.Error()})
	}
	s.requests.WithLabelValues(route, fmt.Sprintf("%d", status)).Inc()
}

func (s *Server) writeError(w http.ResponseWriter, route string, err error) {
	status := http.StatusInternalServerError
	message := err.Error()
	code := ""
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status != 0 {
			status = apiErr.Status
		}
		code = apiErr.Code
	}
	body := map[string]interface{}{"ok": false, "message": message}
	if code != "" {
		body["code"] = code
	}
	s.writeJSON(w, route, status, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, "health", http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RunID             string   `json:"run_id"`
		Model             string   `json:"model_type"`
		Epochs            int      `json:"epochs"`
		Synthetic         bool     `json:"use_synthetic"`
		FeatureMode       string   `json:"feature_mode"`
		TargetCols        []string `json:"target_cols"`
		DynamicCovariates []string `json:"dynamic_covariates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, "submit", &api.APIError{Message: "invalid request body", Status: http.StatusBadRequest})
		return
	}

	payload := api.RunJobPayload{
		RunID:             body.RunID,
		Model:             body.Model,
		Epochs:            body.Epochs,
		Synthetic:         body.Synthetic,
		FeatureMode:       body.FeatureMode,
		TargetCols:        strings.Join(body.TargetCols, ","),
		DynamicCovariates: strings.Join(body.DynamicCovariates, ","),
	}
	res, err := s.mock.SubmitRun(r.Context(), payload, nil)
	if err != nil {
		s.writeError(w, "submit", err)
		return
	}
	s.log.Info("job submitted", map[string]interface{}{"job_id": res.JobID, "run_id": res.RunID})
	s.writeJSON(w, "submit", http.StatusOK, res)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	detail, err := s.mock.FetchJob(r.Context(), jobID, nil)
	if err != nil {
		s.writeError(w, "job", err)
		return
	}
	s.writeJSON(w, "job", http.StatusOK, detail)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	detail, err := s.mock.CancelJob(r.Context(), jobID, nil)
	if err != nil {
		s.writeError(w, "cancel", err)
		return
	}
	s.log.Info("job canceled", map[string]interface{}{"job_id": jobID})
	s.writeJSON(w, "cancel", http.StatusOK, detail)
}

// handleLogs emits structured log entries rather than flat strings. The
// client renders them back to "[ts] level: message" lines.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	logs, err := s.mock.FetchJobLogs(r.Context(), jobID, nil)
	if err != nil {
		s.writeError(w, "logs", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(logs.Lines))
	for _, line := range logs.Lines {
		entries = append(entries, structuredLogEntry(line))
	}
	s.writeJSON(w, "logs", http.StatusOK, map[string]interface{}{
		"job_id": jobID,
		"logs":   entries,
	})
}

// structuredLogEntry splits a "[ts] level: message" line into its parts,
// falling back to a message-only entry for other shapes.
func structuredLogEntry(line string) map[string]interface{} {
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "] "); end > 0 {
			ts := line[1:end]
			rest := line[end+2:]
			if sep := strings.Index(rest, ": "); sep > 0 {
				return map[string]interface{}{
					"ts":      ts,
					"level":   rest[:sep],
					"message": rest[sep+2:],
				}
			}
			return map[string]interface{}{"ts": ts, "message": rest}
		}
	}
	return map[string]interface{}{"message": line}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.mock.FetchDashboardSummary(r.Context(), nil)
	if err != nil {
		s.writeError(w, "dashboard", err)
		return
	}
	summary.ServiceStatus = hostServiceStatus()
	s.writeJSON(w, "dashboard", http.StatusOK, summary)
}

// hostServiceStatus folds real host load into the dashboard status string so
// the served summary is distinguishable from the in-process mock.
func hostServiceStatus() string {
	status := "healthy"
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 && percents[0] > 90 {
		status = "degraded"
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.UsedPercent > 95 {
		status = "degraded"
	}
	return status
}

func (s *Server) handleRunMetrics(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	payload, err := s.mock.FetchRunMetrics(r.Context(), runID, nil)
	if err != nil {
		s.writeError(w, "run_metrics", err)
		return
	}
	s.writeJSON(w, "run_metrics", http.StatusOK, payload)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	payload, err := s.mock.FetchRunReport(r.Context(), runID, nil)
	if err != nil {
		s.writeError(w, "run_report", err)
		return
	}
	s.writeJSON(w, "run_report", http.StatusOK, payload)
}

func (s *Server) handleRunArtifacts(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]
	payload, err := s.mock.FetchRunArtifacts(r.Context(), runID, nil)
	if err != nil {
		s.writeError(w, "run_artifacts", err)
		return
	}
	s.writeJSON(w, "run_artifacts", http.StatusOK, payload)
}
