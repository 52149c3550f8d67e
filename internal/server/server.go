package server

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TobiSchelling/KeywordGap/internal/export"
	"github.com/TobiSchelling/KeywordGap/internal/gap"
	"github.com/TobiSchelling/KeywordGap/internal/ingest"
	"github.com/TobiSchelling/KeywordGap/internal/keyword"
	"github.com/TobiSchelling/KeywordGap/internal/metrics"
	"github.com/TobiSchelling/KeywordGap/internal/normalize"
	"github.com/TobiSchelling/KeywordGap/internal/pipeline"
	"github.com/TobiSchelling/KeywordGap/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// MaxUploadBytes bounds the size of one analyze request.
const MaxUploadBytes = 32 << 20

// BusyNotice is shown when an insight request is rejected because another
// one is running.
const BusyNotice = "Another AI insight request is in progress; insights were skipped for this run."

// Server is the HTTP server for the upload UI and JSON API.
type Server struct {
	pipeline *pipeline.Pipeline
	pages    map[string]*template.Template
	mux      *http.ServeMux

	// insightBusy admits one insight generation at a time.
	insightBusy atomic.Bool
}

// New creates a new Server.
func New(p *pipeline.Pipeline) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": report.HTML,
		"join":     strings.Join,
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{pipeline: p, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return logRequests(metrics.Middleware(s.mux))
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/analyze", s.handleAPIAnalyze)
	s.mux.HandleFunc("POST /api/export", s.handleAPIExport)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
}

func (s *Server) indexData(errMsg string) map[string]any {
	return map[string]any{
		"Error":             errMsg,
		"Filter":            s.pipeline.Filter(),
		"InsightsAvailable": s.pipeline.InsightsAvailable(),
		"Columns":           normalize.DefaultAliases(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.indexData(""))
}

// analyzeRequest is a parsed multipart upload.
type analyzeRequest struct {
	client, competitor pipeline.Input
	opts               pipeline.Options
	files              []multipart.File
}

func (a *analyzeRequest) close() {
	for _, f := range a.files {
		f.Close()
	}
}

// requestError carries the HTTP status for a rejected request.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func (s *Server) parseAnalyze(w http.ResponseWriter, r *http.Request) (*analyzeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &requestError{status: http.StatusRequestEntityTooLarge,
				msg: fmt.Sprintf("upload exceeds %d MiB", MaxUploadBytes>>20)}
		}
		return nil, badRequest("expected a multipart upload with client and competitor files")
	}

	req := &analyzeRequest{}
	for _, field := range []string{"client", "competitor"} {
		f, hdr, err := r.FormFile(field)
		if err != nil {
			req.close()
			return nil, badRequest("missing %s file", field)
		}
		req.files = append(req.files, f)
		in := pipeline.Input{Name: hdr.Filename, Reader: f}
		if field == "client" {
			req.client = in
		} else {
			req.competitor = in
		}
	}

	filter := s.pipeline.Filter()
	if v := strings.TrimSpace(r.FormValue("min_volume")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			req.close()
			return nil, badRequest("min_volume must be a non-negative integer")
		}
		filter.MinSearchVolume = n
	}
	if v := strings.TrimSpace(r.FormValue("max_difficulty")); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(d) || d < 0 || d > 100 {
			req.close()
			return nil, badRequest("max_difficulty must be a number within 0-100")
		}
		filter.MaxKeywordDifficulty = d
	}
	req.opts.Filter = &filter
	req.opts.Insights = r.FormValue("insights") != ""
	return req, nil
}

// acquireInsights reports whether this request may generate insights. The
// caller must call releaseInsights when it returns true.
func (s *Server) acquireInsights() bool {
	if s.insightBusy.CompareAndSwap(false, true) {
		return true
	}
	metrics.InsightRequests.WithLabelValues("busy").Inc()
	return false
}

func (s *Server) releaseInsights() {
	s.insightBusy.Store(false)
}

// runError maps a failed pipeline run onto an HTTP status.
func runError(err error) (int, string) {
	var schemaErr *normalize.SchemaError
	var emptyErr *normalize.EmptyDatasetError
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.As(err, &schemaErr), errors.As(err, &emptyErr):
		return http.StatusUnprocessableEntity, err.Error()
	}
	return http.StatusBadRequest, err.Error()
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseAnalyze(w, r)
	if err != nil {
		s.renderRequestError(w, err)
		return
	}
	defer req.close()

	var notices []string
	if req.opts.Insights {
		if s.acquireInsights() {
			defer s.releaseInsights()
		} else {
			req.opts.Insights = false
			notices = append(notices, BusyNotice)
		}
	}

	res := s.pipeline.Run(r.Context(), req.client, req.competitor, req.opts)
	if err := res.Err(); err != nil {
		status, msg := runError(err)
		s.render(w, status, "index.html", s.indexData(msg))
		return
	}

	for src, skipped := range res.Skipped {
		notices = append(notices, fmt.Sprintf("%d %s rows skipped (first: %s)", len(skipped), src, skipped[0].Error()))
	}

	s.render(w, http.StatusOK, "report.html", map[string]any{
		"RunID":   res.Analysis.RunID,
		"Filter":  res.Analysis.Filter,
		"Notices": notices,
		"Steps":   res.Steps,
		"Report":  report.HTML(report.Markdown(res.Analysis, res.Insight)),
	})
}

func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseAnalyze(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer req.close()

	if req.opts.Insights {
		if !s.acquireInsights() {
			writeJSONError(w, http.StatusTooManyRequests, BusyNotice)
			return
		}
		defer s.releaseInsights()
	}

	res := s.pipeline.Run(r.Context(), req.client, req.competitor, req.opts)
	if err := res.Err(); err != nil {
		status, msg := runError(err)
		writeJSONError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, newAnalyzeResponse(res))
}

func (s *Server) handleAPIExport(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseAnalyze(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	defer req.close()

	format := r.FormValue("format")
	if format == "" {
		format = export.FormatXLSX
	}
	category := r.FormValue("category")
	if category == "" {
		category = "priority_matrix"
	}
	req.opts.Insights = false

	res := s.pipeline.Run(r.Context(), req.client, req.competitor, req.opts)
	if err := res.Err(); err != nil {
		status, msg := runError(err)
		writeJSONError(w, status, msg)
		return
	}

	name := export.BaseName
	switch format {
	case export.FormatCSV:
		sec, ok := export.SectionBySlug(res.Analysis, category)
		if !ok {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q; expected one of %s",
				category, strings.Join(export.Slugs(), ", ")))
			return
		}
		attachment(w, "text/csv; charset=utf-8", name+"_"+sec.Slug+".csv")
		err = export.WriteCSV(w, sec.Category, sec.Rows)
	case export.FormatXLSX:
		attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", name+".xlsx")
		err = export.WriteXLSX(w, res.Analysis)
	case export.FormatJSON:
		attachment(w, "application/json", name+"_summary.json")
		err = export.WriteSummaryJSON(w, res.Analysis)
	case export.FormatYAML:
		attachment(w, "application/yaml", name+"_summary.yaml")
		err = export.WriteSummaryYAML(w, res.Analysis)
	default:
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q; expected one of %s",
			format, strings.Join(export.Formats, ", ")))
		return
	}
	if err != nil {
		slog.Error("export failed", "format", format, "error", err)
	}
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func (s *Server) renderRequestError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var re *requestError
	if errors.As(err, &re) {
		status = re.status
	}
	s.render(w, status, "index.html", s.indexData(err.Error()))
}

func writeRequestError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	var re *requestError
	if errors.As(err, &re) {
		status = re.status
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		slog.Error("rendering template", "template", name, "error", err)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "status", sw.status,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

// Serve starts the HTTP server on the given port.
func Serve(p *pipeline.Pipeline, port int) error {
	srv, err := New(p)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	slog.Info("server listening", "url", "http://"+addr)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return hs.ListenAndServe()
}

// analyzeResponse is the JSON body of POST /api/analyze.
type analyzeResponse struct {
	RunID       string                   `json:"run_id"`
	Filter      export.FilterDoc         `json:"filter"`
	Summary     gap.Summary              `json:"summary"`
	Counts      map[string]int           `json:"counts"`
	SkippedRows map[string]int           `json:"skipped_rows"`
	Steps       []stepJSON               `json:"steps"`
	Tables      map[string][]opportunity `json:"tables"`
	Insights    *insightJSON             `json:"insights,omitempty"`
}

type stepJSON struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type insightJSON struct {
	Text        string `json:"text"`
	Provider    string `json:"provider,omitempty"`
	Failed      bool   `json:"failed"`
	Unavailable bool   `json:"unavailable"`
}

// opportunity is a classified keyword as exposed over JSON. Positions are
// null where a side does not rank.
type opportunity struct {
	Keyword            string  `json:"keyword"`
	Category           string  `json:"category"`
	Stage              string  `json:"stage"`
	ClientPosition     *int    `json:"client_position"`
	CompetitorPosition *int    `json:"competitor_position"`
	SearchVolume       int     `json:"search_volume"`
	Difficulty         float64 `json:"keyword_difficulty"`
	CPC                float64 `json:"cpc"`
	TrafficCost        float64 `json:"traffic_cost"`
	Intent             string  `json:"intent,omitempty"`
	ClientURL          string  `json:"client_url,omitempty"`
	CompetitorURL      string  `json:"competitor_url,omitempty"`
	Score              float64 `json:"score"`
	Value              float64 `json:"value,omitempty"`
	PriorityScore      float64 `json:"priority_score"`
}

func rankOrNil(pos int) *int {
	if !keyword.IsRanking(pos) {
		return nil
	}
	return &pos
}

func newOpportunity(o gap.Opportunity) opportunity {
	return opportunity{
		Keyword:            o.Keyword,
		Category:           string(o.Category),
		Stage:              string(o.Stage),
		ClientPosition:     rankOrNil(o.ClientPosition),
		CompetitorPosition: rankOrNil(o.CompetitorPosition),
		SearchVolume:       o.SearchVolume,
		Difficulty:         o.Difficulty,
		CPC:                o.CPC,
		TrafficCost:        o.TrafficCost,
		Intent:             o.Intent,
		ClientURL:          o.ClientURL,
		CompetitorURL:      o.CompetitorURL,
		Score:              o.Score,
		Value:              o.Value,
		PriorityScore:      o.PriorityScore,
	}
}

func newAnalyzeResponse(res *pipeline.Result) analyzeResponse {
	doc := export.NewDocument(res.Analysis)
	out := analyzeResponse{
		RunID:       doc.RunID,
		Filter:      doc.Filter,
		Summary:     doc.Summary,
		Counts:      doc.Counts,
		SkippedRows: make(map[string]int, len(res.Skipped)),
		Tables:      make(map[string][]opportunity),
	}
	for src, skipped := range res.Skipped {
		out.SkippedRows[src] = len(skipped)
	}
	for _, st := range res.Steps {
		out.Steps = append(out.Steps, stepJSON{Name: st.Name, Summary: st.Summary})
	}
	for _, sec := range export.Sections(res.Analysis) {
		rows := make([]opportunity, 0, len(sec.Rows))
		for _, o := range sec.Rows {
			rows = append(rows, newOpportunity(o))
		}
		out.Tables[sec.Slug] = rows
	}
	if res.Insight != nil {
		out.Insights = &insightJSON{
			Text:        res.Insight.Text,
			Provider:    res.Insight.Provider,
			Failed:      res.Insight.Failed,
			Unavailable: res.Insight.Unavailable,
		}
	}
	return out
}
