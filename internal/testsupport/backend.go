package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/julienschmidt/httprouter"
)

// Request records one call the fake backend received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// JSON decodes the recorded body into a generic value.
func (r Request) JSON(t testing.TB) map[string]any {
	t.Helper()
	var out map[string]any
	if len(r.Body) == 0 {
		return out
	}
	if err := json.Unmarshal(r.Body, &out); err != nil {
		t.Fatalf("decode %s %s body: %v", r.Method, r.Path, err)
	}
	return out
}

// Backend is an in-memory stand-in for the workflow backend. Jobs advance
// one status per GET through JobStatuses.
type Backend struct {
	URL string

	mu          sync.Mutex
	requests    []Request
	config      map[string]any
	models      []map[string]any
	templates   map[string]map[string]any
	nodeInfo    map[string]any
	jobs        map[string]*fakeJob
	jobOrder    []string
	nextID      int
	JobStatuses []string
	failures    map[string]int
}

type fakeJob struct {
	id      string
	request map[string]any
	polls   int
	status  string
}

// NewBackend starts a fake backend that is shut down with the test.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		config:      map[string]any{"max_workers": 4},
		templates:   map[string]map[string]any{},
		nodeInfo:    map[string]any{},
		jobs:        map[string]*fakeJob{},
		JobStatuses: []string{"queued", "running", "completed"},
		failures:    map[string]int{},
	}
	router := httprouter.New()
	router.GET("/api/config", b.getConfig)
	router.POST("/api/config", b.saveConfig)
	router.GET("/api/models", b.listModels)
	router.GET("/api/jobs", b.listJobs)
	router.POST("/api/jobs", b.createJob)
	router.GET("/api/jobs/:id", b.getJob)
	router.POST("/api/jobs/:id/cancel", b.cancelJob)
	router.GET("/api/jobs/:id/items", b.jobItems)
	router.GET("/api/workflows", b.listTemplates)
	router.POST("/api/workflows", b.saveTemplate)
	router.GET("/api/workflows/:id", b.getTemplate)
	router.DELETE("/api/workflows/:id", b.deleteTemplate)
	router.POST("/api/wallpaper/upload", b.uploadWallpaper)
	router.GET("/api/runninghub/node-info", b.getNodeInfo)

	server := httptest.NewServer(b.record(router))
	t.Cleanup(server.Close)
	b.URL = server.URL
	return b
}

// Requests returns every request received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// RequestsTo returns the requests matching method and path.
func (b *Backend) RequestsTo(method, path string) []Request {
	var out []Request
	for _, req := range b.Requests() {
		if req.Method == method && req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

// FailNext makes the next n requests to path answer 503.
func (b *Backend) FailNext(path string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = n
}

// SetModels replaces the model catalog.
func (b *Backend) SetModels(models ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.models = models
}

// SetNodeInfo registers the node-info document served for webappID.
func (b *Backend) SetNodeInfo(webappID string, doc any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodeInfo[webappID] = doc
}

// Config returns the last stored provider config.
func (b *Backend) Config() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// JobRequest returns the create request of job id.
func (b *Backend) JobRequest(id string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if job, ok := b.jobs[id]; ok {
		return job.request
	}
	return nil
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		b.mu.Lock()
		b.requests = append(b.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
		remaining := b.failures[r.URL.Path]
		if remaining > 0 {
			b.failures[r.URL.Path] = remaining - 1
		}
		b.mu.Unlock()

		if remaining > 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"detail": "backend busy"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) getConfig(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, b.Config())
}

func (b *Backend) saveConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var cfg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	b.config = cfg
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

func (b *Backend) listModels(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	provider := r.URL.Query().Get("provider")
	tag := r.URL.Query().Get("tag")
	b.mu.Lock()
	out := []map[string]any{}
	for _, model := range b.models {
		if provider != "" && model["provider"] != provider {
			continue
		}
		if tag != "" && !hasTag(model, tag) {
			continue
		}
		out = append(out, model)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func hasTag(model map[string]any, tag string) bool {
	tags, _ := model["tags"].([]any)
	for _, candidate := range tags {
		if candidate == tag {
			return true
		}
	}
	if typed, ok := model["tags"].([]string); ok {
		for _, candidate := range typed {
			if candidate == tag {
				return true
			}
		}
	}
	return false
}

func (b *Backend) createJob(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	if _, ok := req["workflow"].(map[string]any); !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "workflow is required"})
		return
	}
	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("%08x", 0xa0000000+b.nextID)
	b.jobs[id] = &fakeJob{id: id, request: req, status: "queued"}
	b.jobOrder = append(b.jobOrder, id)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"job_id": id})
}

func (b *Backend) snapshot(job *fakeJob) map[string]any {
	total := 0
	for i := 1; i <= 4; i++ {
		if dir, ok := job.request["input_dir_"+strconv.Itoa(i)].(string); ok && dir != "" {
			total++
		}
	}
	done := 0
	if job.status == "completed" {
		done = total
	}
	snap := map[string]any{
		"job_id":     job.id,
		"status":     job.status,
		"done":       done,
		"total":      total,
		"created_at": 1760000000.0,
	}
	if job.status == "queued" {
		snap["queue_position"] = 1
	}
	return snap
}

func (b *Backend) listJobs(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	b.mu.Lock()
	out := make([]map[string]any, 0, len(b.jobOrder))
	for _, id := range b.jobOrder {
		out = append(out, b.snapshot(b.jobs[id]))
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getJob(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	b.mu.Lock()
	job, ok := b.jobs[ps.ByName("id")]
	if !ok {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "job not found"})
		return
	}
	if job.status != "cancelled" && len(b.JobStatuses) > 0 {
		index := job.polls
		if index >= len(b.JobStatuses) {
			index = len(b.JobStatuses) - 1
		}
		job.status = b.JobStatuses[index]
		job.polls++
	}
	snap := b.snapshot(job)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

func (b *Backend) cancelJob(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	b.mu.Lock()
	job, ok := b.jobs[ps.ByName("id")]
	if ok {
		job.status = "cancelled"
	}
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": ps.ByName("id"), "status": "cancelled"})
}

func (b *Backend) jobItems(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	b.mu.Lock()
	job, ok := b.jobs[ps.ByName("id")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "job not found"})
		return
	}
	items := []map[string]any{}
	if job.status == "completed" {
		items = append(items, map[string]any{"key": "001", "status": "completed", "outputs": map[string]any{}})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (b *Backend) listTemplates(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	b.mu.Lock()
	out := make([]map[string]any, 0, len(b.templates))
	for i := 1; i <= b.nextID; i++ {
		tmpl, ok := b.templates[strconv.Itoa(i)]
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"id":          tmpl["id"],
			"name":        tmpl["name"],
			"description": tmpl["description"],
			"tags":        tmpl["tags"],
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) saveTemplate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": err.Error()})
		return
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	req["id"] = id
	b.templates[strconv.Itoa(id)] = req
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, req)
}

func (b *Backend) getTemplate(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	b.mu.Lock()
	tmpl, ok := b.templates[ps.ByName("id")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "workflow not found"})
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (b *Backend) deleteTemplate(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	b.mu.Lock()
	_, ok := b.templates[ps.ByName("id")]
	delete(b.templates, ps.ByName("id"))
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "workflow not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (b *Backend) uploadWallpaper(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "缺少文件"})
		return
	}
	defer file.Close()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": "/static/wallpapers/" + header.Filename})
}

func (b *Backend) getNodeInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b.mu.Lock()
	doc, ok := b.nodeInfo[r.URL.Query().Get("webapp_id")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "webapp not found"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
