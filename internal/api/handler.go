package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/litecron/litecron/internal/config"
	"github.com/litecron/litecron/internal/crontab"
	"github.com/litecron/litecron/internal/logfile"
	"github.com/litecron/litecron/internal/stream"
	"github.com/litecron/litecron/pkg/types"
	"github.com/sirupsen/logrus"
)

const nextRunLayout = "2006-01-02 15:04"

// CrontabInstaller swaps generated text in as the active schedule
type CrontabInstaller interface {
	Install(text string) error
}

type Handler struct {
	store     *config.Store
	compiler  *crontab.Compiler
	installer CrontabInstaller
	publisher *stream.Publisher
	book      *logfile.Book
	logger    *logrus.Logger
}

type TaskView struct {
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	Schedule     string `json:"schedule"`
	ScheduleDesc string `json:"schedule_desc"`
	Description  string `json:"description"`
	NextRun      string `json:"next_run,omitempty"`
}

type TasksResponse struct {
	Tasks        []TaskView `json:"tasks"`
	ConfigExists bool       `json:"config_exists"`
}

type LogView struct {
	Name      string `json:"name"`
	SizeHuman string `json:"size_human"`
	Modified  string `json:"modified"`
}

func NewHandler(store *config.Store, compiler *crontab.Compiler, installer CrontabInstaller,
	publisher *stream.Publisher, book *logfile.Book, logger *logrus.Logger) *Handler {
	return &Handler{
		store:     store,
		compiler:  compiler,
		installer: installer,
		publisher: publisher,
		book:      book,
		logger:    logger,
	}
}

// Recompile regenerates and installs the crontab from the live configuration.
// Returns the number of scheduled jobs and the per-job compile errors.
func (h *Handler) Recompile() (int, []types.JobError, error) {
	cfg, err := h.store.Reload()
	if err != nil {
		return 0, nil, err
	}
	text, errs := h.compiler.Compile(cfg.Tasks)
	if err := h.installer.Install(text); err != nil {
		return 0, errs, err
	}

	scheduled := 0
	for _, task := range cfg.Tasks {
		if task.Enabled {
			scheduled++
		}
	}
	return scheduled - len(errs), errs, nil
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	exists := h.store.Exists()
	total, enabled := 0, 0
	if exists {
		if cfg, err := h.store.Load(); err == nil {
			total = len(cfg.Tasks)
			for _, task := range cfg.Tasks {
				if task.Enabled {
					enabled++
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": map[string]int{
			"total":    total,
			"enabled":  enabled,
			"disabled": total - enabled,
		},
		"config_exists": exists,
		"timestamp":     time.Now().Format("2006-01-02 15:04:05"),
	})
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if !h.store.Exists() {
		writeJSON(w, http.StatusOK, TasksResponse{Tasks: []TaskView{}, ConfigExists: false})
		return
	}
	cfg, err := h.store.Load()
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}

	views := make([]TaskView, 0, len(cfg.Tasks))
	for _, task := range cfg.Tasks {
		view := TaskView{
			Name:         task.Name,
			Enabled:      task.Enabled,
			Schedule:     task.Schedule,
			ScheduleDesc: crontab.Describe(task.Schedule),
			Description:  task.Description,
		}
		if task.Enabled {
			if next, err := h.compiler.NextRun(task.Schedule); err == nil {
				view.NextRun = next.Format(nextRunLayout)
			}
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: views, ConfigExists: true})
}

// RunTask streams the run as newline-delimited JSON frames; the connection
// stays open until the terminal frame. A client that disconnects mid-stream
// does not cancel the run.
func (h *Handler) RunTask(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	clientGone := false
	for frame := range h.publisher.Stream(name, "webui") {
		if clientGone {
			continue // drain so the run finishes unobserved
		}
		if err := encoder.Encode(frame); err != nil {
			clientGone = true
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var req struct {
		Enable bool `json:"enable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	if _, err := h.store.Toggle(name, req.Enable); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": err.Error(),
		})
		return
	}

	scheduled, compileErrs, err := h.Recompile()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": fmt.Sprintf("task updated but crontab install failed: %v", err),
		})
		return
	}

	state := "disabled"
	if req.Enable {
		state = "enabled"
	}
	message := fmt.Sprintf("task %s %s, %d jobs scheduled", name, state, scheduled)
	if len(compileErrs) > 0 {
		message = fmt.Sprintf("%s (%d skipped for invalid schedules)", message, len(compileErrs))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"enabled": req.Enable,
		"message": message,
	})
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	infos, err := h.book.List()
	if err != nil {
		h.handleError(w, err, http.StatusInternalServerError)
		return
	}
	views := make([]LogView, 0, len(infos))
	for _, info := range infos {
		views = append(views, LogView{
			Name:      info.Name,
			SizeHuman: info.SizeHuman,
			Modified:  info.Modified.Format("2006-01-02 15:04:05"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": views})
}

func (h *Handler) LogContent(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		fmt.Sscanf(raw, "%d", &limit)
	}

	content, err := h.book.Tail(filename, limit)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":  content,
		"filename": filename,
	})
}

func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	retention := 7
	if cfg, err := h.store.Load(); err == nil {
		retention = cfg.Logs.RetentionDays
	}

	deleted, errs := h.book.Sweep(retention)
	for _, err := range errs {
		h.logger.Errorf("Log sweep: %v", err)
	}

	message := fmt.Sprintf("deleted %d log files older than %d days", deleted, retention)
	if len(errs) > 0 {
		message = fmt.Sprintf("%s, %d files could not be deleted", message, len(errs))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"cleaned": deleted,
	})
}

func (h *Handler) handleError(w http.ResponseWriter, err error, status int) {
	h.logger.Errorf("API error: %v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
