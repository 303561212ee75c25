package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/learntrack/internal/config"
	"example.com/learntrack/internal/consent"
	"example.com/learntrack/internal/domain"
)

// Enqueuer accepts validated events for asynchronous storage.
type Enqueuer interface {
	Push(ev domain.Event, immediate bool)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ready(ctx context.Context) error
}

// ServerDeps wires the development collector: it serves the privacy settings and
// accepts event batches the way the production backend does.
type ServerDeps struct {
	Cfg     config.Config
	Consent consent.Settings
	Queue   Enqueuer
	DB      Pinger
	Now     func() time.Time
}

func decodeJSONStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if d.DB != nil {
		if err := d.DB.Ready(r.Context()); err != nil {
			WriteProblem(w, http.StatusServiceUnavailable, "not ready", "database not reachable", nil)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// --- Privacy settings ---

func (d *ServerDeps) HandleGetPrivacySettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	settings := d.Consent
	if settings == nil {
		settings = consent.FailClosed()
	}
	// Hand out a CSRF token the way the backend does on its first page render.
	if _, err := r.Cookie(CSRFCookie); err != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     CSRFCookie,
			Value:    strings.ReplaceAll(uuid.NewString(), "-", ""),
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(settings)
}

// --- Events (batch) ---

func (d *ServerDeps) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var batch domain.Batch
	if err := decodeJSONStrict(r, &batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, http.StatusRequestEntityTooLarge, "body too large",
				"batch exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
			return
		}
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	if all, top := domain.ValidateBatch(batch.Events, domain.MaxBatchEvents, d.Now(), domain.DefaultClockSkew); top != nil {
		WriteProblem(w, http.StatusBadRequest, "validation failed", top.Error(), batchErrors(all))
		return
	}
	for _, ev := range batch.Events {
		d.Queue.Push(ev, false)
	}
	if d.Cfg.EnableDebug {
		log.Printf("[collector] queued %d events", len(batch.Events))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"accepted_count":` + strconv.Itoa(len(batch.Events)) + `}`))
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.HandleHealthz)
	mux.HandleFunc("/readyz", d.HandleReadyz)
	mux.HandleFunc(d.Cfg.PrivacyEndpoint, d.HandleGetPrivacySettings)

	var postEvents http.Handler = http.HandlerFunc(d.HandlePostEvents)
	postEvents = BodyLimit(d.Cfg.MaxBodyBytes)(postEvents)
	postEvents = RequireJSON(postEvents)
	postEvents = RequireCSRF(postEvents)
	mux.Handle(d.Cfg.Endpoint, postEvents)

	return mux
}
