package workspace

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"label-ecg/internal/account"
	"label-ecg/internal/annotation"
	"label-ecg/internal/chart"
	"label-ecg/internal/dataset"
	"label-ecg/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

const (
	sidKey           = "sid"
	invalidLoginText = "Invalid credentials"
	maxUploadMemory  = 10 << 20
)

var errBadRequest = errors.New("bad request")

// ReportService renders the annotation report of a dataset.
type ReportService interface {
	DatasetReport(ctx context.Context, username, datasetID string) ([]byte, error)
}

type Handler struct {
	svc        Service
	sessions   sessions.Store
	cookieName string
	reports    ReportService
	log        *zap.Logger
	tmpl       *template.Template
}

func NewHandler(svc Service, store sessions.Store, cookieName string, reports ReportService, log *zap.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		svc:        svc,
		sessions:   store,
		cookieName: cookieName,
		reports:    reports,
		log:        log,
		tmpl:       tmpl,
	}, nil
}

type sidContextKey struct{}

func sessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sidContextKey{}).(string)
	return sid
}

// withSession makes sure every request carries a session id cookie and puts
// the id into the request context.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Get(r, h.cookieName)
		if err != nil {
			h.log.Debug("discarding unreadable session cookie", zap.Error(err))
		}
		sid, ok := sess.Values[sidKey].(string)
		if !ok || sid == "" {
			sid = uuid.NewString()
			sess.Values[sidKey] = sid
			if err := sess.Save(r, w); err != nil {
				h.log.Error("failed to save session", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sidContextKey{}, sid)))
	})
}

func (h *Handler) addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	sess, _ := h.sessions.Get(r, h.cookieName)
	sess.AddFlash(msg)
	if err := sess.Save(r, w); err != nil {
		h.log.Error("failed to save flash", zap.Error(err))
	}
}

func (h *Handler) takeFlashes(w http.ResponseWriter, r *http.Request) []string {
	sess, _ := h.sessions.Get(r, h.cookieName)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		h.log.Error("failed to clear flashes", zap.Error(err))
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	State *State `json:"state,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials), errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, dataset.ErrNotFound), errors.Is(err, annotation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, annotation.ErrInvalidStatus), errors.Is(err, ErrInvalidLead), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoDataset), errors.Is(err, ErrEmptyDataset):
		return http.StatusConflict
	case errors.Is(err, account.ErrNotImplemented), errors.Is(err, dataset.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, report.ErrFontUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respond finishes an action: JSON clients get the new state, browsers are
// redirected back to the current screen.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, st State, err error) {
	if err != nil {
		h.fail(w, r, &st, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, st)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, st *State, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}

	if wantsJSON(r) {
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
		writeJSON(w, status, errorResponse{Error: msg, State: st})
		return
	}

	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		h.addFlash(w, r, invalidLoginText)
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrNoDataset):
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case status < http.StatusInternalServerError:
		http.Error(w, err.Error(), status)
	default:
		http.Error(w, http.StatusText(status), status)
	}
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r.Context())
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, h.svc.Snapshot(r.Context(), sid))
		return
	}

	page, err := h.svc.Page(r.Context(), sid)
	if err != nil {
		status := statusFor(err)
		h.log.Error("failed to build page", zap.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}
	page.Flashes = h.takeFlashes(w, r)

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		h.log.Error("failed to render page", zap.String("view", string(page.State.View)), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.fail(w, r, nil, fmt.Errorf("decode login: %w", errBadRequest))
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}
	st, err := h.svc.Login(r.Context(), sessionID(r.Context()), req.Username, req.Password)
	h.respond(w, r, st, err)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Logout(r.Context(), sessionID(r.Context()))
	h.respond(w, r, st, nil)
}

type registerRequest struct {
	Username         string `json:"username"`
	Password         string `json:"password"`
	Role             string `json:"role"`
	VerificationCode string `json:"verification_code"`
	HospitalName     string `json:"hospital_name"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.fail(w, r, nil, fmt.Errorf("decode registration: %w", errBadRequest))
			return
		}
	} else {
		req = registerRequest{
			Username:         r.FormValue("username"),
			Password:         r.FormValue("password"),
			Role:             r.FormValue("role"),
			VerificationCode: r.FormValue("verification_code"),
			HospitalName:     r.FormValue("hospital_name"),
		}
	}
	form := account.NewRegisterForm()
	form.Username = req.Username
	form.Password = req.Password
	form.VerificationCode = req.VerificationCode
	form.HospitalName = req.HospitalName
	if req.Role != "" {
		form.Role = account.Role(req.Role)
	}

	st, err := h.svc.Register(r.Context(), sessionID(r.Context()), form)
	h.respond(w, r, st, err)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	form := dataset.UploadForm{}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.fail(w, r, nil, fmt.Errorf("parse upload: %w", errBadRequest))
		return
	}
	form.DatasetName = r.FormValue("dataset_name")
	form.Description = r.FormValue("description")
	if file, header, err := r.FormFile("file"); err == nil {
		form.FileName = header.Filename
		file.Close()
	}

	st, err := h.svc.Upload(r.Context(), sessionID(r.Context()), form)
	h.respond(w, r, st, err)
}

func (h *Handler) SelectDataset(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.SelectDataset(r.Context(), sessionID(r.Context()), chi.URLParam(r, "datasetID"))
	h.respond(w, r, st, err)
}

// The annotate screen submits its textarea with every navigation and lead
// button, so each of these actions carries the current draft.

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAnnotate(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	st, err := h.svc.Back(r.Context(), sessionID(r.Context()), req.Text)
	h.respond(w, r, st, err)
}

func (h *Handler) Previous(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAnnotate(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	st, err := h.svc.Previous(r.Context(), sessionID(r.Context()), req.Text)
	h.respond(w, r, st, err)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAnnotate(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	st, err := h.svc.Next(r.Context(), sessionID(r.Context()), req.Text)
	h.respond(w, r, st, err)
}

func (h *Handler) ToggleLead(w http.ResponseWriter, r *http.Request) {
	lead, err := strconv.Atoi(chi.URLParam(r, "lead"))
	if err != nil {
		h.fail(w, r, nil, fmt.Errorf("lead %q: %w", chi.URLParam(r, "lead"), errBadRequest))
		return
	}
	req, err := h.decodeAnnotate(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	st, err := h.svc.ToggleLead(r.Context(), sessionID(r.Context()), lead, req.Text)
	h.respond(w, r, st, err)
}

type annotateRequest struct {
	Text   *string `json:"text"`
	Status string  `json:"status"`
}

func (h *Handler) decodeAnnotate(r *http.Request) (annotateRequest, error) {
	var req annotateRequest
	if isJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("decode annotation: %w", errBadRequest)
		}
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("parse annotation form: %w", errBadRequest)
	}
	if _, ok := r.Form["text"]; ok {
		text := r.Form.Get("text")
		req.Text = &text
	}
	req.Status = r.Form.Get("status")
	return req, nil
}

func (h *Handler) SetDraft(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAnnotate(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	var text string
	if req.Text != nil {
		text = *req.Text
	}
	st, err := h.svc.SetDraft(r.Context(), sessionID(r.Context()), text)
	h.respond(w, r, st, err)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeAnnotate(r)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	st, err := h.svc.Annotate(r.Context(), sessionID(r.Context()), req.Text, req.Status)
	h.respond(w, r, st, err)
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Snapshot(r.Context(), sessionID(r.Context())))
}

func (h *Handler) Datasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Datasets(r.Context(), sessionID(r.Context()))
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) Annotations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Annotations(r.Context(), sessionID(r.Context()), r.URL.Query().Get("dataset"))
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	if entries == nil {
		entries = []annotation.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) LeadImage(w http.ResponseWriter, r *http.Request) {
	lead, err := strconv.Atoi(chi.URLParam(r, "lead"))
	if err != nil {
		h.fail(w, r, nil, fmt.Errorf("lead %q: %w", chi.URLParam(r, "lead"), errBadRequest))
		return
	}
	samples, err := h.svc.LeadSamples(r.Context(), sessionID(r.Context()),
		chi.URLParam(r, "datasetID"), chi.URLParam(r, "recordID"), lead)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	img, err := chart.LeadPNG(samples, chart.ImageWidth, chart.ImageHeight)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.CurrentUser(r.Context(), sessionID(r.Context()))
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	datasetID := chi.URLParam(r, "datasetID")
	pdf, err := h.reports.DatasetReport(r.Context(), user.Username, datasetID)
	if err != nil {
		h.fail(w, r, nil, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "annotations_"+datasetID+".pdf"))
	w.Write(pdf)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/", h.Index)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/register", h.Register)

		r.Post("/datasets/upload", h.Upload)
		r.Post("/datasets/{datasetID}/select", h.SelectDataset)
		r.Get("/datasets/{datasetID}/report.pdf", h.Report)
		r.Get("/datasets/{datasetID}/records/{recordID}/leads/{lead}.png", h.LeadImage)

		r.Route("/annotate", func(r chi.Router) {
			r.Post("/back", h.Back)
			r.Post("/previous", h.Previous)
			r.Post("/next", h.Next)
			r.Post("/leads/{lead}/toggle", h.ToggleLead)
			r.Post("/draft", h.SetDraft)
			r.Post("/submit", h.Submit)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", h.State)
			r.Get("/datasets", h.Datasets)
			r.Get("/annotations", h.Annotations)
		})
	})
}
