package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/devlens/auth"
	"github.com/hazyhaar/devlens/kit"
	"github.com/hazyhaar/devlens/shield"
)

// Handler returns the complete API: the shield middleware stack followed by
// the routes of RegisterHTTP.
func (svc *Service) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack(shield.StackConfig{
		MaxBodyBytes:   svc.cfg.MaxBodyBytes,
		AllowedOrigins: svc.cfg.AllowedOrigins,
	}) {
		r.Use(mw)
	}
	svc.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the dashboard routes on r.
func (svc *Service) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(svc.cfg.Secret, svc))

		r.Post("/api/auth/register", svc.handleRegister)
		r.Post("/api/auth/login", svc.handleLogin)
		r.Post("/api/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
			auth.ClearSessionCookie(w)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Route("/api/feedback", func(r chi.Router) {
				r.With(svc.limiter.Middleware).Post("/", svc.handleSubmit)

				r.Group(func(r chi.Router) {
					r.Use(userKeyOnly)
					r.Get("/", svc.handleListFeedback)
					r.Get("/report.md", svc.handleReport)
					r.Get("/{id}", svc.handleGetFeedback)
					r.Put("/{id}", svc.handleUpdateFeedback)
					r.Delete("/{id}", svc.handleDeleteFeedback)
					r.Get("/{id}/screenshot", svc.handleScreenshot)
					r.Get("/{id}/screenshot.pdf", svc.handleScreenshotPDF)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(userKeyOnly)

				r.Get("/api/auth/me", svc.handleMe)
				r.Post("/api/auth/key", svc.handleRotateKey)
				r.Get("/api/extension/config", svc.handleExtensionConfig)

				r.Route("/api/projects", func(r chi.Router) {
					r.Get("/", svc.handleListProjects)
					r.Post("/", svc.handleCreateProject)
					r.Get("/warnings", svc.handleRoutingWarnings)
					r.Get("/match", svc.handleMatch)
					r.Get("/{id}", svc.handleGetProject)
					r.Put("/{id}", svc.handleUpdateProject)
					r.Delete("/{id}", svc.handleDeleteProject)
				})
			})
		})
	})
}

// userKeyOnly rejects callers authenticated with a project key: those keys
// ship inside the extension and may only submit.
func userKeyOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if kit.GetProjectID(r.Context()) != "" {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Project keys can only submit feedback"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- Auth ---

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (svc *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		svc.fail(w, r, err, "")
		return
	}
	u, err := svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	svc.startSession(w, r, u)
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (svc *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		svc.fail(w, r, err, "")
		return
	}
	u, err := svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	svc.startSession(w, r, u)
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// startSession sets the session cookie when sessions are enabled.
func (svc *Service) startSession(w http.ResponseWriter, r *http.Request, u *User) {
	if len(svc.cfg.Secret) == 0 {
		return
	}
	token, err := auth.GenerateToken(svc.cfg.Secret, &auth.Claims{UserID: u.ID, Email: u.Email, Tier: u.Tier}, svc.cfg.SessionTTL)
	if err != nil {
		shield.GetLogger(r.Context()).Error("dashboard: session token", "error", err)
		return
	}
	secure := svc.cfg.SecureCookies || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	auth.SetSessionCookie(w, token, svc.cfg.SessionTTL, secure)
}

func (svc *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := svc.Me(r.Context(), kit.GetUserID(r.Context()))
	if err != nil {
		svc.fail(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (svc *Service) handleRotateKey(w http.ResponseWriter, r *http.Request) {
	u, err := svc.RotateUserKey(r.Context(), kit.GetUserID(r.Context()))
	if err != nil {
		svc.fail(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (svc *Service) handleExtensionConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := svc.ExtensionConfig(r.Context(), kit.GetUserID(r.Context()))
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// --- Projects ---

func (svc *Service) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListProjects(r.Context(), kit.GetUserID(r.Context()))
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": list})
}

func (svc *Service) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectInput
	if err := decodeJSON(r, &req); err != nil {
		svc.fail(w, r, err, "")
		return
	}
	p, err := svc.CreateProject(r.Context(), kit.GetUserID(r.Context()), req)
	if err != nil {
		svc.fail(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": p})
}

func (svc *Service) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := svc.GetProject(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		svc.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (svc *Service) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectUpdate
	if err := decodeJSON(r, &req); err != nil {
		svc.fail(w, r, err, "")
		return
	}
	p, err := svc.UpdateProject(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		svc.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (svc *Service) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := svc.DeleteProject(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		svc.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (svc *Service) handleRoutingWarnings(w http.ResponseWriter, r *http.Request) {
	warnings, err := svc.RoutingWarnings(r.Context(), kit.GetUserID(r.Context()))
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	if warnings == nil {
		writeJSON(w, http.StatusOK, map[string]any{"warnings": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": warnings})
}

func (svc *Service) handleMatch(w http.ResponseWriter, r *http.Request) {
	res, ok, err := svc.MatchProject(r.Context(), kit.GetUserID(r.Context()), r.URL.Query().Get("url"))
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"matched": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matched": true, "match": res})
}

// --- Feedback ---

func (svc *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		svc.fail(w, r, err, "")
		return
	}
	ctx := r.Context()
	f, err := svc.SubmitFeedback(ctx, kit.GetUserID(ctx), kit.GetProjectID(ctx), &req)
	if err != nil {
		svc.fail(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"feedback": f})
}

func listOptions(r *http.Request) ListOptions {
	q := r.URL.Query()
	return ListOptions{
		ProjectID: q.Get("projectId"),
		Status:    q.Get("status"),
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
	}
}

func (svc *Service) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListFeedback(r.Context(), kit.GetUserID(r.Context()), listOptions(r))
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedbacks": list})
}

func (svc *Service) handleGetFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := svc.GetFeedback(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		svc.fail(w, r, err, "Feedback not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": f})
}

func (svc *Service) handleUpdateFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackUpdate
	if err := decodeJSON(r, &req); err != nil {
		svc.fail(w, r, err, "")
		return
	}
	f, err := svc.UpdateFeedback(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		svc.fail(w, r, err, "Feedback not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": f})
}

func (svc *Service) handleDeleteFeedback(w http.ResponseWriter, r *http.Request) {
	if err := svc.DeleteFeedback(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		svc.fail(w, r, err, "Feedback not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (svc *Service) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	ctype, data, err := svc.Screenshot(r.Context(), kit.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		svc.fail(w, r, err, "Screenshot not found")
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (svc *Service) handleScreenshotPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := svc.ScreenshotPDF(r.Context(), kit.GetUserID(r.Context()), id)
	if err != nil {
		svc.fail(w, r, err, "Screenshot not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="feedback-%s.pdf"`, id))
	w.Write(data)
}

func (svc *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	md, err := svc.Report(r.Context(), kit.GetUserID(r.Context()), listOptions(r))
	if err != nil {
		svc.fail(w, r, err, "")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(md))
}

// --- helpers ---

// fail maps a Service error to its HTTP answer. notFound is the message
// used for ErrNotFound.
func (svc *Service) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var (
		limit  *LimitError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
	case errors.As(err, &limit):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": limit.Error(), "limit": limit.Limit})
	case errors.Is(err, ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request data", "details": err.Error()})
	case errors.Is(err, ErrNotFound):
		if notFound == "" {
			notFound = "Not found"
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound})
	case errors.Is(err, ErrNoProject):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "No project matches this page URL"})
	case errors.Is(err, ErrInactive):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Project is inactive"})
	case errors.Is(err, ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Email already registered"})
	case errors.Is(err, ErrBadCredentials):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid email or password"})
	case errors.Is(err, ErrRegistration):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Registration is disabled"})
	default:
		shield.GetLogger(r.Context()).Error("dashboard: request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
