package http

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"realty-backend/internal/service"
)

// Handler serves the HTTP API
type Handler struct {
	lifecycle service.LifecycleService
	pipeline  service.PipelineService
	validate  *validator.Validate
	now       func() time.Time
}

func NewHandler(lifecycle service.LifecycleService, pipeline service.PipelineService) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		pipeline:  pipeline,
		validate:  validator.New(),
		now:       time.Now,
	}
}

// NewRouter registers every route. Route names key the security levels in config.RouteSecurityConfig.
func NewRouter(h *Handler, auth *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()
	r.Use(auth.Middleware)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet).Name("healthz")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/cron/account-lifecycle", h.RunAccountLifecycle).Methods(http.MethodPost).Name("account-lifecycle")
	api.HandleFunc("/profile-sequences", h.ManageProfileSequence).Methods(http.MethodPost).Name("manage-profile-sequence")
	api.HandleFunc("/profiles/{profileType}/{profileId}/stage", h.ChangeProfileStage).Methods(http.MethodPatch).Name("change-profile-stage")
	api.HandleFunc("/profiles/{profileType}/{profileId}/queue", h.ListProfileQueue).Methods(http.MethodGet).Name("list-profile-queue")
	api.HandleFunc("/sequences", h.ListSequences).Methods(http.MethodGet).Name("list-sequences")
	api.HandleFunc("/webhooks/email-reply", h.EmailReplyWebhook).Methods(http.MethodPost).Name("email-reply-webhook")

	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
