package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"realty-backend/internal/domain"
)

const (
	actionStart = "start"
	actionPause = "pause"
	actionStop  = "stop"
)

type manageSequenceRequest struct {
	ProfileID   string `json:"profileId" validate:"required,uuid"`
	ProfileType string `json:"profileType" validate:"required,oneof=buyer seller"`
	Action      string `json:"action" validate:"required,oneof=start pause stop"`
	SequenceID  string `json:"sequenceId" validate:"omitempty,uuid"`
}

type manageSequenceResponse struct {
	Success  bool   `json:"success"`
	Action   string `json:"action"`
	Affected *int64 `json:"affected,omitempty"`
}

type changeStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

type changeStageResponse struct {
	Success           bool                   `json:"success"`
	Stage             domain.Stage           `json:"stage"`
	MatchingSequences []domain.EmailSequence `json:"matching_sequences"`
}

type queueResponse struct {
	Entries []domain.ProfileEmailQueueEntry `json:"entries"`
}

type sequencesResponse struct {
	Sequences []domain.EmailSequence `json:"sequences"`
}

// authorizedProfile loads the profile and checks the caller's tenant. A
// profile in another organization is reported as not found.
func (h *Handler) authorizedProfile(w http.ResponseWriter, r *http.Request, ref domain.ProfileRef) (*domain.Profile, bool) {
	profile, err := h.pipeline.GetProfile(r.Context(), ref)
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if !canAccessOrganization(r.Context(), profile.OrganizationID) {
		writeErrorFrom(w, http.StatusNotFound, domain.ErrProfileNotFound)
		return nil, false
	}
	return profile, true
}

func profileRefFromPath(r *http.Request) (domain.ProfileRef, error) {
	vars := mux.Vars(r)
	profileType := domain.ProfileType(vars["profileType"])
	if !profileType.Valid() {
		return domain.ProfileRef{}, domain.ErrInvalidProfileType
	}
	id, err := uuid.Parse(vars["profileId"])
	if err != nil {
		return domain.ProfileRef{}, domain.ErrProfileNotFound
	}
	return domain.ProfileRef{ID: id, Type: profileType}, nil
}

// ManageProfileSequence starts, pauses or stops a profile's email sequence
func (h *Handler) ManageProfileSequence(w http.ResponseWriter, r *http.Request) {
	var req manageSequenceRequest
	if err := decodeJSON(w, r, &req, h.validate); err != nil {
		writeErrorFrom(w, http.StatusBadRequest, err)
		return
	}
	if req.Action == actionStart && req.SequenceID == "" {
		writeError(w, http.StatusBadRequest, "sequenceId is required to start a sequence")
		return
	}

	ref := domain.ProfileRef{ID: uuid.MustParse(req.ProfileID), Type: domain.ProfileType(req.ProfileType)}
	if _, ok := h.authorizedProfile(w, r, ref); !ok {
		return
	}

	resp := manageSequenceResponse{Success: true, Action: req.Action}
	switch req.Action {
	case actionStart:
		if err := h.pipeline.StartSequence(r.Context(), ref, uuid.MustParse(req.SequenceID)); err != nil {
			writeServiceError(w, err)
			return
		}
	case actionPause:
		paused, err := h.pipeline.PauseSequence(r.Context(), ref)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp.Affected = &paused
	case actionStop:
		removed, err := h.pipeline.StopSequence(r.Context(), ref)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp.Affected = &removed
	}

	writeJSON(w, http.StatusOK, resp)
}

// ChangeProfileStage moves a profile to a new pipeline stage
func (h *Handler) ChangeProfileStage(w http.ResponseWriter, r *http.Request) {
	ref, err := profileRefFromPath(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var req changeStageRequest
	if err := decodeJSON(w, r, &req, h.validate); err != nil {
		writeErrorFrom(w, http.StatusBadRequest, err)
		return
	}
	stage := domain.Stage(req.Stage)
	if !domain.ValidStage(ref.Type, stage) {
		writeServiceError(w, domain.ErrInvalidStage)
		return
	}

	if _, ok := h.authorizedProfile(w, r, ref); !ok {
		return
	}

	sequences, err := h.pipeline.ChangeStage(r.Context(), ref, stage)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, changeStageResponse{
		Success:           true,
		Stage:             stage,
		MatchingSequences: sequences,
	})
}

func (h *Handler) ListProfileQueue(w http.ResponseWriter, r *http.Request) {
	ref, err := profileRefFromPath(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if _, ok := h.authorizedProfile(w, r, ref); !ok {
		return
	}

	entries, err := h.pipeline.ListQueue(r.Context(), ref)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queueResponse{Entries: entries})
}

// ListSequences lists the active sequences an organization triggers on a stage
func (h *Handler) ListSequences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orgID, err := uuid.Parse(q.Get("organization_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "organization_id must be a valid UUID")
		return
	}
	profileType := domain.ProfileType(q.Get("profile_type"))
	if !profileType.Valid() {
		writeServiceError(w, domain.ErrInvalidProfileType)
		return
	}
	stage := domain.Stage(q.Get("trigger_stage"))
	if !domain.ValidStage(profileType, stage) {
		writeServiceError(w, domain.ErrInvalidStage)
		return
	}
	if !canAccessOrganization(r.Context(), orgID) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	sequences, err := h.pipeline.MatchingSequences(r.Context(), orgID, profileType, stage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sequencesResponse{Sequences: sequences})
}
