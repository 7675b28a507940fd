package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/airpiano/internal/store"
)

// VoiceHandler handles HTTP requests for voice bank resources.
type VoiceHandler struct {
	store *store.Store
	notes int
}

// NewVoiceHandler creates a VoiceHandler. notes bounds the note indexes a
// bank may assign; 0 disables the check.
func NewVoiceHandler(s *store.Store, notes int) *VoiceHandler {
	return &VoiceHandler{store: s, notes: notes}
}

// Routes returns the voice bank routes, to be mounted at /api/voices.
func (h *VoiceHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{name}", h.get)
	r.Delete("/{name}", h.delete)
	r.Put("/{name}/samples", h.setSamples)
	r.Post("/{name}/activate", h.activate)
	return r
}

// Request and response types

type createBankRequest struct {
	Name        string         `json:"name"`
	Engine      string         `json:"engine"`
	Description string         `json:"description"`
	Samples     map[int]string `json:"samples"`
}

type bankResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Engine      string         `json:"engine"`
	Description string         `json:"description"`
	Samples     map[int]string `json:"samples,omitempty"`
	Active      bool           `json:"active"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type listBanksResponse struct {
	Voices []bankResponse `json:"voices"`
	Active string         `json:"active,omitempty"`
}

func toBankResponse(b *store.Bank, active string) bankResponse {
	return bankResponse{
		ID:          b.ID,
		Name:        b.Name,
		Engine:      b.Engine,
		Description: b.Description,
		Samples:     b.Samples,
		Active:      b.Name == active,
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

func (h *VoiceHandler) activeBank() string {
	name, err := h.store.Settings().Get(store.SettingActiveBank)
	if err != nil {
		return ""
	}
	return name
}

func (h *VoiceHandler) validSamples(samples map[int]string) error {
	for note, path := range samples {
		if note < 0 || (h.notes > 0 && note >= h.notes) {
			return fmt.Errorf("note %d out of range", note)
		}
		if path == "" {
			return fmt.Errorf("note %d has no path", note)
		}
	}
	return nil
}

// list handles GET /api/voices and returns every bank without samples.
func (h *VoiceHandler) list(w http.ResponseWriter, r *http.Request) {
	banks, err := h.store.Banks().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list voice banks")
		return
	}

	active := h.activeBank()
	response := listBanksResponse{
		Voices: make([]bankResponse, 0, len(banks)),
		Active: active,
	}
	for _, b := range banks {
		response.Voices = append(response.Voices, toBankResponse(b, active))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/voices/{name}.
func (h *VoiceHandler) get(w http.ResponseWriter, r *http.Request) {
	bank, ok := h.lookup(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBankResponse(bank, h.activeBank()))
}

// create handles POST /api/voices.
func (h *VoiceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	engine := req.Engine
	if engine == "" {
		engine = store.BankEngineMIDI
	}
	if engine != store.BankEngineMIDI && engine != store.BankEngineSample {
		writeError(w, http.StatusBadRequest, "Invalid engine")
		return
	}

	if err := h.validSamples(req.Samples); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.store.Banks().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Voice bank already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "Failed to create voice bank")
		return
	}

	bank := &store.Bank{
		Name:        req.Name,
		Engine:      engine,
		Description: req.Description,
		Samples:     req.Samples,
	}
	if err := h.store.Banks().Create(bank); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create voice bank")
		return
	}

	writeJSON(w, http.StatusCreated, toBankResponse(bank, h.activeBank()))
}

// setSamples handles PUT /api/voices/{name}/samples and replaces the bank's
// note assignments.
func (h *VoiceHandler) setSamples(w http.ResponseWriter, r *http.Request) {
	bank, ok := h.lookup(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	var samples map[int]string
	if err := json.NewDecoder(r.Body).Decode(&samples); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validSamples(samples); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Banks().SetSamples(bank.ID, samples); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update samples")
		return
	}

	updated, ok := h.lookup(w, bank.Name)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBankResponse(updated, h.activeBank()))
}

// activate handles POST /api/voices/{name}/activate. The bank is used from
// the next session on.
func (h *VoiceHandler) activate(w http.ResponseWriter, r *http.Request) {
	bank, ok := h.lookup(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	if err := h.store.Settings().Set(store.SettingActiveBank, bank.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to activate voice bank")
		return
	}

	writeJSON(w, http.StatusOK, toBankResponse(bank, bank.Name))
}

// delete handles DELETE /api/voices/{name}.
func (h *VoiceHandler) delete(w http.ResponseWriter, r *http.Request) {
	bank, ok := h.lookup(w, chi.URLParam(r, "name"))
	if !ok {
		return
	}

	if err := h.store.Banks().Delete(bank.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Voice bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete voice bank")
		return
	}

	if h.activeBank() == bank.Name {
		h.store.Settings().Delete(store.SettingActiveBank)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *VoiceHandler) lookup(w http.ResponseWriter, name string) (*store.Bank, bool) {
	bank, err := h.store.Banks().GetByName(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Voice bank not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get voice bank")
		return nil, false
	}
	return bank, true
}
