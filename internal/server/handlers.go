package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/contextd/internal/assembler"
	"github.com/thebtf/contextd/internal/db"
	"github.com/thebtf/contextd/pkg/models"
)

// defaultMaxContextTokens bounds thread history when the caller does not
// pass a budget of its own.
const defaultMaxContextTokens = 8000

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).String(),
	})
}

func (s *Service) handleAssemble(w http.ResponseWriter, r *http.Request) {
	var req assembler.TurnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.MaxContextTokens <= 0 {
		req.MaxContextTokens = defaultMaxContextTokens
	}

	result, err := s.asm.Assemble(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleAfterTurn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ThreadID    int64   `json:"thread_id"`
		UserID      int64   `json:"user_id"`
		CategoryIDs []int64 `json:"category_ids,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.asm.AfterTurn(r.Context(), req.ThreadID, req.UserID, req.CategoryIDs)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processed"})
}

func (s *Service) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      int64   `json:"user_id"`
		Title       string  `json:"title"`
		CategoryIDs []int64 `json:"category_ids,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	thread, err := s.threads.CreateThread(r.Context(), req.UserID, req.Title, req.CategoryIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, thread)
}

func (s *Service) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	thread, err := s.threads.GetThread(r.Context(), id)
	if errors.Is(err, db.ErrThreadNotFound) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Service) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Role      string `json:"role"`
		Content   string `json:"content"`
		Citations string `json:"citations,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem, models.RoleTool:
	default:
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if _, err := s.threads.GetThread(r.Context(), id); errors.Is(err, db.ErrThreadNotFound) {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	cost := s.estimator.EstimateMessages([]models.Message{{Role: req.Role, Content: req.Content}})
	msg, err := s.threads.AppendMessage(r.Context(), id, req.Role, req.Content, req.Citations, cost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Service) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	msgs, err := s.threads.GetMessagesForThread(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Service) handleGetSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	summaries, err := s.threads.GetSummaries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summaries": summaries})
}

func (s *Service) handleGetArchived(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	archived, err := s.threads.GetArchivedMessages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"archived": archived})
}

func (s *Service) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.skills.ListSkills(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"skills": skills})
}

func (s *Service) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var skill models.Skill
	if !decodeBody(w, r, &skill) {
		return
	}
	if skill.Name == "" || skill.Prompt == "" {
		writeError(w, http.StatusBadRequest, "name and prompt are required")
		return
	}
	switch skill.TriggerKind {
	case models.TriggerAlways, models.TriggerCategory, models.TriggerKeyword:
	default:
		writeError(w, http.StatusBadRequest, "invalid trigger kind")
		return
	}

	created, err := s.skills.CreateSkill(r.Context(), &skill)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Service) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	skill, err := s.skills.GetSkill(r.Context(), id)
	if errors.Is(err, db.ErrSkillNotFound) {
		writeError(w, http.StatusNotFound, "skill not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Service) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var skill models.Skill
	if !decodeBody(w, r, &skill) {
		return
	}
	skill.ID = id

	err := s.skills.UpdateSkill(r.Context(), &skill)
	if errors.Is(err, db.ErrSkillNotFound) {
		writeError(w, http.StatusNotFound, "skill not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &skill)
}

func (s *Service) handleSetSkillActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.skills.SetActive(r.Context(), id, req.Active)
	if errors.Is(err, db.ErrSkillNotFound) {
		writeError(w, http.StatusNotFound, "skill not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "active": req.Active})
}

func (s *Service) handleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.skills.DeleteSkill(r.Context(), id)
	if errors.Is(err, db.ErrCoreSkill) {
		writeError(w, http.StatusConflict, "core skills cannot be deleted")
		return
	}
	if errors.Is(err, db.ErrSkillNotFound) {
		writeError(w, http.StatusNotFound, "skill not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleGetSkillsSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetSkillsSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handlePutSkillsSettings(w http.ResponseWriter, r *http.Request) {
	settings := models.DefaultSkillsSettings()
	if !decodeBody(w, r, &settings) {
		return
	}
	if settings.MaxTotalTokens < 0 {
		writeError(w, http.StatusBadRequest, "max_total_tokens must not be negative")
		return
	}
	if err := s.settings.PutSkillsSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleGetSummarizationSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetSummarizationSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handlePutSummarizationSettings(w http.ResponseWriter, r *http.Request) {
	settings := models.DefaultSummarizationSettings()
	if !decodeBody(w, r, &settings) {
		return
	}
	if settings.TokenThreshold < 0 || settings.KeepRecentMessages < 0 {
		writeError(w, http.StatusBadRequest, "thresholds must not be negative")
		return
	}
	if err := s.settings.PutSummarizationSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleGetMemorySettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetMemorySettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handlePutMemorySettings(w http.ResponseWriter, r *http.Request) {
	settings := models.DefaultMemorySettings()
	if !decodeBody(w, r, &settings) {
		return
	}
	if settings.MaxFactsPerCategory < 0 || settings.ExtractionThreshold < 0 {
		writeError(w, http.StatusBadRequest, "limits must not be negative")
		return
	}
	if err := s.settings.PutMemorySettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Service) handleGetMemories(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var categoryIDs []int64
	for _, raw := range r.URL.Query()["category_id"] {
		catID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		categoryIDs = append(categoryIDs, catID)
	}

	memories, err := s.memories.GetMemories(r.Context(), id, categoryIDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"memories": memories})
}

func (s *Service) handleDeleteMemories(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	// Without a category_id the whole user is forgotten; with one, just
	// that scope. category_id=global deletes the global row.
	raw := r.URL.Query().Get("category_id")
	switch raw {
	case "":
		if err := s.memories.DeleteAllMemories(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case "global":
		if err := s.memories.DeleteMemory(r.Context(), id, nil); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		catID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid category_id")
			return
		}
		if err := s.memories.DeleteMemory(r.Context(), id, &catID); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
