package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Vovarama1992/meta-ai-router/internal/ai"
	"github.com/Vovarama1992/meta-ai-router/internal/router"
)

const sessionCookie = "session_id"

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type classificationView struct {
	Category    string   `json:"category"`
	Confidence  float64  `json:"confidence"`
	Keywords    []string `json:"keyword_matches"`
	Rule        string   `json:"rule"`
	Explanation string   `json:"explanation"`
}

// HandleChat: one routed exchange, appended to the session on success.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	id := h.sessionID(w, r)

	reply, err := h.svc.Chat(r.Context(), id, req.Prompt)
	if err != nil {
		h.chatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": reply.Message,
		"classification": classificationView{
			Category:    string(reply.Classification.Category),
			Confidence:  reply.Classification.Confidence,
			Keywords:    reply.Classification.Keywords,
			Rule:        reply.Classification.Rule,
			Explanation: reply.Explanation,
		},
		"session_stats": reply.Stats,
	})
}

func (h *Handler) chatError(w http.ResponseWriter, err error) {
	var pf *ProviderFailure
	switch {
	case errors.Is(err, ErrEmptyPrompt):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": display(err)})
	case errors.As(err, &pf):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success":  false,
			"error":    pf.Error(),
			"provider": pf.Provider.ID,
		})
	case errors.Is(err, router.ErrNoProviders):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": display(err)})
	default:
		log.Printf("[http] chat failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "Chat processing failed: " + err.Error()})
	}
}

// HandleChatStream writes the answer as plain text while it arrives. Failures
// end the body with "[ERROR] <message>".
func (h *Handler) HandleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	id := h.sessionID(w, r)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	rc := http.NewResponseController(w)

	_, err := h.svc.ChatStream(r.Context(), id, req.Prompt, func(text string) error {
		if _, err := w.Write([]byte(text)); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		return nil
	})
	if err == nil {
		return
	}
	if r.Context().Err() != nil {
		return
	}

	if errors.Is(err, ErrEmptyPrompt) {
		w.WriteHeader(http.StatusBadRequest)
	}
	_, _ = w.Write([]byte(ai.ErrorSentinel + " " + display(err)))
	_ = rc.Flush()
}

func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePrompt(w, r)
	if !ok {
		return
	}

	c, explanation := h.svc.Classify(req.Prompt)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"category":        c.Category,
		"confidence":      c.Confidence,
		"keyword_matches": c.Keywords,
		"rule":            c.Rule,
		"explanation":     explanation,
	})
}

func (h *Handler) HandleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"providers": h.svc.Providers(),
	})
}

// HandleRoute explains which provider would answer, without calling it.
func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePrompt(w, r)
	if !ok {
		return
	}

	decision, c, err := h.svc.Decide(req.Prompt)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": display(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"classification": c,
		"decision":       decision,
	})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Clear(r.Context(), h.sessionID(w, r))
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_stats": stats})
}

func (h *Handler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	msg, stats, err := h.svc.Undo(r.Context(), h.sessionID(w, r))
	h.stepResult(w, msg, stats, err)
}

func (h *Handler) HandleRedo(w http.ResponseWriter, r *http.Request) {
	msg, stats, err := h.svc.Redo(r.Context(), h.sessionID(w, r))
	h.stepResult(w, msg, stats, err)
}

func (h *Handler) stepResult(w http.ResponseWriter, msg Message, stats Stats, err error) {
	if IsPrecondition(err) {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": display(err), "session_stats": stats})
		return
	}
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg, "session_stats": stats})
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	msgs, stats, err := h.svc.History(r.Context(), h.sessionID(w, r))
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs, "session_stats": stats})
}

func (h *Handler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	pending, stats, err := h.svc.Pending(r.Context(), h.sessionID(w, r))
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pending_prompts": pending, "session_stats": stats})
}

func (h *Handler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePrompt(w, r)
	if !ok {
		return
	}

	stats, err := h.svc.Enqueue(r.Context(), h.sessionID(w, r), req.Prompt)
	if errors.Is(err, ErrEmptyPrompt) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "No prompt provided", "session_stats": stats})
		return
	}
	if err != nil {
		h.internal(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session_stats": stats})
}

func (h *Handler) HandleProcessQueue(w http.ResponseWriter, r *http.Request) {
	results, stats, err := h.svc.ProcessQueue(r.Context(), h.sessionID(w, r))
	if err != nil {
		h.internal(w, err)
		return
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"processed":     len(results),
		"failed":        failed,
		"results":       results,
		"session_stats": stats,
	})
}

func (h *Handler) HandleProcessNext(w http.ResponseWriter, r *http.Request) {
	res, stats, err := h.svc.ProcessNext(r.Context(), h.sessionID(w, r))
	if IsPrecondition(err) {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "error": display(err), "session_stats": stats})
		return
	}
	if err != nil {
		h.internal(w, err)
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "prompt": res.Prompt, "error": res.Error, "session_stats": stats})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message, "session_stats": stats})
}

func (h *Handler) internal(w http.ResponseWriter, err error) {
	log.Printf("[http] %v", err)
	http.Error(w, "processing error", http.StatusInternalServerError)
}

// sessionID reads the session cookie, issuing a new one when it is missing
// or not a UUID.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func decodePrompt(w http.ResponseWriter, r *http.Request) (promptRequest, bool) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, false
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] encode response: %v", err)
	}
}

// display turns an error into the sentence shown to users.
func display(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if r == utf8.RuneError {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}
