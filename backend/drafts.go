package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roomiematch/roomiematch/backend/store"
)

const maxDraftBytes = 64 << 10

func draftForm(w http.ResponseWriter, r *http.Request) (string, bool) {
	form := chi.URLParam(r, "form")
	if !store.ValidDraftForm(form) {
		writeErrorDetails(w, http.StatusBadRequest, "invalid_form", "Unknown draft form",
			map[string]any{"forms": []string{store.DraftRegistration, store.DraftOnboarding}})
		return "", false
	}
	return form, true
}

func getDraftHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := draftForm(w, r)
		if !ok {
			return
		}
		data, err := a.drafts.Load(r.Context(), currentUserID(r), form)
		if errors.Is(err, store.ErrNotFound) {
			writeErrorDetails(w, http.StatusNotFound, "draft_not_found", "No saved draft", nil)
			return
		} else if err != nil {
			a.serverError(w, r, "load draft", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"form": form,
			"data": json.RawMessage(data),
		})
	}
}

func saveDraftHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := draftForm(w, r)
		if !ok {
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDraftBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeErrorDetails(w, http.StatusRequestEntityTooLarge, "draft_too_large", "Draft exceeds 64 KiB", nil)
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
		if !json.Valid(data) {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if err := a.drafts.Save(r.Context(), currentUserID(r), form, data, a.cfg.DraftTTL); err != nil {
			a.serverError(w, r, "save draft", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":          "Draft saved",
			"form":             form,
			"expiresInSeconds": int(a.cfg.DraftTTL.Seconds()),
		})
	}
}

func deleteDraftHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := draftForm(w, r)
		if !ok {
			return
		}
		if err := a.drafts.Clear(r.Context(), currentUserID(r), form); err != nil {
			a.serverError(w, r, "clear draft", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
