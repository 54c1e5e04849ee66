package handlers

import (
	"errors"
	"net/http"

	"github.com/academyhq/tournament-core/services"
)

type SessionHandler struct {
	scheduleService services.ScheduleService
}

func NewSessionHandler(scheduleService services.ScheduleService) *SessionHandler {
	return &SessionHandler{scheduleService: scheduleService}
}

func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	summary, err := h.scheduleService.GenerateSessions(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusCreated
	if summary.AlreadyGenerated {
		status = http.StatusOK
	}
	if err := writeJSON(w, status, summary, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	sessions, err := h.scheduleService.ListSessions(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"sessions": sessions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	sessionID, err := idParam(r, "sessionID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		WinnerEnrollmentID int     `json:"winner_enrollment_id"`
		Score              *string `json:"score,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.WinnerEnrollmentID <= 0 {
		badRequestResponse(w, r, errors.New("winner_enrollment_id is required"))
		return
	}

	session, err := h.scheduleService.RecordResult(r.Context(), sessionID, input.WinnerEnrollmentID, input.Score)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"session": session}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SessionHandler) Standings(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.scheduleService.Standings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
