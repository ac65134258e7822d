package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkerhoas/outlook-relay/timesheet"
	"github.com/rs/zerolog/log"
)

type createOrLinkRequest struct {
	Subject   string   `json:"subject"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Attendees []string `json:"attendees"`
	TimeID    string   `json:"timeId,omitempty"`
}

type createOrLinkResponse struct {
	TimeID  string         `json:"timeId"`
	Created bool           `json:"created"`
	Details map[string]any `json:"details,omitempty"`
}

// CreateOrLinkHandler creates a downstream time entry for the calling user,
// or short-circuits when the caller already holds a linkage. Runs behind
// RequireAuth, so the inbound token in the context has passed full
// validation before the on-behalf-of exchange uses it as an assertion.
func (s *Server) CreateOrLinkHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, "invalid_request", "Failed to parse request body", http.StatusBadRequest)
			return
		}

		// Already linked: idempotent short-circuit, no downstream call
		if req.TimeID != "" {
			writeJSON(w, http.StatusOK, createOrLinkResponse{
				TimeID:  req.TimeID,
				Created: false,
			})
			return
		}

		inboundToken, _ := r.Context().Value(ContextKeyInboundToken).(string)

		oboToken, err := s.authority.AcquireOnBehalfOf(r.Context(), inboundToken, []string{s.config.GetTimesheetScope()})
		if err != nil {
			log.Error().Err(err).Msg("On-behalf-of exchange failed")
			writeJSONError(w, "obo_exchange_failed", "Could not acquire downstream token", http.StatusInternalServerError)
			return
		}

		created, err := s.timesheet.CreateEntry(r.Context(), oboToken.AccessToken, timesheet.Entry{
			Subject:   req.Subject,
			Start:     req.Start,
			End:       req.End,
			Attendees: req.Attendees,
		})
		if err != nil {
			log.Error().Err(err).Msg("Downstream entry creation failed")
			writeJSONError(w, "downstream_api_error", err.Error(), http.StatusInternalServerError)
			return
		}

		resp := createOrLinkResponse{
			TimeID:  created.ID,
			Created: true,
			Details: created.Details,
		}

		// The downstream API sometimes omits an identifier. The synthesized
		// one is a degraded placeholder, not authoritative; flag it so
		// integrations treat it as advisory only.
		if resp.TimeID == "" {
			resp.TimeID = fmt.Sprintf("local-%d", time.Now().Unix())
			if resp.Details == nil {
				resp.Details = map[string]any{}
			}
			resp.Details["provisional"] = true
			log.Warn().
				Str("time_id", resp.TimeID).
				Msg("Downstream response had no entry id; returning provisional identifier")
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
