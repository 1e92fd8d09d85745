package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/convo-recap/internal/db"
	"github.com/jonathan/convo-recap/internal/storage"
	"github.com/jonathan/convo-recap/internal/types"
)

// processRequest is the body of POST /process.
type processRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	AccountID      string `json:"account_id" validate:"required"`
	EmailID        string `json:"email_id" validate:"required,email"`
}

// handleProcess accepts a conversation for processing. Every submission
// starts a fresh run, even for conversations processed before.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			field := verrs[0]
			vErr := &ErrValidation{Field: field.Field(), Message: fmt.Sprintf("failed on %q", field.Tag())}
			s.errorResponse(w, HTTPStatus(vErr), vErr.Error())
			return
		}
		s.errorResponse(w, http.StatusBadRequest, "invalid request")
		return
	}

	run, err := s.pipeline.StartRun(r.Context(), db.RunInput{
		ConversationID: req.ConversationID,
		AccountID:      req.AccountID,
		EmailID:        req.EmailID,
	})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to start processing")
		return
	}

	s.jsonResponse(w, http.StatusAccepted, run)
}

// handleStatus returns the current state of one processing run.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	processingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		vErr := &ErrValidation{Field: "id", Message: "must be a UUID"}
		s.errorResponse(w, HTTPStatus(vErr), vErr.Error())
		return
	}

	run, err := s.runs.GetRun(r.Context(), processingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		nfErr := &ErrRunNotFound{ProcessingID: processingID}
		s.errorResponse(w, HTTPStatus(nfErr), nfErr.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, run)
}

// handleAuditTrail returns the append-only audit events of a run.
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	processingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		vErr := &ErrValidation{Field: "id", Message: "must be a UUID"}
		s.errorResponse(w, HTTPStatus(vErr), vErr.Error())
		return
	}

	run, err := s.runs.GetRun(r.Context(), processingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		nfErr := &ErrRunNotFound{ProcessingID: processingID}
		s.errorResponse(w, HTTPStatus(nfErr), nfErr.Error())
		return
	}

	events, err := s.runs.ListAuditEvents(r.Context(), processingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load audit trail")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"processing_id": processingID,
		"events":        events,
	})
}

// handleCancel requests cooperative cancellation of an in-flight run.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	processingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		vErr := &ErrValidation{Field: "id", Message: "must be a UUID"}
		s.errorResponse(w, HTTPStatus(vErr), vErr.Error())
		return
	}

	if err := s.pipeline.Cancel(processingID); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"processing_id": processingID.String(),
		"status":        "cancellation_requested",
	})
}

// handleDownload redeems a single-use token and streams the artifact. Every
// failed redemption gets the same 404 regardless of why the token is dead.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	grant, err := s.redeemer.Redeem(r.Context(), r.PathValue("token"))
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), "invalid or expired download link")
		return
	}

	data, err := s.blobs.Get(grant.StoragePath)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}

	filename := fmt.Sprintf("%s.%s", grant.ConversationID, grant.FileType.Ext())
	w.Header().Set("Content-Type", grant.FileType.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleArtifact serves an artifact through a presigned link. Unlike
// /download these links are signed rather than single-use, so failed
// verification is a 403, not a 404.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	key, err := s.links.VerifyLink(r.URL.RequestURI())
	if err != nil {
		s.errorResponse(w, http.StatusForbidden, "invalid or expired artifact link")
		return
	}

	data, err := s.blobs.Get(key)
	if err != nil {
		var nf *storage.NotFoundError
		if errors.As(err, &nf) {
			s.errorResponse(w, http.StatusNotFound, "artifact not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}

	w.Header().Set("Content-Type", artifactContentType(key))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func artifactContentType(key string) string {
	for _, ft := range []types.FileType{types.FileTypeTranscript, types.FileTypeAudio, types.FileTypeReport} {
		if strings.HasSuffix(key, "."+ft.Ext()) {
			return ft.ContentType()
		}
	}
	return "application/octet-stream"
}

// handleGetConversation returns the latest run for a conversation.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := r.PathValue("conversation_id")

	run, err := s.runs.GetLatestByConversationID(r.Context(), conversationID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if run == nil {
		nfErr := &ErrConversationNotFound{ConversationID: conversationID}
		s.errorResponse(w, HTTPStatus(nfErr), nfErr.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, run)
}

// handleListByAccount lists the latest run per conversation for an account.
func (s *Server) handleListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("account_id")

	runs, err := s.runs.ListLatestByAccount(r.Context(), accountID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"account_id":    accountID,
		"conversations": runs,
		"count":         len(runs),
	})
}

// handleListByDate lists the latest run per conversation created on a given
// day. Defaults to today (UTC) when no date is supplied.
func (s *Server) handleListByDate(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			vErr := &ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
			s.errorResponse(w, HTTPStatus(vErr), vErr.Error())
			return
		}
		day = parsed
	}

	runs, err := s.runs.ListLatestByDate(r.Context(), day)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"date":          day.Format("2006-01-02"),
		"conversations": runs,
		"count":         len(runs),
	})
}
