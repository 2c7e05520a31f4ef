package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/AloysioLvy/radar-intake/internal/conversation"
	"github.com/AloysioLvy/radar-intake/internal/dialogue"
	"github.com/AloysioLvy/radar-intake/internal/ingest"
	"github.com/AloysioLvy/radar-intake/internal/processor"
)

const maxBodyBytes = 1 << 20

// chatRequest is the POST /api body. The client keeps the whole log and
// resends it on every turn.
type chatRequest struct {
	Messages  []conversation.Turn `json:"messages"`
	SessionID string              `json:"session_id,omitempty"`
}

type turnResponse struct {
	Result string             `json:"result"`
	Phase  conversation.Phase `json:"phase"`
}

type submittedResponse struct {
	Success         bool               `json:"success"`
	SubmissionID    string             `json:"submission_id"`
	DataSent        json.RawMessage    `json:"data_sent"`
	BackendResponse json.RawMessage    `json:"backend_response"`
	Phase           conversation.Phase `json:"phase"`
}

type errorResponse struct {
	Error    string          `json:"error"`
	Erro     string          `json:"erro,omitempty"`
	Detalhes string          `json:"detalhes,omitempty"`
	DataSent json.RawMessage `json:"data_sent,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Corpo da requisição inválido", Detalhes: err.Error()})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Corpo da requisição inválido", Detalhes: "messages must not be empty"})
		return
	}

	out, err := s.handler.Handle(r.Context(), processor.Request{
		RequestID: middleware.GetReqID(r.Context()),
		SessionID: req.SessionID,
		Turns:     req.Messages,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if out.Phase == conversation.PhaseTerminated {
		if out.Report != nil {
			s.logger.Info("report submitted",
				"request_id", middleware.GetReqID(r.Context()),
				"submission_id", out.SubmissionID,
				"crime_name", out.Report.CrimeName,
				"crime_weight", out.Report.CrimeWeight,
			)
		}
		writeJSON(w, http.StatusOK, submittedResponse{
			Success:         true,
			SubmissionID:    out.SubmissionID.String(),
			DataSent:        out.Sent,
			BackendResponse: out.BackendResponse,
			Phase:           out.Phase,
		})
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Result: out.Reply, Phase: out.Phase})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var se *ingest.SubmissionError
	switch {
	case errors.As(err, &se):
		msg := "Erro ao enviar denúncia ao backend"
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:    msg,
			Erro:     msg,
			Detalhes: se.Error(),
			DataSent: se.Payload,
		})
	case errors.Is(err, processor.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Conversa inválida", Detalhes: err.Error()})
	case errors.Is(err, conversation.ErrStaleSession):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Conversa desatualizada", Detalhes: err.Error()})
	case errors.Is(err, dialogue.ErrMissingCredential):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Configuração da API OpenAI ausente", Detalhes: err.Error()})
	default:
		s.logger.Error("chat turn failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Erro ao processar denúncia", Detalhes: err.Error()})
	}
}
