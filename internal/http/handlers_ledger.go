package http

import (
	"errors"
	"net/http"

	"pfinance/internal/core"
	"pfinance/internal/log"
	"pfinance/internal/services"
)

type transactionCreated struct {
	Ref   string `json:"ref"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
}

type accountCreated struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CurrencyCode   string `json:"currency_code"`
	CurrencySymbol string `json:"currency_symbol,omitempty"`
	OpeningBalance string `json:"opening_balance"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	t, err := ParseTransaction(p, s.now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ref, err := s.ledger.Record(r.Context(), t)
	if err != nil {
		s.writeError(w, r, "Transaction record failed", err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(transactionCreated{Ref: ref, Year: t.Date.Year(), Month: int(t.Date.Month())}).
		Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	a, err := ParseAccount(p)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	created, err := s.ledger.CreateAccount(r.Context(), a)
	if err != nil {
		s.writeError(w, r, "Account create failed", err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(accountCreated{
			ID:             created.ID,
			Name:           created.Name,
			CurrencyCode:   created.CurrencyCode,
			CurrencySymbol: created.CurrencySymbol,
			OpeningBalance: created.OpeningBalance.Amount.String(),
		}).
		Write(w)
}

// writeError maps service errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var ve *services.ValidationError
	switch {
	case errors.Is(err, core.ErrDuplicateAccount):
		ConflictError(err.Error()).Write(w)
	case errors.As(err, &ve):
		UnprocessableEntityError(ve.Err.Error()).Write(w)
	case errors.Is(err, services.ErrAccountsUnsupported):
		NotImplementedError(err.Error()).Write(w)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), msg,
			log.FieldOperation, log.OpCreate,
			log.FieldError, err.Error())
		InternalServerError("failed to save").Write(w)
	}
}
