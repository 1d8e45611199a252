package http

import (
	"net/http"

	"pfinance/internal/core"
	"pfinance/internal/log"
)

// monthParams parses year and month, replacing an out of range month with
// the current one.
func (s *Server) monthParams(r *http.Request) MonthParams {
	now := s.now()
	p := ParseMonthParams(r.URL.Query(), now)
	if p.Month < 1 || p.Month > 12 {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid month parameter",
			log.FieldYear, p.Year,
			log.FieldMonth, p.Month,
			"corrected_to", int(now.Month()))
		p.Month = int(now.Month())
	}
	return p
}

func (s *Server) handleCategoryChart(w http.ResponseWriter, r *http.Request) {
	typ := core.Expense
	if v := r.URL.Query().Get("type"); v != "" {
		var err error
		if typ, err = core.ParseTransactionType(v); err != nil {
			BadRequestError("type must be expense or income").Write(w)
			return
		}
	}
	p := s.monthParams(r)

	c, err := s.charts.CategoryChart(r.Context(), p.Year, p.Month, typ)
	if err != nil {
		s.chartError(w, r, "categories", err)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleAccountChart(w http.ResponseWriter, r *http.Request) {
	c, err := s.charts.AccountChart(r.Context())
	if err != nil {
		s.chartError(w, r, "accounts", err)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleTotalsChart(w http.ResponseWriter, r *http.Request) {
	p := ParseMonthParams(r.URL.Query(), s.now())

	c, err := s.charts.TotalsChart(r.Context(), p.Year)
	if err != nil {
		s.chartError(w, r, "totals", err)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := s.monthParams(r)

	d, err := s.charts.Dashboard(r.Context(), p.Year, p.Month)
	if err != nil {
		s.chartError(w, r, "dashboard", err)
		return
	}
	NewJSONResponse().Body(d).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if s.taxonomy == nil {
		NewJSONResponse().Body(map[string][]string{"categories": {}}).Write(w)
		return
	}
	cats, err := s.taxonomy.List(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Taxonomy list error", log.FieldError, err.Error())
		InternalServerError("failed to list categories").Write(w)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	NewJSONResponse().Body(map[string][]string{"categories": cats}).Write(w)
}

func (s *Server) chartError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart load failed",
		log.FieldChartKind, kind,
		log.FieldOperation, log.OpRender,
		log.FieldError, err.Error())
	InternalServerError("failed to load chart data").Write(w)
}
