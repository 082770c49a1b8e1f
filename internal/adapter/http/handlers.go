package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/predict"
	"github.com/couchcryptid/collision-data-api/internal/tabular"
)

const (
	defaultPage     = 0
	defaultPageSize = 10
	maxPredictBody  = 1 << 16
)

var validate = validator.New()

type pageRequest struct {
	TableName string `validate:"required"`
	Page      int    `validate:"gte=0"`
	PageSize  int    `validate:"gte=1"`
}

type predictRequest struct {
	Age  *float64 `json:"age" validate:"required"`
	Sex  string   `json:"sex" validate:"required"`
	Race string   `json:"race" validate:"required"`
}

type predictResponse struct {
	AtFault int `json:"at_fault"`
}

type errorResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error"`
}

var errBadRequest = errors.New("bad request")

func (s *Server) handleDataInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Tables)
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	table, req, err := parsePageRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := s.deps.Tabular.FetchPage(r.Context(), table, req.Page, req.PageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", attachment(table.String()+"_head.csv"))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client went away
}

func (s *Server) handlePageInfo(w http.ResponseWriter, r *http.Request) {
	table, req, err := parsePageRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info, err := s.deps.Tabular.PageInfo(r.Context(), table, req.Page, req.PageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleArtifact(kind domain.AggregateKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := s.deps.Artifacts.Materialize(r.Context(), kind)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if entry.Computed {
			s.audit(r.Context(), domain.NewArtifactBuiltEvent(entry.Name, entry.Fingerprint, entry.Size, s.clock.Now()))
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", attachment(kind.DownloadName()))
		http.ServeContent(w, r, kind.DownloadName(), entry.CreatedAt, bytes.NewReader(entry.Content))
	}
}

func (s *Server) handleText(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body)) //nolint:errcheck // client went away
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "request body is not valid JSON", Error: err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "age, sex and race are required", Error: err.Error()})
		return
	}

	features := domain.PartyFeatures{Age: *req.Age, Sex: req.Sex, Race: req.Race}
	res := s.deps.Predictor.Predict(features)

	var atFault *int
	if res.Outcome == predict.OutcomeSuccess {
		atFault = &res.AtFault
	}
	s.audit(r.Context(), domain.NewPredictionEvent(features, string(res.Outcome), atFault, s.clock.Now()))

	switch res.Outcome {
	case predict.OutcomeSuccess:
		writeJSON(w, http.StatusOK, predictResponse{AtFault: res.AtFault})
	case predict.OutcomeRejected:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "the model cannot accept this input", Error: res.Err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "prediction failed", Error: errString(res.Err)})
	}
}

func parsePageRequest(r *http.Request) (domain.Table, pageRequest, error) {
	q := r.URL.Query()
	req := pageRequest{TableName: q.Get("table_name"), Page: defaultPage, PageSize: defaultPageSize}

	var err error
	if v := q.Get("page"); v != "" {
		if req.Page, err = strconv.Atoi(v); err != nil {
			return "", req, fmt.Errorf("%w: page must be an integer, got %q", errBadRequest, v)
		}
	}
	if v := q.Get("page_size"); v != "" {
		if req.PageSize, err = strconv.Atoi(v); err != nil {
			return "", req, fmt.Errorf("%w: page_size must be an integer, got %q", errBadRequest, v)
		}
	}
	if err := validate.Struct(req); err != nil {
		return "", req, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	table, err := domain.ParseTable(req.TableName)
	if err != nil {
		return "", req, err
	}
	return table, req, nil
}

// writeError maps request and service errors to status codes. Unexpected
// errors are logged and their text is not returned.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrUnknownTable),
		errors.Is(err, tabular.ErrInvalidPage):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
