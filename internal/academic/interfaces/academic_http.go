package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	academicapp "campus-ledger/internal/academic/application"
	academic "campus-ledger/internal/academic/domain"
	"campus-ledger/internal/auth"
)

// Handler handles grade capture and transcript APIs.
type Handler struct {
	validation *academicapp.ValidationService
	// unitsFor resolves the units a teacher may grade, nil means no
	// restriction source and teachers are denied.
	unitsFor func(actorID string) []string
}

// NewHandler constructs a handler.
func NewHandler(validation *academicapp.ValidationService, unitsFor func(actorID string) []string) (*Handler, error) {
	if validation == nil {
		return nil, errors.New("academic handler: nil validation service")
	}
	return &Handler{validation: validation, unitsFor: unitsFor}, nil
}

// ServeHTTP handles /api/v1/grades and /api/v1/students/{id}/transcript.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/grades" && r.Method == http.MethodPost:
		h.handleRecordGrade(w, r)
	case strings.HasPrefix(path, "/api/v1/students/") && strings.HasSuffix(path, "/transcript") && r.Method == http.MethodGet:
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/api/v1/students/"), "/transcript")
		h.handleTranscript(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) scopeFrom(r *http.Request) auth.Scope {
	scope := auth.ScopeFromContext(r.Context())
	if scope.Role == auth.RoleTeacher && h.unitsFor != nil {
		scope = scope.WithTeachingUnits(h.unitsFor(scope.ActorID)...)
	}
	return scope
}

func (h *Handler) handleRecordGrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BeneficiaryID string `json:"beneficiary_id"`
		ProgramCode   string `json:"program_code"`
		AcademicYear  string `json:"academic_year"`
		UECode        string `json:"ue_code"`
		Component     string `json:"component"`
		Score         string `json:"score"`
		MaxScore      string `json:"max_score"`
		Weight        string `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	score, err := decimal.NewFromString(req.Score)
	if err != nil {
		http.Error(w, "invalid score", http.StatusBadRequest)
		return
	}
	cmd := academicapp.RecordGradeCommand{
		BeneficiaryID: req.BeneficiaryID,
		ProgramCode:   req.ProgramCode,
		AcademicYear:  req.AcademicYear,
		UECode:        req.UECode,
		Component:     req.Component,
		Score:         score,
	}
	if req.MaxScore != "" {
		if cmd.MaxScore, err = decimal.NewFromString(req.MaxScore); err != nil {
			http.Error(w, "invalid max_score", http.StatusBadRequest)
			return
		}
	}
	if req.Weight != "" {
		if cmd.Weight, err = decimal.NewFromString(req.Weight); err != nil {
			http.Error(w, "invalid weight", http.StatusBadRequest)
			return
		}
	}

	result, err := h.validation.RecordGrade(r.Context(), h.scopeFrom(r), cmd)
	if err != nil {
		respondAcademicError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(unitResponse(result))
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request, beneficiaryID string) {
	if auth.RoleFromContext(r.Context()) == auth.RoleStudent &&
		auth.SubjectFromContext(r.Context()) != beneficiaryID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	tr, err := h.validation.TranscriptFor(r.Context(), beneficiaryID,
		r.URL.Query().Get("program"), r.URL.Query().Get("year"))
	if err != nil {
		respondAcademicError(w, err)
		return
	}

	units := make([]map[string]any, 0, len(tr.Units))
	for _, u := range tr.Units {
		units = append(units, unitResponse(u))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"beneficiary_id":     tr.BeneficiaryID,
		"academic_year":      tr.AcademicYear,
		"units":              units,
		"semester_average":   tr.Semester.Average.String(),
		"semester_validated": tr.Semester.Validated,
		"year_validated":     tr.YearValidated,
	})
}

func unitResponse(u academic.UEResult) map[string]any {
	return map[string]any{
		"ue_code":   u.UECode,
		"average":   u.WeightedAverage.String(),
		"decision":  string(u.Decision()),
		"validated": u.Validated,
		"blocked":   u.Blocked,
	}
}

func respondAcademicError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, academic.ErrUnitNotCovered):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, academic.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
