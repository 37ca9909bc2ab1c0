package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"campus-ledger/internal/auth"
	billing "campus-ledger/internal/billing/domain"
	registryapp "campus-ledger/internal/masterdata/application"
	masterdata "campus-ledger/internal/masterdata/domain"
)

// Handler handles program and student registry APIs.
type Handler struct {
	registry *registryapp.RegistryService
}

// NewHandler constructs a handler.
func NewHandler(registry *registryapp.RegistryService) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("registry handler: nil registry service")
	}
	return &Handler{registry: registry}, nil
}

// ServeHTTP handles routes under /api/v1/registry.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/registry/programs" && r.Method == http.MethodPost:
		h.handleUpsertProgram(w, r)
	case path == "/api/v1/registry/students" && r.Method == http.MethodPost:
		h.handleEnrollStudent(w, r)
	case path == "/api/v1/registry/students" && r.Method == http.MethodGet:
		h.handleCohort(w, r)
	case strings.HasPrefix(path, "/api/v1/registry/students/") && r.Method == http.MethodGet:
		h.handleGetStudent(w, r, strings.TrimPrefix(path, "/api/v1/registry/students/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleUpsertProgram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code       string `json:"code"`
		Label      string `json:"label"`
		Level      string `json:"level"`
		Department string `json:"department"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	program := &masterdata.Program{
		Code:       req.Code,
		Label:      req.Label,
		Level:      req.Level,
		Department: req.Department,
	}
	if err := h.registry.UpsertProgram(r.Context(), program); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string `json:"id"`
		FullName     string `json:"full_name"`
		ProgramCode  string `json:"program_code"`
		AcademicYear string `json:"academic_year"`
		Email        string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	student := &masterdata.Student{
		ID:           req.ID,
		FullName:     req.FullName,
		ProgramCode:  req.ProgramCode,
		AcademicYear: req.AcademicYear,
		Email:        req.Email,
		EnrolledAt:   time.Now().UTC(),
	}
	if err := h.registry.EnrollStudent(r.Context(), student); err != nil {
		if errors.Is(err, billing.ErrPolicyViolation) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(studentResponse(student))
}

func (h *Handler) handleGetStudent(w http.ResponseWriter, r *http.Request, id string) {
	if auth.RoleFromContext(r.Context()) == auth.RoleStudent && auth.SubjectFromContext(r.Context()) != id {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	student, err := h.registry.Student(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if student == nil {
		http.Error(w, "student not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(studentResponse(student))
}

func (h *Handler) handleCohort(w http.ResponseWriter, r *http.Request) {
	programCode := r.URL.Query().Get("program")
	academicYear := r.URL.Query().Get("year")
	if programCode == "" || academicYear == "" {
		http.Error(w, "program and year are required", http.StatusBadRequest)
		return
	}
	students, err := h.registry.Cohort(r.Context(), programCode, academicYear)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(students))
	for i := range students {
		out = append(out, studentResponse(&students[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func studentResponse(student *masterdata.Student) map[string]any {
	resp := map[string]any{
		"id":            student.ID,
		"full_name":     student.FullName,
		"program_code":  student.ProgramCode,
		"academic_year": student.AcademicYear,
		"enrolled_at":   student.EnrolledAt.Format("2006-01-02"),
	}
	if student.Email != "" {
		resp["email"] = student.Email
	}
	return resp
}
