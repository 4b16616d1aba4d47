package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shared-wheels/carpool-ledger-api/internal/app/charts"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/costshare"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/projects"
	"github.com/shared-wheels/carpool-ledger-api/internal/app/trips"
	"github.com/shared-wheels/carpool-ledger-api/internal/domain"
)

// Server is the HTTP adapter over the application services.
type Server struct {
	Projects  *projects.Service
	Trips     *trips.Service
	CostShare *costshare.Service
}

func NewServer(projectsSvc *projects.Service, tripsSvc *trips.Service, costShareSvc *costshare.Service) *Server {
	return &Server{
		Projects:  projectsSvc,
		Trips:     tripsSvc,
		CostShare: costShareSvc,
	}
}

type projectJSON struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	StartDate    domain.Date `json:"startDate"`
	EndDate      domain.Date `json:"endDate"`
	TotalKms     float64     `json:"totalKms"`
	TotalPayment float64     `json:"totalPayment"`
}

func toProjectJSON(p domain.Project) projectJSON {
	return projectJSON{
		ID:           string(p.ID),
		Name:         p.Name,
		Description:  p.Description,
		StartDate:    p.StartDate,
		EndDate:      p.EndDate,
		TotalKms:     p.TotalKms,
		TotalPayment: p.TotalPayment,
	}
}

type membershipJSON struct {
	ProjectID      string  `json:"projectId"`
	Role           string  `json:"role"`
	KmsAccrued     float64 `json:"kmsAccrued"`
	PaymentAccrued float64 `json:"paymentAccrued"`
}

func toMembershipJSON(m domain.Membership) membershipJSON {
	return membershipJSON{
		ProjectID:      string(m.ProjectID),
		Role:           string(m.Role),
		KmsAccrued:     m.KmsAccrued,
		PaymentAccrued: m.PaymentAccrued,
	}
}

type standingJSON struct {
	MemberID       string  `json:"memberId"`
	DisplayName    string  `json:"displayName"`
	Role           string  `json:"role"`
	KmsAccrued     float64 `json:"kmsAccrued"`
	PaymentAccrued float64 `json:"paymentAccrued"`
	UsagePercent   int     `json:"usagePercent"`
}

type tripJSON struct {
	ID         string      `json:"id"`
	MemberID   string      `json:"memberId"`
	MemberName string      `json:"memberName"`
	Date       domain.Date `json:"date"`
	StartKm    float64     `json:"startKm"`
	EndKm      float64     `json:"endKm"`
	TotalKm    float64     `json:"totalKm"`
}

func toTripJSON(t domain.Trip) tripJSON {
	return tripJSON{
		ID:         string(t.ID),
		MemberID:   string(t.MemberID),
		MemberName: t.MemberName,
		Date:       t.Date,
		StartKm:    t.StartKm,
		EndKm:      t.EndKm,
		TotalKm:    t.TotalKm,
	}
}

type ticketJSON struct {
	ID         string      `json:"id"`
	MemberID   string      `json:"memberId"`
	MemberName string      `json:"memberName"`
	Date       domain.Date `json:"date"`
	Value      float64     `json:"value"`
}

func toTicketJSON(t domain.Ticket) ticketJSON {
	return ticketJSON{
		ID:         string(t.ID),
		MemberID:   string(t.MemberID),
		MemberName: t.MemberName,
		Date:       t.Date,
		Value:      t.Value,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("invalid request body: %v", err), nil)
		return false
	}
	return true
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Member, bool) {
	m, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
	}
	return m, ok
}

func projectIDParam(r *http.Request) domain.ProjectID {
	return domain.ProjectID(chi.URLParam(r, "projectID"))
}

// requireMember gates the per-project read endpoints: the caller must belong
// to the addressed project.
func (s *Server) requireMember(w http.ResponseWriter, r *http.Request, caller domain.MemberID, projectID domain.ProjectID) bool {
	membership, found, err := s.Projects.Membership(r.Context(), caller)
	if err != nil {
		writeAppError(w, r, err)
		return false
	}
	if !found || membership.ProjectID != projectID {
		writeError(w, r, http.StatusForbidden, "NOT_A_MEMBER", "caller is not a member of this project", nil)
		return false
	}
	return true
}

type createProjectRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Password    string      `json:"password"`
	StartDate   domain.Date `json:"startDate"`
	EndDate     domain.Date `json:"endDate"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := s.Projects.CreateProjectAndAssign(r.Context(), caller.ID, projects.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Password:    req.Password,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectJSON(project))
}

type joinProjectRequest struct {
	ProjectID string `json:"projectId"`
	Password  string `json:"password"`
}

func (s *Server) handleJoinProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req joinProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := s.Projects.JoinProject(r.Context(), caller.ID, domain.ProjectID(req.ProjectID), req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectJSON(project))
}

func (s *Server) handleLeaveProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Projects.LeaveProject(r.Context(), caller.ID, projectIDParam(r)); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if err := s.Projects.DeleteProject(r.Context(), caller.ID, projectIDParam(r)); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type myProjectResponse struct {
	Project    projectJSON    `json:"project"`
	Membership membershipJSON `json:"membership"`
	Members    []standingJSON `json:"members"`
}

func (s *Server) handleMyProject(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	project, found, err := s.Projects.ProjectForMember(r.Context(), caller.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "PROJECT_NOT_FOUND", "member is not in a project", nil)
		return
	}
	membership, _, err := s.Projects.Membership(r.Context(), caller.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	standings, err := s.Projects.Members(r.Context(), project.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := myProjectResponse{
		Project:    toProjectJSON(project),
		Membership: toMembershipJSON(membership),
		Members:    make([]standingJSON, 0, len(standings)),
	}
	for _, st := range standings {
		resp.Members = append(resp.Members, standingJSON{
			MemberID:       string(st.Member.ID),
			DisplayName:    st.Member.DisplayName,
			Role:           string(st.Membership.Role),
			KmsAccrued:     st.Membership.KmsAccrued,
			PaymentAccrued: st.Membership.PaymentAccrued,
			UsagePercent:   costshare.UsagePercent(st.Membership.KmsAccrued, project.TotalKms),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type tripRequest struct {
	Date    domain.Date `json:"date"`
	StartKm float64     `json:"startKm"`
	EndKm   float64     `json:"endKm"`
}

func (s *Server) handleRecordTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req tripRequest
	if !decodeBody(w, r, &req) {
		return
	}

	trip, err := s.Trips.RecordTrip(r.Context(), caller.ID, projectIDParam(r), trips.TripInput{
		Date:    req.Date,
		StartKm: req.StartKm,
		EndKm:   req.EndKm,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTripJSON(trip))
}

type validateTripResponse struct {
	Valid      bool              `json:"valid"`
	Violations map[string]string `json:"violations,omitempty"`
}

// handleValidateTrip runs the submission rules without recording anything,
// for form-side feedback.
func (s *Server) handleValidateTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req tripRequest
	if !decodeBody(w, r, &req) {
		return
	}

	violations, err := s.Trips.ValidateTrip(r.Context(), caller.ID, projectIDParam(r), trips.TripInput{
		Date:    req.Date,
		StartKm: req.StartKm,
		EndKm:   req.EndKm,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	resp := validateTripResponse{Valid: violations.OK()}
	if !violations.OK() {
		resp.Violations = make(map[string]string, len(violations))
		for field, kind := range violations {
			resp.Violations[string(field)] = string(kind)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projectID := projectIDParam(r)
	if !s.requireMember(w, r, caller.ID, projectID) {
		return
	}
	list, err := s.Trips.Trips(r.Context(), projectID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]tripJSON, 0, len(list))
	for _, t := range list {
		out = append(out, toTripJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": out})
}

func (s *Server) handleLastTrip(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projectID := projectIDParam(r)
	if !s.requireMember(w, r, caller.ID, projectID) {
		return
	}
	trip, found, err := s.Trips.LastTrip(r.Context(), projectID, caller.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "trip": toTripJSON(trip)})
}

type ticketRequest struct {
	Date  domain.Date `json:"date"`
	Value float64     `json:"value"`
}

func (s *Server) handleRecordTicket(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req ticketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ticket, err := s.Trips.RecordTicket(r.Context(), caller.ID, projectIDParam(r), trips.TicketInput{
		Date:  req.Date,
		Value: req.Value,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTicketJSON(ticket))
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projectID := projectIDParam(r)
	if !s.requireMember(w, r, caller.ID, projectID) {
		return
	}
	list, err := s.Trips.Tickets(r.Context(), projectID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	out := make([]ticketJSON, 0, len(list))
	for _, t := range list {
		out = append(out, toTicketJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": out})
}

type allocationShareJSON struct {
	MemberID     string  `json:"memberId"`
	DisplayName  string  `json:"displayName"`
	KmsAccrued   float64 `json:"kmsAccrued"`
	UsagePercent int     `json:"usagePercent"`
	Share        float64 `json:"share"`
}

type allocationResponse struct {
	Pool      float64               `json:"pool"`
	TotalKms  float64               `json:"totalKms"`
	CostPerKm float64               `json:"costPerKm"`
	Shares    []allocationShareJSON `json:"shares"`
}

// handleAllocation splits an expense pool across members. The pool defaults
// to the project's accumulated payments when the query parameter is absent.
func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projectID := projectIDParam(r)
	if !s.requireMember(w, r, caller.ID, projectID) {
		return
	}

	project, err := s.Projects.Project(r.Context(), projectID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	pool := project.TotalPayment
	if raw := r.URL.Query().Get("pool"); raw != "" {
		pool, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pool must be a number", nil)
			return
		}
	}

	alloc, err := s.CostShare.Allocate(r.Context(), projectID, pool)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	standings, err := s.Projects.Members(r.Context(), projectID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := allocationResponse{
		Pool:      alloc.Pool,
		TotalKms:  alloc.TotalKms,
		CostPerKm: alloc.CostPerKm,
		Shares:    make([]allocationShareJSON, 0, len(standings)),
	}
	for _, st := range standings {
		resp.Shares = append(resp.Shares, allocationShareJSON{
			MemberID:     string(st.Member.ID),
			DisplayName:  st.Member.DisplayName,
			KmsAccrued:   st.Membership.KmsAccrued,
			UsagePercent: costshare.UsagePercent(st.Membership.KmsAccrued, alloc.TotalKms),
			Share:        costshare.RoundMoney(alloc.Shares[st.Member.ID]),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projectID := projectIDParam(r)
	if !s.requireMember(w, r, caller.ID, projectID) {
		return
	}
	report, err := s.CostShare.BuildReport(r.Context(), projectID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="usage-report.csv"`)
	w.WriteHeader(http.StatusOK)
	_ = costshare.WriteCSV(w, report)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	projectID := projectIDParam(r)
	if !s.requireMember(w, r, caller.ID, projectID) {
		return
	}
	list, err := s.Trips.Trips(r.Context(), projectID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": charts.BuildSeries(list)})
}
