/*
handlers.go - HTTP API handlers for the contribution engine

PURPOSE:
  Exposes the contribution engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Individuals:
    GET    /api/individuals            List the population
    POST   /api/individuals            Create or replace an individual
    GET    /api/individuals/{id}       Load one individual

  Inputs:
    POST   /api/wages                  Write monthly contribution bases

  Legislation:
    GET    /api/legislation            List stored snapshots with missing-entry report
    POST   /api/legislation            Import a YAML or JSON document
    GET    /api/levies                 Levies known to the stored legislation
    GET    /api/variables              Inputs, levies and totals the engine resolves

  Contributions:
    POST   /api/contributions          Compute a levy or regime total, store the run
    POST   /api/contributions/close    Store regime totals for the last closed month
    GET    /api/contributions/{id}     Load a stored run

  Scenarios (development only):
    GET    /api/scenarios              List demo scenarios
    GET    /api/scenarios/current      Currently loaded scenario
    POST   /api/scenarios/load         Reset and load a scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - LegislationFactory: YAML/JSON to snapshots
  - logger: component logger

  The rule engine is rebuilt for every computation from the stored
  legislation and population. A Simulation is not shared between requests.

REQUEST FLOW (POST /api/contributions):
  1. Parse regime, levy and period
  2. Load legislation documents -> History
  3. Register inputs, levies and totals -> Registry
  4. Load population -> Simulation
  5. Calculate, store the run, respond

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Configuration errors, invalid period, unknown variable
  - 404: Individual or run not found
  - 409: Duplicate run
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/contribution-engine/cotsoc"
	"github.com/warp/contribution-engine/factory"
	"github.com/warp/contribution-engine/generic"
	"go.uber.org/zap"
)

// maxLegislationBody bounds an imported legislation document.
const maxLegislationBody = 4 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store              generic.Store
	LegislationFactory *factory.LegislationFactory

	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store generic.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:              store,
		LegislationFactory: factory.NewLegislationFactory(),
		logger:             logger.Named("api"),
		now:                time.Now,
		newID:              uuid.NewString,
	}
}

func (h *Handler) scenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}

func (h *Handler) setScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// engine builds the legislation history and a registry holding every
// input, levy and regime total it defines.
func (h *Handler) engine(ctx context.Context) (*cotsoc.History, *generic.Registry, error) {
	docs, err := h.Store.LegislationDocuments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load legislation: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil, generic.ErrNoLegislation
	}
	history, err := h.LegislationFactory.FromDocuments(docs)
	if err != nil {
		return nil, nil, err
	}
	registry := generic.NewRegistry()
	if err := cotsoc.Register(registry, history, history.Levies()); err != nil {
		return nil, nil, err
	}
	return history, registry, nil
}

// =============================================================================
// INDIVIDUAL HANDLERS
// =============================================================================

// ListIndividuals returns the population ordered by ID.
func (h *Handler) ListIndividuals(w http.ResponseWriter, r *http.Request) {
	individuals, err := h.Store.Individuals(r.Context())
	if err != nil {
		h.fail(w, "Failed to list individuals", err)
		return
	}

	dtos := make([]IndividualDTO, len(individuals))
	for i, ind := range individuals {
		dtos[i] = toIndividualDTO(ind)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateIndividual creates or replaces an individual.
func (h *Handler) CreateIndividual(w http.ResponseWriter, r *http.Request) {
	var req CreateIndividualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		h.fail(w, "Invalid individual", generic.Missing("id"))
		return
	}
	category, err := cotsoc.ParseCategory(req.Category)
	if err != nil {
		h.fail(w, "Invalid individual", err)
		return
	}
	mode, err := cotsoc.ParseSettlementMode(req.SettlementMode)
	if err != nil {
		h.fail(w, "Invalid individual", err)
		return
	}

	ind := generic.Individual{
		ID:   generic.EntityID(req.ID),
		Name: req.Name,
		Constants: map[string]decimal.Decimal{
			cotsoc.VarCategory:       decimal.NewFromInt(int64(category)),
			cotsoc.VarSettlementMode: decimal.NewFromInt(int64(mode)),
		},
	}
	if err := h.Store.SaveIndividual(r.Context(), ind); err != nil {
		h.fail(w, "Failed to save individual", err)
		return
	}

	writeJSON(w, http.StatusCreated, toIndividualDTO(ind))
}

// GetIndividual returns one individual.
func (h *Handler) GetIndividual(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ind, err := h.Store.Individual(r.Context(), generic.EntityID(id))
	if err != nil {
		h.fail(w, "Failed to load individual", err)
		return
	}
	writeJSON(w, http.StatusOK, toIndividualDTO(ind))
}

func toIndividualDTO(ind generic.Individual) IndividualDTO {
	dto := IndividualDTO{ID: string(ind.ID), Name: ind.Name}
	if code, ok := ind.Constants[cotsoc.VarCategory]; ok {
		dto.Category = cotsoc.Category(code.IntPart()).Key()
	}
	dto.SettlementMode = cotsoc.SettlementMode(ind.Constants[cotsoc.VarSettlementMode].IntPart()).String()
	return dto
}

// =============================================================================
// INPUT HANDLERS
// =============================================================================

// PutWages writes monthly contribution bases. The batch is all-or-nothing.
func (h *Handler) PutWages(w http.ResponseWriter, r *http.Request) {
	var req PutWagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	records := make([]generic.InputRecord, 0, len(req.Wages))
	for i, wage := range req.Wages {
		if wage.IndividualID == "" {
			h.fail(w, "Invalid wage", generic.Missing(fmt.Sprintf("wages[%d].individual_id", i)))
			return
		}
		month, err := generic.ParsePeriod(wage.Month)
		if err != nil {
			h.fail(w, "Invalid wage", err)
			return
		}
		if !month.IsMonth() {
			h.fail(w, "Invalid wage", fmt.Errorf("%w: wages[%d].month must be a single month, got %s", generic.ErrInvalidPeriod, i, month))
			return
		}
		records = append(records, generic.InputRecord{
			EntityID: generic.EntityID(wage.IndividualID),
			Variable: cotsoc.VarBase,
			Month:    month,
			Value:    wage.Amount,
		})
	}

	if err := h.Store.PutInputs(r.Context(), records); err != nil {
		h.fail(w, "Failed to write wages", err)
		return
	}
	writeJSON(w, http.StatusOK, PutWagesResponse{Written: len(records)})
}

// =============================================================================
// LEGISLATION HANDLERS
// =============================================================================

// ListLegislation returns the stored snapshots in order, each with the
// categories it leaves without a schedule.
func (h *Handler) ListLegislation(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Store.LegislationDocuments(r.Context())
	if err != nil {
		h.fail(w, "Failed to list legislation", err)
		return
	}

	dtos := make([]LegislationDTO, 0, len(docs))
	for _, doc := range docs {
		dto := LegislationDTO{ValidFrom: doc.ValidFrom.String(), Format: doc.Format}
		if !doc.CreatedAt.IsZero() {
			dto.CreatedAt = doc.CreatedAt.Format(time.RFC3339)
		}
		history, err := h.LegislationFactory.FromDocuments([]generic.LegislationDocument{doc})
		if err != nil {
			h.fail(w, "Stored legislation is invalid", err)
			return
		}
		for _, s := range history.Snapshots() {
			dto.MonthlyCeiling = s.MonthlyCeiling.String()
			dto.Missing = toMissingDTOs(s.MissingEntries())
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLegislation imports a legislation document. The format is taken from
// the "format" query parameter, then the Content-Type, and defaults to YAML.
// Each snapshot is stored separately, replacing any with the same valid_from.
func (h *Handler) CreateLegislation(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxLegislationBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	format := legislationFormat(r)
	docs, err := h.LegislationFactory.Split(format, body)
	if err != nil {
		h.fail(w, "Invalid legislation", err)
		return
	}

	dtos := make([]LegislationDTO, 0, len(docs))
	for _, doc := range docs {
		doc.CreatedAt = h.now()
		if err := h.Store.SaveLegislation(r.Context(), doc); err != nil {
			h.fail(w, "Failed to save legislation", err)
			return
		}
		history, err := h.LegislationFactory.FromDocuments([]generic.LegislationDocument{doc})
		if err != nil {
			h.fail(w, "Invalid legislation", err)
			return
		}
		dto := LegislationDTO{
			ValidFrom: doc.ValidFrom.String(),
			Format:    doc.Format,
			CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		}
		for _, s := range history.Snapshots() {
			dto.MonthlyCeiling = s.MonthlyCeiling.String()
			dto.Missing = toMissingDTOs(s.MissingEntries())
			LogMissingEntries(h.logger, s)
		}
		dtos = append(dtos, dto)
	}

	h.logger.Info("legislation imported", zap.Int("snapshots", len(docs)), zap.String("format", format))
	writeJSON(w, http.StatusCreated, dtos)
}

// ListLevies returns every levy defined by the stored legislation.
func (h *Handler) ListLevies(w http.ResponseWriter, r *http.Request) {
	history, _, err := h.engine(r.Context())
	if err != nil {
		h.fail(w, "Failed to load legislation", err)
		return
	}

	levies := history.Levies()
	dtos := make([]LevyDTO, len(levies))
	for i, l := range levies {
		dtos[i] = LevyDTO{Regime: string(l.Regime), Name: l.Name, Variable: l.Variable()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListVariables returns every registered variable, sorted by name.
func (h *Handler) ListVariables(w http.ResponseWriter, r *http.Request) {
	_, registry, err := h.engine(r.Context())
	if err != nil {
		h.fail(w, "Failed to load legislation", err)
		return
	}

	variables := registry.List()
	dtos := make([]VariableDTO, len(variables))
	for i, v := range variables {
		dtos[i] = VariableDTO{Name: v.Name, Label: v.Label, Kind: string(v.Kind)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LogMissingEntries reports, at warn level, the categories a snapshot leaves
// without a schedule. They compute to zero.
func LogMissingEntries(logger *zap.Logger, s *cotsoc.Snapshot) {
	for _, entry := range s.MissingEntries() {
		categories := make([]string, len(entry.Categories))
		for i, c := range entry.Categories {
			categories[i] = c.Key()
		}
		logger.Warn("categories without schedule",
			zap.String("valid_from", s.ValidFrom.String()),
			zap.String("regime", string(entry.Regime)),
			zap.String("levy", entry.Levy),
			zap.Strings("categories", categories),
		)
	}
}

func legislationFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mt == "application/json" {
		return "json"
	}
	return "yaml"
}

func toMissingDTOs(entries []cotsoc.MissingEntry) []MissingEntryDTO {
	if len(entries) == 0 {
		return nil
	}
	dtos := make([]MissingEntryDTO, len(entries))
	for i, e := range entries {
		categories := make([]string, len(e.Categories))
		for j, c := range e.Categories {
			categories[j] = c.Key()
		}
		dtos[i] = MissingEntryDTO{Regime: string(e.Regime), Levy: e.Levy, Categories: categories}
	}
	return dtos
}

// =============================================================================
// CONTRIBUTION HANDLERS
// =============================================================================

// ComputeContributions computes one levy, or the regime total when no levy
// is named, for the whole population. The result is stored as a new run.
func (h *Handler) ComputeContributions(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	regime, err := cotsoc.ParseRegime(req.Regime)
	if err != nil {
		h.fail(w, "Invalid request", err)
		return
	}
	if req.Period == "" {
		h.fail(w, "Invalid request", generic.Missing("period"))
		return
	}
	period, err := generic.ParsePeriod(req.Period)
	if err != nil {
		h.fail(w, "Invalid request", err)
		return
	}

	variable := cotsoc.TotalVariable(regime)
	if req.Levy != "" {
		variable = cotsoc.Levy{Regime: regime, Name: req.Levy}.Variable()
	}

	run, err := h.compute(r.Context(), variable, period)
	if err != nil {
		h.fail(w, "Failed to compute contributions", err)
		return
	}

	h.logger.Info("contributions computed",
		zap.String("run_id", run.ID),
		zap.String("variable", run.Variable),
		zap.String("period", run.Period.String()),
		zap.Int("individuals", len(run.Lines)),
		zap.String("total", run.Total().String()),
	)
	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

func (h *Handler) compute(ctx context.Context, variable string, period generic.Period) (generic.Run, error) {
	_, registry, err := h.engine(ctx)
	if err != nil {
		return generic.Run{}, err
	}
	if _, ok := registry.Lookup(variable); !ok {
		return generic.Run{}, fmt.Errorf("%w: %s", generic.ErrUnknownVariable, variable)
	}

	population, err := generic.LoadPopulation(ctx, h.Store, registry, period)
	if err != nil {
		return generic.Run{}, err
	}
	// Contributions are monthly; longer periods are the sum of their months.
	var values generic.Vector
	if period.IsMonth() {
		values, err = population.Simulation.Calculate(variable, period)
	} else {
		values, err = population.Simulation.CalculateAdd(variable, period, 0)
	}
	if err != nil {
		return generic.Run{}, err
	}

	run := generic.Run{
		ID:        h.newID(),
		Variable:  variable,
		Period:    period,
		CreatedAt: h.now(),
		Lines:     population.Lines(values),
	}
	if err := h.Store.AppendRun(ctx, run); err != nil {
		return generic.Run{}, err
	}
	return run, nil
}

// CloseMonth computes and stores the regime totals of the last closed month
// that have no run yet. Returns the runs created.
func (h *Handler) CloseMonth(w http.ResponseWriter, r *http.Request) {
	runs := NewMonthCloseScheduler(h, h.logger).RunNow(r.Context())

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetContributions returns a stored run.
func (h *Handler) GetContributions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.Run(r.Context(), id)
	if err != nil {
		h.fail(w, "Failed to load run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

func toRunDTO(run generic.Run) RunDTO {
	lines := make([]RunLineDTO, len(run.Lines))
	for i, l := range run.Lines {
		lines[i] = RunLineDTO{IndividualID: string(l.EntityID), Amount: l.Value}
	}
	return RunDTO{
		ID:        run.ID,
		Variable:  run.Variable,
		Period:    run.Period.String(),
		CreatedAt: run.CreatedAt.Format(time.RFC3339),
		Total:     run.Total(),
		Lines:     lines,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// fail maps a domain error to its HTTP status. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrDuplicateRun):
		return http.StatusConflict
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
