// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"

	"github.com/convivio/convivio/app/dto"
	businessflow "github.com/convivio/convivio/business_flow"
	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// MatchingHandlerInterface defines the contract for matching admin handlers.
type MatchingHandlerInterface interface {
	Run(c fiber.Ctx) error
	ListRuns(c fiber.Ctx) error
	GetSchedule(c fiber.Ctx) error
	UpdateSchedule(c fiber.Ctx) error
	Stats(c fiber.Ctx) error
}

// MatchingHandler handles matching administration requests.
type MatchingHandler struct {
	runFlow      businessflow.RunFlow
	scheduleFlow businessflow.ScheduleFlow
	validator    *validator.Validate
}

// NewMatchingHandler creates a new matching handler.
func NewMatchingHandler(runFlow businessflow.RunFlow, scheduleFlow businessflow.ScheduleFlow) *MatchingHandler {
	return &MatchingHandler{
		runFlow:      runFlow,
		scheduleFlow: scheduleFlow,
		validator:    validator.New(),
	}
}

func (h *MatchingHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MatchingHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Run triggers a manual matching run for the given program.
func (h *MatchingHandler) Run(c fiber.Ctx) error {
	program := c.Params("program")

	var req dto.RunMatchingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, e := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(e))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/matching/"+program+"/run")
	record, err := h.runFlow.RunMatching(ctx, program, models.RunTypeManual, req.TriggeredBy)
	if err != nil {
		if be, ok := err.(*businessflow.BusinessError); ok {
			switch be.Code {
			case "UNKNOWN_PROGRAM":
				return h.ErrorResponse(c, fiber.StatusNotFound, "Unknown matching program", be.Code, be.Error())
			case "RUN_ALREADY_IN_PROGRESS":
				return h.ErrorResponse(c, fiber.StatusConflict, "A run of this kind is already in progress", be.Code, be.Error())
			case "DIRECTORY_UNAVAILABLE":
				return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "User directory unavailable", be.Code, be.Error())
			}
		}
		// A failed run still produced an audit record worth returning.
		if record != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Matching run failed",
				Data:    toRunResult(record),
				Error:   dto.ErrorDetail{Code: "RUN_FAILED", Details: err.Error()},
			})
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Matching run failed", "RUN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Matching run completed", toRunResult(record))
}

// ListRuns returns recent run history, newest first.
func (h *MatchingHandler) ListRuns(c fiber.Ctx) error {
	var req dto.ListRunsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, e := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(e))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	records, err := h.runFlow.ListRuns(h.createRequestContext(c, "/api/v1/admin/matching/runs"), req.Limit)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list runs", "RUN_HISTORY_FAILED", nil)
	}

	res := dto.ListRunsResponse{Runs: make([]dto.RunResultResponse, 0, len(records)), Total: len(records)}
	for _, r := range records {
		res.Runs = append(res.Runs, toRunResult(r))
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Run history retrieved", res)
}

// GetSchedule returns the current schedule configuration.
func (h *MatchingHandler) GetSchedule(c fiber.Ctx) error {
	cfg, err := h.scheduleFlow.GetSchedule(h.createRequestContext(c, "/api/v1/admin/matching/schedule"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read schedule", "SCHEDULE_READ_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Schedule retrieved", toSchedule(cfg))
}

// UpdateSchedule updates the schedule days and/or time of day.
func (h *MatchingHandler) UpdateSchedule(c fiber.Ctx) error {
	var req dto.UpdateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, e := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(e))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	if req.ScheduleDays == nil && req.ScheduleTime == nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Nothing to update", "INVALID_REQUEST", nil)
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/matching/schedule")

	var cfg *models.ScheduleConfig
	var err error
	if req.ScheduleDays != nil {
		cfg, err = h.scheduleFlow.UpdateScheduleDays(ctx, *req.ScheduleDays)
		if err != nil {
			return h.scheduleError(c, err)
		}
	}
	if req.ScheduleTime != nil {
		cfg, err = h.scheduleFlow.UpdateScheduleTime(ctx, *req.ScheduleTime)
		if err != nil {
			return h.scheduleError(c, err)
		}
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Schedule updated", toSchedule(cfg))
}

// Stats returns the operational summary for the admin dashboard.
func (h *MatchingHandler) Stats(c fiber.Ctx) error {
	stats, err := h.scheduleFlow.Stats(h.createRequestContext(c, "/api/v1/admin/matching/stats"))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute stats", "STATS_FAILED", nil)
	}

	res := dto.StatsResponse{
		EligibleParticipants: stats.EligibleParticipants,
		Mentors:              stats.Mentors,
		Mentees:              stats.Mentees,
		ActiveMentorships:    stats.ActiveMentorships,
		PairsThisCycle:       stats.PairsThisCycle,
	}
	if stats.LastRun != nil {
		lr := toRunResult(stats.LastRun)
		res.LastRun = &lr
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Stats retrieved", res)
}

func (h *MatchingHandler) scheduleError(c fiber.Ctx, err error) error {
	if be, ok := err.(*businessflow.BusinessError); ok {
		switch be.Code {
		case "INVALID_SCHEDULE_DAY", "INVALID_SCHEDULE_TIME":
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid schedule configuration", be.Code, be.Error())
		}
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update schedule", "SCHEDULE_UPDATE_FAILED", nil)
}

func (h *MatchingHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx := context.WithValue(context.Background(), utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	return context.WithValue(ctx, utils.EndpointKey, endpoint)
}

func toRunResult(r *models.RunRecord) dto.RunResultResponse {
	return dto.RunResultResponse{
		UUID:        r.UUID,
		Program:     programName(r.RunKind),
		RunType:     string(r.RunType),
		Status:      string(r.Status),
		PairCount:   r.PairCount,
		TriggeredBy: r.TriggeredBy,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		ErrorText:   r.ErrorText,
	}
}

func toSchedule(cfg *models.ScheduleConfig) dto.ScheduleResponse {
	return dto.ScheduleResponse{
		ScheduleDays: append([]string(nil), cfg.ScheduleDays...),
		ScheduleTime: cfg.ScheduleTime,
		LastRunAt:    cfg.LastRunAt,
	}
}

func programName(k models.RunKind) string {
	if k == models.RunKindMentorship {
		return string(businessflow.ProgramMentorship)
	}
	return string(businessflow.ProgramCoffeeChat)
}
