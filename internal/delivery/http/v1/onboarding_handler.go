package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

// maxSectionBytes bounds a single section patch
const maxSectionBytes = 64 << 10

type OnboardingHandler struct {
	onboardingUC domain.OnboardingUsecase
}

func NewOnboardingHandler(protected *gin.RouterGroup, onboardingUC domain.OnboardingUsecase) {
	handler := &OnboardingHandler{onboardingUC: onboardingUC}

	onboarding := protected.Group("/onboarding")
	{
		onboarding.GET("", handler.Get)
		onboarding.POST("/save", handler.Save)
		onboarding.GET("/steps", handler.Steps)

		draft := onboarding.Group("/draft")
		draft.GET("", handler.GetDraft)
		draft.PUT("", handler.ReplaceDraft)
		draft.DELETE("", handler.ResetDraft)
		draft.POST("/step", handler.SetStep)
		draft.PATCH("/sections/:section", handler.UpdateSection)
		draft.POST("/steps/:n/complete", handler.CompleteStep)
		draft.POST("/sync", handler.SyncDraft)
	}
}

// Save godoc
// @Summary      Save onboarding answers
// @Description  Upserts the caller's onboarding response bound to their most recent project. Absent sections are left untouched.
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Param        request  body      domain.SaveOnboardingRequest  true  "Sections"
// @Success      200      {object}  response.Response{data=domain.OnboardingData}
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /onboarding/save [post]
// @Security     BearerAuth
func (h *OnboardingHandler) Save(c *gin.Context) {
	var req domain.SaveOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	data, err := h.onboardingUC.Save(c, &req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Onboarding saved", data)
}

// Get godoc
// @Summary      Get onboarding answers
// @Description  Sections that fail to parse are returned as null
// @Tags         onboarding
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.OnboardingData}
// @Failure      401  {object}  response.Response
// @Router       /onboarding [get]
// @Security     BearerAuth
func (h *OnboardingHandler) Get(c *gin.Context) {
	data, err := h.onboardingUC.Get(c)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Onboarding retrieved", data)
}

// Steps godoc
// @Summary      List wizard steps
// @Tags         onboarding
// @Produce      json
// @Success      200  {object}  response.Response{data=[]domain.StepInfo}
// @Router       /onboarding/steps [get]
// @Security     BearerAuth
func (h *OnboardingHandler) Steps(c *gin.Context) {
	response.Success(c, http.StatusOK, "Onboarding steps", h.onboardingUC.Steps())
}

// GetDraft godoc
// @Summary      Get wizard draft
// @Tags         onboarding
// @Produce      json
// @Success      200  {object}  response.Response{data=domain.OnboardingDraft}
// @Router       /onboarding/draft [get]
// @Security     BearerAuth
func (h *OnboardingHandler) GetDraft(c *gin.Context) {
	draft, err := h.onboardingUC.GetDraft(c)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Draft retrieved", draft)
}

// ReplaceDraft godoc
// @Summary      Replace wizard draft
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Param        request  body      domain.OnboardingDraft  true  "Draft"
// @Success      200      {object}  response.Response{data=domain.OnboardingDraft}
// @Failure      400      {object}  response.Response
// @Router       /onboarding/draft [put]
// @Security     BearerAuth
func (h *OnboardingHandler) ReplaceDraft(c *gin.Context) {
	var req domain.OnboardingDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	draft, err := h.onboardingUC.ReplaceDraft(c, &req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Draft saved", draft)
}

// ResetDraft godoc
// @Summary      Reset wizard draft
// @Tags         onboarding
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /onboarding/draft [delete]
// @Security     BearerAuth
func (h *OnboardingHandler) ResetDraft(c *gin.Context) {
	if err := h.onboardingUC.ResetDraft(c); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Draft reset", nil)
}

// SetStep godoc
// @Summary      Move the wizard cursor
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Param        request  body      domain.SetStepRequest  true  "Step 1..6"
// @Success      200      {object}  response.Response{data=domain.OnboardingDraft}
// @Failure      400      {object}  response.Response
// @Router       /onboarding/draft/step [post]
// @Security     BearerAuth
func (h *OnboardingHandler) SetStep(c *gin.Context) {
	var req domain.SetStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	draft, err := h.onboardingUC.SetStep(c, req.Step)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Step updated", draft)
}

// UpdateSection godoc
// @Summary      Merge keys into a draft section
// @Description  Shallow merge of the top-level keys of the body into the section
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Param        section  path      string  true  "Section name"
// @Success      200      {object}  response.Response{data=domain.OnboardingDraft}
// @Failure      400      {object}  response.Response
// @Router       /onboarding/draft/sections/{section} [patch]
// @Security     BearerAuth
func (h *OnboardingHandler) UpdateSection(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSectionBytes))
	if err != nil {
		c.Error(apperror.BadRequest("Request body too large"))
		return
	}
	if !json.Valid(body) {
		c.Error(apperror.BadRequest("Invalid request body"))
		return
	}

	draft, err := h.onboardingUC.UpdateSection(c, domain.OnboardingSection(c.Param("section")), body)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Section updated", draft)
}

// CompleteStep godoc
// @Summary      Mark a wizard step complete
// @Description  Fails with 400 naming the missing fields when the step's section is incomplete
// @Tags         onboarding
// @Produce      json
// @Param        n    path      int  true  "Step 1..6"
// @Success      200  {object}  response.Response{data=domain.OnboardingDraft}
// @Failure      400  {object}  response.Response
// @Router       /onboarding/draft/steps/{n}/complete [post]
// @Security     BearerAuth
func (h *OnboardingHandler) CompleteStep(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		c.Error(apperror.BadRequest("Step must be a number"))
		return
	}

	draft, err := h.onboardingUC.CompleteStep(c, n)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Step completed", draft)
}

// SyncDraft godoc
// @Summary      Persist the wizard draft
// @Description  Saves the draft sections; with isComplete every step must validate and the draft is cleared afterwards
// @Tags         onboarding
// @Accept       json
// @Produce      json
// @Param        request  body      domain.SyncDraftRequest  false  "Completion flag"
// @Success      200      {object}  response.Response{data=domain.OnboardingData}
// @Failure      400      {object}  response.Response
// @Router       /onboarding/draft/sync [post]
// @Security     BearerAuth
func (h *OnboardingHandler) SyncDraft(c *gin.Context) {
	var req domain.SyncDraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(apperror.BadRequest(validation.Message(err)))
			return
		}
	}

	data, err := h.onboardingUC.SyncDraft(c, req.IsComplete)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Onboarding saved", data)
}
