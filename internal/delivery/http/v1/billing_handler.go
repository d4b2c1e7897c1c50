package v1

import (
	"net/http"

	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

type BillingHandler struct {
	billingUC domain.BillingUsecase
}

// NewBillingHandler registers the public billing routes. Checkout happens
// before the customer has an account.
func NewBillingHandler(public *gin.RouterGroup, billingUC domain.BillingUsecase, limit gin.HandlerFunc) {
	handler := &BillingHandler{billingUC: billingUC}

	billing := public.Group("/billing")
	{
		billing.GET("/plans", handler.Plans)
		billing.POST("/checkout", limit, handler.CreateCheckout)
	}
}

// Plans godoc
// @Summary      List plans
// @Tags         billing
// @Produce      json
// @Success      200  {object}  response.Response{data=[]domain.Plan}
// @Router       /billing/plans [get]
func (h *BillingHandler) Plans(c *gin.Context) {
	response.Success(c, http.StatusOK, "Plans", h.billingUC.Plans())
}

// CreateCheckout godoc
// @Summary      Start a subscription checkout
// @Description  Creates a hosted checkout session for the selected plan and returns its id and URL
// @Tags         billing
// @Accept       json
// @Produce      json
// @Param        request  body      domain.CheckoutRequest  true  "Plan and attribution metadata"
// @Success      200      {object}  response.Response{data=domain.CheckoutSession}
// @Failure      400      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /billing/checkout [post]
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req domain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	session, err := h.billingUC.CreateCheckout(c, &req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Checkout session created", session)
}
