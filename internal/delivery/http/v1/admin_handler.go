package v1

import (
	"net/http"
	"strconv"

	"launchpad-backend/internal/delivery/http/middleware"
	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"
	"launchpad-backend/pkg/apperror"
	"launchpad-backend/pkg/security"
	"launchpad-backend/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	adminUC domain.AdminUsecase
}

// NewAdminHandler mounts /admin behind the admin role guard. The group must
// already carry the auth middleware.
func NewAdminHandler(protected *gin.RouterGroup, adminUC domain.AdminUsecase) {
	handler := &AdminHandler{adminUC: adminUC}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/stats", handler.GetStats)

		admin.GET("/users", handler.ListUsers)
		admin.POST("/users", handler.CreateUser)
		admin.GET("/users/:id", handler.GetUser)
		admin.PUT("/users/:id", handler.UpdateUser)
		admin.DELETE("/users/:id", handler.DeleteUser)

		admin.GET("/users/:id/projects", handler.ListUserProjects)
		admin.POST("/users/:id/projects", handler.CreateProject)
		admin.PUT("/projects/:id", handler.UpdateProject)
		admin.DELETE("/projects/:id", handler.DeleteProject)

		admin.GET("/subscriptions", handler.ListSubscriptions)
		admin.GET("/export", handler.Export)
	}
}

func (h *AdminHandler) audit(c *gin.Context, event security.EventType, targetID string) {
	security.DefaultLogger().LogAdminAction(c.Request.Context(), event,
		domain.UserIDFromContext(c), targetID, c.ClientIP(), c.GetString(middleware.RequestIDKey))
}

// GetStats godoc
// @Summary      Get admin dashboard statistics
// @Description  Counts of users, projects and onboarding responses plus live billing figures
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=domain.AdminStats}
// @Failure      401  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /admin/stats [get]
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminUC.GetStats(c)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Dashboard statistics", stats)
}

// ListUsers godoc
// @Summary      List all users
// @Description  Paginated, newest first, each enriched with subscription status and plan
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        role      query     string  false  "USER or ADMIN"
// @Param        page      query     int     false  "Page number"
// @Param        pageSize  query     int     false  "Items per page"
// @Success      200       {object}  response.Response
// @Failure      403       {object}  response.Response
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))

	result, err := h.adminUC.ListUsers(c, domain.Role(c.Query("role")), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Users list", result)
}

// GetUser godoc
// @Summary      Get user detail
// @Description  User with projects and onboarding answers
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=domain.AdminUserDetail}
// @Failure      404  {object}  response.Response
// @Router       /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	detail, err := h.adminUC.GetUser(c, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "User detail", detail)
}

// CreateUser godoc
// @Summary      Create a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      domain.CreateUserRequest  true  "User"
// @Success      201   {object}  response.Response{data=domain.AdminUser}
// @Failure      400   {object}  response.Response
// @Failure      409   {object}  response.Response
// @Router       /admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	user, err := h.adminUC.CreateUser(c, req)
	if err != nil {
		c.Error(err)
		return
	}
	h.audit(c, security.EventUserCreated, user.ID)
	response.Success(c, http.StatusCreated, "User created", user)
}

// UpdateUser godoc
// @Summary      Update a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                    true  "User ID"
// @Param        body  body      domain.UpdateUserRequest  true  "Fields to change"
// @Success      200   {object}  response.Response{data=domain.AdminUser}
// @Failure      400   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req domain.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	user, err := h.adminUC.UpdateUser(c, c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	if req.Role != "" {
		h.audit(c, security.EventRoleModified, user.ID)
	}
	response.Success(c, http.StatusOK, "User updated", user)
}

// DeleteUser godoc
// @Summary      Delete a user
// @Description  Cascades to the user's projects, sessions and onboarding answers
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID := c.Param("id")
	if err := h.adminUC.DeleteUser(c, userID); err != nil {
		c.Error(err)
		return
	}
	h.audit(c, security.EventUserDeleted, userID)
	response.Success(c, http.StatusOK, "User deleted", nil)
}

// ListUserProjects godoc
// @Summary      List a user's projects
// @Description  Most recent first
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=[]domain.Project}
// @Failure      404  {object}  response.Response
// @Router       /admin/users/{id}/projects [get]
func (h *AdminHandler) ListUserProjects(c *gin.Context) {
	projects, err := h.adminUC.ListUserProjects(c, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Projects", projects)
}

// CreateProject godoc
// @Summary      Create a project for a user
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                       true  "User ID"
// @Param        body  body      domain.CreateProjectRequest  true  "Project"
// @Success      201   {object}  response.Response{data=domain.Project}
// @Failure      400   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /admin/users/{id}/projects [post]
func (h *AdminHandler) CreateProject(c *gin.Context) {
	var req domain.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	project, err := h.adminUC.CreateProject(c, c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusCreated, "Project created", project)
}

// UpdateProject godoc
// @Summary      Update a project
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                       true  "Project ID"
// @Param        body  body      domain.UpdateProjectRequest  true  "Fields to change"
// @Success      200   {object}  response.Response{data=domain.Project}
// @Failure      400   {object}  response.Response
// @Failure      404   {object}  response.Response
// @Router       /admin/projects/{id} [put]
func (h *AdminHandler) UpdateProject(c *gin.Context) {
	var req domain.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest(validation.Message(err)))
		return
	}

	project, err := h.adminUC.UpdateProject(c, c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Project updated", project)
}

// DeleteProject godoc
// @Summary      Delete a project
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /admin/projects/{id} [delete]
func (h *AdminHandler) DeleteProject(c *gin.Context) {
	if err := h.adminUC.DeleteProject(c, c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Project deleted", nil)
}

// ListSubscriptions godoc
// @Summary      List live subscriptions
// @Description  Cursor paged with starting_after
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status          query     string  false  "Provider status filter"
// @Param        limit           query     int     false  "Page size (1-100)"
// @Param        starting_after  query     string  false  "Cursor"
// @Success      200             {object}  response.Response{data=domain.SubscriptionPage}
// @Failure      503             {object}  response.Response
// @Router       /admin/subscriptions [get]
func (h *AdminHandler) ListSubscriptions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	page, err := h.adminUC.ListSubscriptions(c, domain.SubscriptionListParams{
		Status:        c.Query("status"),
		Limit:         limit,
		StartingAfter: c.Query("starting_after"),
	})
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Subscriptions", page)
}

// Export godoc
// @Summary      Export users and projects
// @Tags         admin
// @Produce      application/octet-stream
// @Security     BearerAuth
// @Param        format  query  string  false  "xlsx (default) or csv"
// @Success      200
// @Failure      400     {object}  response.Response
// @Router       /admin/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	file, err := h.adminUC.Export(c, c.Query("format"))
	if err != nil {
		c.Error(err)
		return
	}
	h.audit(c, security.EventDataExport, file.Filename)

	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
