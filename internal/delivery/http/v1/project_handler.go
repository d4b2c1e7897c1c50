package v1

import (
	"net/http"

	"launchpad-backend/internal/delivery/http/response"
	"launchpad-backend/internal/domain"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projectUC domain.ProjectUsecase
}

func NewProjectHandler(protected *gin.RouterGroup, projectUC domain.ProjectUsecase) {
	handler := &ProjectHandler{projectUC: projectUC}

	projects := protected.Group("/projects")
	{
		projects.GET("", handler.List)
		projects.GET("/:id", handler.Get)
	}
}

// List godoc
// @Summary      List my projects
// @Description  Most recent first
// @Tags         projects
// @Produce      json
// @Success      200  {object}  response.Response{data=[]domain.Project}
// @Failure      401  {object}  response.Response
// @Router       /projects [get]
// @Security     BearerAuth
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectUC.ListMine(c)
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Projects", projects)
}

// Get godoc
// @Summary      Get one of my projects
// @Tags         projects
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  response.Response{data=domain.Project}
// @Failure      404  {object}  response.Response
// @Router       /projects/{id} [get]
// @Security     BearerAuth
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectUC.GetMine(c, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, "Project", project)
}
