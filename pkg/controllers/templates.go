package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"passbridge/config"
	"passbridge/pkg/entities"
	"passbridge/pkg/middlewares"
	"passbridge/pkg/repo"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

type TemplateController struct {
	router      *gin.RouterGroup
	useCases    usecases.TemplateUsecaseImply
	middleWares *middlewares.Middlewares
}

// NewTemplateController
func NewTemplateController(
	router *gin.RouterGroup, templateUseCases usecases.TemplateUsecaseImply, middleWare *middlewares.Middlewares,
) *TemplateController {
	return &TemplateController{
		router:      router,
		useCases:    templateUseCases,
		middleWares: middleWare,
	}
}

// InitRoutes
func (t *TemplateController) InitRoutes() {
	v1 := t.router.Group(config.GetConfig().Server.APIVersion)
	{
		v1.POST("/templates", t.CreateTemplate)
		v1.GET("/templates/:template_id", t.GetTemplate)
	}
}

// CreateTemplate is a handler function for template ingestion in the TemplateController.
func (t *TemplateController) CreateTemplate(ctx *gin.Context) {
	log := utilities.NewLogger("CreateTemplate")

	var request entities.TemplateRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to create template",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}

	tmpl, err := t.useCases.Create(ctx, request)
	if err != nil {
		log.WithError(err).Error("template creation failed")
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to create template",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusCreated, entities.Response{
			StatusCode: 201,
			Message:    "Successfully created template",
			Data:       tmpl,
		},
	)
}

// GetTemplate is a handler function for fetching a template in the TemplateController.
func (t *TemplateController) GetTemplate(ctx *gin.Context) {
	tmpl, err := t.useCases.Get(ctx, ctx.Param("template_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repo.ErrTemplateNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to fetch template",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Successfully fetched template",
			Data:       tmpl,
		},
	)
}
