package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"passbridge/config"
	"passbridge/pkg/builder"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/middlewares"
	"passbridge/pkg/repo"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

type PassController struct {
	router      *gin.RouterGroup
	useCases    usecases.PassUsecaseImply
	middleWares *middlewares.Middlewares
}

// NewPassController
func NewPassController(
	router *gin.RouterGroup, passUseCases usecases.PassUsecaseImply, middleWare *middlewares.Middlewares,
) *PassController {
	return &PassController{
		router:      router,
		useCases:    passUseCases,
		middleWares: middleWare,
	}
}

// InitRoutes
func (p *PassController) InitRoutes() {
	v1 := p.router.Group(config.GetConfig().Server.APIVersion)
	{
		v1.POST("/passes", p.IssuePass)
		v1.POST("/pass/export", p.ExportPass)
	}
}

// IssuePass is a handler function for minting a new pass in the PassController.
func (p *PassController) IssuePass(ctx *gin.Context) {
	log := utilities.NewLogger("IssuePass")

	var request entities.IssueRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to issue pass",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}

	log.Info("Received IssuePass request for template:", request.TemplateID, " wallet:", request.WalletType)

	response, artifact, err := p.useCases.Issue(ctx, request)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repo.ErrTemplateNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to issue pass",
				Message:    err.Error(),
			},
		)
		return
	}

	if response.WalletType == consts.WalletApple {
		ctx.Header(
			"Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pkpass"`, response.SerialNumber),
		)
		ctx.Data(http.StatusCreated, builder.PkpassContentType, artifact.Data)
		return
	}

	ctx.JSON(
		http.StatusCreated, entities.Response{
			StatusCode: 201,
			Message:    "Successfully issued pass",
			Data:       response,
		},
	)
}

// ExportPass is a handler function for rendering an ad-hoc pkpass in the PassController.
func (p *PassController) ExportPass(ctx *gin.Context) {
	log := utilities.NewLogger("ExportPass")

	var request entities.ExportRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to export pass",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}

	artifact, err := p.useCases.Export(ctx, request)
	if err != nil {
		log.WithError(err).Error("pass export failed")
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: 500,
				Error:      "failed to export pass",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.Header("Content-Disposition", `attachment; filename="pass.pkpass"`)
	ctx.Data(http.StatusOK, builder.PkpassContentType, artifact.Data)
}
