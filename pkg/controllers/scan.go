package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"passbridge/config"
	"passbridge/pkg/entities"
	"passbridge/pkg/middlewares"
	"passbridge/pkg/repo"
	"passbridge/pkg/repo/driver/medium"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

type ScanController struct {
	router      *gin.RouterGroup
	useCases    usecases.ScanUsecaseImply
	middleWares *middlewares.Middlewares
	ws          *medium.Socket
}

// NewScanController
func NewScanController(
	router *gin.RouterGroup, scanUseCases usecases.ScanUsecaseImply,
	ws *medium.Socket, middleWare *middlewares.Middlewares,
) *ScanController {
	return &ScanController{
		router:      router,
		useCases:    scanUseCases,
		middleWares: middleWare,
		ws:          ws,
	}
}

// InitRoutes
func (s *ScanController) InitRoutes() {
	v1 := s.router.Group(config.GetConfig().Server.APIVersion)
	{
		v1.POST("/scan", s.HandleScan)
		v1.GET("/ws", s.WebsocketHandler)
	}
}

// HandleScan is a handler function for point-of-sale scan ingestion in the ScanController.
func (s *ScanController) HandleScan(ctx *gin.Context) {
	log := utilities.NewLogger("HandleScan")

	var request entities.ScanRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to process scan",
				Message:    fmt.Sprintf("binding failed: %s", err.Error()),
			},
		)
		return
	}

	log.Info("Received scan for pass:", request.PassID, " action:", request.Action)

	pass, err := s.useCases.HandleScan(ctx, request)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repo.ErrPassNotFound):
			status = http.StatusNotFound
		case errors.Is(err, usecases.ErrNotRedeemable), errors.Is(err, usecases.ErrUnknownAction):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, usecases.ErrScanConflict):
			status = http.StatusConflict
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to process scan",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.JSON(
		http.StatusOK, entities.Response{
			StatusCode: 200,
			Message:    "Scan processed",
			Data:       pass.State,
		},
	)
}

// WebsocketHandler upgrades a merchant dashboard connection onto the live
// scan feed.
func (s *ScanController) WebsocketHandler(ctx *gin.Context) {
	merchantID := ctx.Query("merchant_id")
	if merchantID == "" {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Message:    "merchant_id is required",
			},
		)
		return
	}

	upgrader := medium.Upgrade()
	wsConn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("failed to upgrade websocket connection")
		return
	}

	s.ws.Add(merchantID, wsConn)
}
