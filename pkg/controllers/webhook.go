package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"passbridge/config"
	"passbridge/pkg/entities"
	"passbridge/pkg/middlewares"
	"passbridge/pkg/repo"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

type WebhookController struct {
	router      *gin.RouterGroup
	useCases    usecases.PassUsecaseImply
	middleWares *middlewares.Middlewares
}

// NewWebhookController
func NewWebhookController(
	router *gin.RouterGroup, passUseCases usecases.PassUsecaseImply, middleWare *middlewares.Middlewares,
) *WebhookController {
	return &WebhookController{
		router:      router,
		useCases:    passUseCases,
		middleWares: middleWare,
	}
}

// InitRoutes
func (w *WebhookController) InitRoutes() {
	v1 := w.router.Group(config.GetConfig().Server.APIVersion)
	v1.POST("/webhooks/google-wallet", w.GoogleWalletWebhook)
}

// GoogleWalletWebhook is a handler function for Google Wallet save/delete callbacks in the WebhookController.
func (w *WebhookController) GoogleWalletWebhook(ctx *gin.Context) {
	log := utilities.NewLogger("GoogleWalletWebhook")

	var request entities.GoogleWebhookRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to process wallet event",
				Message:    err.Error(),
			},
		)
		return
	}

	if err := w.useCases.HandleGoogleWebhook(ctx, request); err != nil {
		// unknown objects answer 200 so Google stops retrying callbacks
		// for passes we never issued
		if errors.Is(err, repo.ErrPassNotFound) {
			log.Warnf("Wallet event for unknown object %s", request.ObjectID)
			ctx.Status(http.StatusOK)
			return
		}

		log.WithError(err).Error("wallet event processing failed")
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: 500,
				Error:      "failed to process wallet event",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.Status(http.StatusOK)
}
