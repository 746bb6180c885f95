package controllers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"passbridge/config"
	"passbridge/pkg/builder"
	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
	"passbridge/pkg/middlewares"
	"passbridge/pkg/repo"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

// PassKitController serves the wallet-facing web service protocol. Paths and
// status codes are fixed by the PassKit contract; devices speak this
// verbatim and tolerate nothing else.
type PassKitController struct {
	router        *gin.RouterGroup
	registrations usecases.RegistrationUsecaseImply
	passes        usecases.PassUsecaseImply
	middleWares   *middlewares.Middlewares
}

func NewPassKitController(
	router *gin.RouterGroup, registrations usecases.RegistrationUsecaseImply,
	passes usecases.PassUsecaseImply, middleWare *middlewares.Middlewares,
) *PassKitController {
	return &PassKitController{
		router:        router,
		registrations: registrations,
		passes:        passes,
		middleWares:   middleWare,
	}
}

// InitRoutes
func (p *PassKitController) InitRoutes() {
	v1 := p.router.Group(config.GetConfig().Server.APIVersion)

	v1.GET("/devices/:device_id/registrations/:pass_type_id", p.ListUpdatedSerials)
	v1.POST("/log", p.DeviceLog)

	authed := v1.Group("", p.middleWares.ValidatePassToken)
	{
		authed.POST("/devices/:device_id/registrations/:pass_type_id/:serial", p.Register)
		authed.DELETE("/devices/:device_id/registrations/:pass_type_id/:serial", p.Unregister)
		authed.GET("/passes/:pass_type_id/:serial", p.GetLatestPass)
	}
}

// Register is a handler function for device registration in the PassKitController.
func (p *PassKitController) Register(ctx *gin.Context) {
	log := utilities.NewLogger("Register")

	var request entities.RegisterRequest
	if err := ctx.BindJSON(&request); err != nil {
		ctx.JSON(
			http.StatusBadRequest, entities.ErrorResponse{
				StatusCode: 400,
				Error:      "failed to register device",
				Message:    err.Error(),
			},
		)
		return
	}

	reg := entities.DeviceRegistration{
		DeviceLibraryID: ctx.Param("device_id"),
		PassTypeID:      ctx.Param("pass_type_id"),
		SerialNumber:    ctx.Param("serial"),
		PushToken:       request.PushToken,
	}

	created, err := p.registrations.Register(ctx, reg)
	if err != nil {
		log.WithError(err).Error("device registration failed")
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: 500,
				Error:      "failed to register device",
				Message:    err.Error(),
			},
		)
		return
	}

	if created {
		ctx.Status(http.StatusCreated)
		return
	}
	ctx.Status(http.StatusOK)
}

// Unregister is a handler function for removing a device registration in the PassKitController.
func (p *PassKitController) Unregister(ctx *gin.Context) {
	log := utilities.NewLogger("Unregister")

	err := p.registrations.Unregister(
		ctx, ctx.Param("device_id"), ctx.Param("pass_type_id"), ctx.Param("serial"),
	)
	if err != nil {
		log.WithError(err).Error("device unregistration failed")
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: 500,
				Error:      "failed to unregister device",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.Status(http.StatusOK)
}

// ListUpdatedSerials answers the device poll for changed passes. This route
// carries no Authorization header per the protocol; it only ever leaks
// serials the device already holds registrations for.
func (p *PassKitController) ListUpdatedSerials(ctx *gin.Context) {
	log := utilities.NewLogger("ListUpdatedSerials")

	var since time.Time
	if raw := ctx.Query("passesUpdatedSince"); raw != "" {
		since = time.Unix(cast.ToInt64(raw), 0)
	}

	response, err := p.registrations.ListUpdatedSerials(
		ctx, ctx.Param("device_id"), ctx.Param("pass_type_id"), since,
	)
	if err != nil {
		log.WithError(err).Error("listing updated serials failed")
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: 500,
				Error:      "failed to list updated passes",
				Message:    err.Error(),
			},
		)
		return
	}

	if response == nil {
		ctx.Status(http.StatusNoContent)
		return
	}

	ctx.JSON(http.StatusOK, response)
}

// GetLatestPass is a handler function for serving the freshest pkpass bundle in the PassKitController.
func (p *PassKitController) GetLatestPass(ctx *gin.Context) {
	log := utilities.NewLogger("GetLatestPass")

	serial := cast.ToString(ctx.MustGet(consts.PassSerial))

	pass, err := p.passes.GetBySerial(ctx, serial)
	if err != nil {
		log.WithError(err).Errorf("pass lookup failed for %s", serial)
		ctx.JSON(
			http.StatusInternalServerError, entities.ErrorResponse{
				StatusCode: 500,
				Error:      "failed to build pass",
				Message:    err.Error(),
			},
		)
		return
	}

	// devices send back the Last-Modified they saw; unchanged passes skip
	// the rebuild entirely
	if modifiedSince := ctx.GetHeader("If-Modified-Since"); modifiedSince != "" {
		if since, parseErr := http.ParseTime(modifiedSince); parseErr == nil {
			if !pass.LastUpdatedAt.Truncate(time.Second).After(since) {
				ctx.Status(http.StatusNotModified)
				return
			}
		}
	}

	artifact, err := p.passes.BuildLatest(ctx, pass)
	if err != nil {
		log.WithError(err).Errorf("pass build failed for %s", serial)
		// a pass whose template or signing material is gone cannot be
		// served anymore; only genuine internal faults stay a 500
		status := http.StatusInternalServerError
		if errors.Is(err, repo.ErrTemplateNotFound) || errors.Is(err, builder.ErrSigningConfig) {
			status = http.StatusNotFound
		}
		ctx.JSON(
			status, entities.ErrorResponse{
				StatusCode: status,
				Error:      "failed to build pass",
				Message:    err.Error(),
			},
		)
		return
	}

	ctx.Header("Last-Modified", pass.LastUpdatedAt.UTC().Format(http.TimeFormat))
	ctx.Data(http.StatusOK, builder.PkpassContentType, artifact.Data)
}

// DeviceLog receives PassKit client-side error logs. They only ever land in
// our own log stream.
func (p *PassKitController) DeviceLog(ctx *gin.Context) {
	log := utilities.NewLogger("DeviceLog")

	body, err := io.ReadAll(ctx.Request.Body)
	if err == nil && len(body) > 0 {
		log.Infof("PassKit device log: %s", string(body))
	}

	ctx.Status(http.StatusOK)
}
