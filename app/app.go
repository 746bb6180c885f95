package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	_ "net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"passbridge/config"
	builderLib "passbridge/pkg/builder"
	"passbridge/pkg/cache"
	"passbridge/pkg/consts"
	controllersLib "passbridge/pkg/controllers"
	"passbridge/pkg/middlewares"
	repoLib "passbridge/pkg/repo"
	"passbridge/pkg/repo/driver/assets"
	"passbridge/pkg/repo/driver/db"
	"passbridge/pkg/repo/driver/medium"
	"passbridge/pkg/usecases"
	"passbridge/utilities"
)

func initBuilders(conf *config.PassbridgeConfModel) (*builderLib.ApplePassBuilder, *builderLib.GooglePassBuilder) {
	log := utilities.NewLogger("initBuilders")

	log.Info("Loading Apple signing material")
	appleSigning, err := builderLib.LoadAppleSigningConfig(conf.Apple, config.ServerBaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("unable to load apple signing material")
	}

	log.Info("Loading Google signing material")
	googleSigning, err := builderLib.LoadGoogleSigningConfig(conf.Google)
	if err != nil {
		logrus.WithError(err).Fatal("unable to load google signing material")
	}

	return builderLib.NewApplePassBuilder(appleSigning), builderLib.NewGooglePassBuilder(googleSigning)
}

func Run() {
	ctx := context.Background()
	ctx, cancelFn := context.WithCancel(ctx)

	// init the env config
	conf, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("unable to initialize environment variables %s", err.Error())
	}

	// Initialise the logger
	utilities.InitLogger(conf.LogLevel)
	log := utilities.NewLogger("run")

	location, err := time.LoadLocation(conf.Automation.Timezone)
	if err != nil {
		log.WithError(err).Fatalf("invalid timezone %s", conf.Automation.Timezone)
	}
	time.Local = location

	log.Info("Initialising DB")
	session, err := db.NewCassandraSession(conf.DB)
	if err != nil {
		log.Fatal("unable to create cassandra session ", err.Error())
	}
	defer session.Close()

	log.Info("Initialising cache")
	cache.Init()

	appleBuilder, googleBuilder := initBuilders(conf)

	log.Info("Initialising APNs")
	apnsClient, err := medium.NewAPNSClient(conf.Apple)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise apns")
	}

	log.Info("Initialising Google Wallet client")
	walletClient, err := medium.NewGoogleWalletClient(ctx, conf.Google)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise google wallet client")
	}

	log.Info("Initialising asset store")
	assetStore, err := assets.NewStore(ctx, conf.Assets)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise asset store")
	}

	// here initalizing the router
	router := initRouter(conf)
	if conf.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	path, err := url.JoinPath(config.GetConfig().Server.APIPrefix, config.GetConfig().Mode)
	if err != nil {
		log.Panic(err)
	}

	api := router.Group(path)

	merchantWS := medium.NewSocket()

	{
		// repo initialization
		passRepo := repoLib.NewPassRepo(session, conf)
		templateRepo := repoLib.NewTemplateRepo(session, conf)
		registrationRepo := repoLib.NewRegistrationRepo(session, conf)
		repo := repoLib.NewRepo(session, conf)

		renderers := map[string]builderLib.PassRenderer{
			consts.WalletApple:  appleBuilder,
			consts.WalletGoogle: googleBuilder,
		}

		// initializing usecases
		passUseCases := usecases.NewPassUsecases(
			passRepo, templateRepo, assetStore, renderers, googleBuilder, walletClient, conf,
		)
		templateUseCases := usecases.NewTemplateUsecases(templateRepo, assetStore, conf)
		registrationUseCases := usecases.NewRegistrationUsecases(registrationRepo, passRepo)
		dispatchUseCases := usecases.NewDispatchUsecases(
			passRepo, registrationRepo, templateRepo, apnsClient, walletClient, googleBuilder, conf,
		)
		scanUseCases := usecases.NewScanUsecases(passRepo, dispatchUseCases, merchantWS)
		useCases := usecases.NewUseCases(repo)

		// initializing middleware
		m := middlewares.NewMiddlewares(passUseCases)

		// initializing controllersLib
		passKitControllers := controllersLib.NewPassKitController(api, registrationUseCases, passUseCases, m)
		passControllers := controllersLib.NewPassController(api, passUseCases, m)
		templateControllers := controllersLib.NewTemplateController(api, templateUseCases, m)
		scanControllers := controllersLib.NewScanController(api, scanUseCases, merchantWS, m)
		webhookControllers := controllersLib.NewWebhookController(api, passUseCases, m)
		controllers := controllersLib.NewController(api, useCases, m)

		// init the routes
		passKitControllers.InitRoutes()
		passControllers.InitRoutes()
		templateControllers.InitRoutes()
		scanControllers.InitRoutes()
		webhookControllers.InitRoutes()
		controllers.InitRoutes()
	}

	// run the app
	launch(ctx, cancelFn, router)
}

func initRouter(conf *config.PassbridgeConfModel) *gin.Engine {

	router := gin.Default()
	gin.SetMode(gin.DebugMode)

	router.Use(
		cors.New(
			cors.Config{
				AllowOrigins: []string{"*"},
				AllowMethods: []string{"PUT", "PATCH", "POST", "DELETE", "GET", "OPTIONS"},
				AllowHeaders: []string{
					"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "accept",
					"origin", "Cache-Control", "If-Modified-Since", "HOST",
				},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			},
		),
	)

	mode := config.GetConfig().Mode
	if mode == "stage" || mode == "local" {
		router.GET("/debug/pprof/*profile", gin.WrapF(pprof.Index))
	}

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	return router
}

// launch
func launch(ctx context.Context, cancelFn context.CancelFunc, router *gin.Engine) {
	log := utilities.NewLogger("launch")
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetConfig().Server.Port),
		Handler: router,
	}

	go func() {
		// service connections
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	fmt.Println("Server listening in...", config.GetConfig().Server.Port)
	// Wait for interrupt signal to gracefully shutdown the server with
	// a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown Server ...")
	cancelFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	<-ctx.Done()
	log.Println("Server exiting")
}
