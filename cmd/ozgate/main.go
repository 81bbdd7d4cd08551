package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ozgate/ozgate/pkg/config"
	"github.com/ozgate/ozgate/pkg/ozflow"
	"github.com/ozgate/ozgate/pkg/session"
	"github.com/ozgate/ozgate/pkg/upstream"
	"github.com/ozgate/ozgate/pkg/web"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func main() {
	godotenv.Load()

	if os.Getenv("OZGATE_DEBUG") == "true" {
		// slog.SetLogLoggerLevel requires Go 1.22; this is the 1.21 equivalent.
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(getEnv("OZGATE_CONFIG_PATH", "ozgate.yaml"))
	if err != nil {
		log.Fatal(err)
	}

	encryptKey, signKey, err := cfg.Cookie.Keys()
	if err != nil {
		log.Fatal(err)
	}

	api := upstream.New(cfg.Upstream)
	refresher := session.NewRefresher(api)
	validatorSvc := session.NewValidator(api, refresher)
	flow := ozflow.New(api, cfg.ViewClientID, cfg.LandingURI)
	codec := web.NewCookieCodec(encryptKey, signKey, cfg.TLS)

	crumbs, err := web.NewCrumbService()
	if err != nil {
		log.Fatal(err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Use(middleware.Recover())

	handler := web.NewHandler(web.Config{
		Product:  cfg.Product,
		LoginURI: cfg.LoginURI,
	}, flow, validatorSvc, codec, crumbs)
	handler.MountRoutes(e)

	if cfg.StaticDir != "" {
		e.Static("/static", cfg.StaticDir)
	}

	slog.Info("starting ozgate", "addr", cfg.Addr, "upstream", cfg.Upstream.BaseURL)
	if err := e.Start(cfg.Addr); err != nil {
		log.Fatal(err)
	}
}
