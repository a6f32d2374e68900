package main

import (
	"catalog/app"
	"catalog/internal/bootstrap"
	"catalog/internal/middleware"
	"catalog/internal/querycache"
	"catalog/pkg/aws"
	"catalog/pkg/config"
	"catalog/pkg/events"
	"catalog/pkg/httperror"
	"catalog/pkg/logger"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Request any
type Response any

type HandlerInterface[R Request, Res Response] interface {
	Handle(ctx context.Context, req *R) (*Res, error)
}

func handle[R Request, Res Response](handler HandlerInterface[R, Res]) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req R

		if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
			return writeError(c, httperror.BadRequest(
				"request.invalid_body",
				"Invalid body",
				fiber.Map{"error": err.Error()},
			))
		}

		if err := c.ParamsParser(&req); err != nil {
			return writeError(c, httperror.BadRequest(
				"request.invalid_path_params",
				"Invalid path params",
				fiber.Map{"error": err.Error()},
			))
		}

		if err := c.QueryParser(&req); err != nil {
			return writeError(c, httperror.BadRequest(
				"request.invalid_query_params",
				"Invalid query params",
				fiber.Map{"error": err.Error()},
			))
		}

		if err := c.ReqHeaderParser(&req); err != nil {
			return writeError(c, httperror.BadRequest(
				"request.invalid_headers",
				"Invalid headers",
				fiber.Map{"error": err.Error()},
			))
		}

		ctx := app.WithFiberContext(c.UserContext(), c)

		res, err := handler.Handle(ctx, &req)
		if err != nil {
			return writeError(c, err)
		}

		return c.JSON(res)
	}
}

type dependencies struct {
	repository app.Repository
	cache      *querycache.Cache
	publisher  events.Publisher
	storage    app.ObjectStorage
	service    string
}

type pinger interface {
	Ping(ctx context.Context) error
}

func newServer() *fiber.App {
	server := fiber.New(fiber.Config{
		IdleTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		Concurrency:  256 * 1024,
		BodyLimit:    2 * app.MaxImageBytes,
	})

	server.Use(middleware.NewRequestIDMiddleware())
	server.Use(middleware.NewMetricsMiddleware())

	server.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return server
}

func setupRoutes(server *fiber.App, deps dependencies) {
	hooks := app.NewMutationHooks(deps.cache, deps.publisher, deps.service)

	listCategoriesHandler := app.NewListCategoriesHandler(deps.repository, deps.cache)
	listAllCategoriesHandler := app.NewListAllCategoriesHandler(deps.repository, deps.cache)
	getCategoryHandler := app.NewGetCategoryHandler(deps.repository)
	createCategoryHandler := app.NewCreateCategoryHandler(deps.repository, hooks)
	updateCategoryHandler := app.NewUpdateCategoryHandler(deps.repository, hooks)
	deleteCategoryHandler := app.NewDeleteCategoryHandler(deps.repository, hooks)

	listProductsHandler := app.NewListProductsHandler(deps.repository, deps.cache)
	getProductHandler := app.NewGetProductHandler(deps.repository)
	createProductHandler := app.NewCreateProductHandler(deps.repository, hooks)
	updateProductHandler := app.NewUpdateProductHandler(deps.repository, hooks)
	deleteProductHandler := app.NewDeleteProductHandler(deps.repository, hooks)

	uploadImageHandler := app.NewUploadImageHandler(deps.storage, hooks)
	deleteImageHandler := app.NewDeleteImageHandler(deps.storage, hooks)

	server.Get("/health", func(c *fiber.Ctx) error {
		if p, ok := deps.repository.(pinger); ok {
			if err := p.Ping(c.UserContext()); err != nil {
				logger.FromContext(c.UserContext()).Error("Health check failed", zap.Error(err))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := server.Group("/api/v1")

	api.Get("/categories", handle[app.ListCategoriesRequest, app.ListCategoriesResponse](listCategoriesHandler))
	api.Get("/categories/all", handle[app.ListAllCategoriesRequest, app.ListAllCategoriesResponse](listAllCategoriesHandler))
	api.Get("/categories/:id", handle[app.GetCategoryRequest, app.GetCategoryResponse](getCategoryHandler))
	api.Post("/categories", handle[app.CreateCategoryRequest, app.CategoryMutationResponse](createCategoryHandler))
	api.Patch("/categories/:id", handle[app.UpdateCategoryRequest, app.CategoryMutationResponse](updateCategoryHandler))
	api.Delete("/categories/:id", handle[app.DeleteCategoryRequest, app.DeleteCategoryResponse](deleteCategoryHandler))

	api.Get("/products", handle[app.ListProductsRequest, app.ListProductsResponse](listProductsHandler))
	api.Get("/products/:id", handle[app.GetProductRequest, app.GetProductResponse](getProductHandler))
	api.Post("/products", handle[app.CreateProductRequest, app.ProductMutationResponse](createProductHandler))
	api.Patch("/products/:id", handle[app.UpdateProductRequest, app.ProductMutationResponse](updateProductHandler))
	api.Delete("/products/:id", handle[app.DeleteProductRequest, app.DeleteProductResponse](deleteProductHandler))

	api.Post("/uploads/:bucket", handle[app.UploadImageRequest, app.UploadImageResponse](uploadImageHandler))
	api.Delete("/uploads/:bucket", handle[app.DeleteImageRequest, app.DeleteImageResponse](deleteImageHandler))
}

func main() {
	appConfig := config.Read()

	if _, err := logger.Init(true); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer zap.L().Sync()
	zap.L().Info("app starting...")
	zap.L().Info("app config",
		zap.String("port", appConfig.Port),
		zap.String("databaseDriver", appConfig.DatabaseDriver),
		zap.Bool("redis", appConfig.RedisURL != ""),
		zap.Bool("rabbitmq", appConfig.RabbitMQURL != ""),
		zap.Duration("cacheTTL", appConfig.CacheTTL),
	)

	ctx := context.Background()

	repository, err := bootstrap.NewRepository(ctx, appConfig)
	if err != nil {
		zap.L().Fatal("Failed to open catalog repository", zap.Error(err))
	}
	defer repository.Close()

	cache, cacheCloser, err := bootstrap.NewQueryCache(ctx, appConfig)
	if err != nil {
		zap.L().Fatal("Failed to set up query cache", zap.Error(err))
	}
	defer cacheCloser.Close()

	publisher, err := bootstrap.NewPublisher(appConfig)
	if err != nil {
		zap.L().Fatal("Failed to connect event publisher", zap.Error(err))
	}
	if publisher != nil {
		defer publisher.Close()
	}

	bucket := aws.NewS3Bucket(appConfig)
	defer bucket.Close()

	server := newServer()
	setupRoutes(server, dependencies{
		repository: repository,
		cache:      cache,
		publisher:  publisher,
		storage:    bucket,
		service:    appConfig.ServiceName,
	})

	go func() {
		if err := server.Listen(fmt.Sprintf("0.0.0.0:%s", appConfig.Port)); err != nil {
			zap.L().Error("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	zap.L().Info("Server started on port", zap.String("port", appConfig.Port))

	gracefulShutdown(server, cache)
}

func gracefulShutdown(server *fiber.App, cache *querycache.Cache) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	zap.L().Info("Shutting down server...")

	if err := server.ShutdownWithTimeout(5 * time.Second); err != nil {
		zap.L().Error("Error during server shutdown", zap.Error(err))
	}
	cache.Wait()

	zap.L().Info("Server gracefully stopped")
}

func writeError(c *fiber.Ctx, err error) error {
	log := logger.FromContext(c.UserContext())

	var httpErr *httperror.Error
	if errors.As(err, &httpErr) {
		if httpErr.Status < fiber.StatusMultipleChoices {
			return c.SendStatus(httpErr.Status)
		}

		payload := fiber.Map{
			"code":    httpErr.Code,
			"message": httpErr.Message,
		}

		if httpErr.Details != nil {
			payload["details"] = httpErr.Details
		}

		if httpErr.Status >= fiber.StatusInternalServerError {
			log.Error("Handler returned server error", zap.String("code", httpErr.Code), zap.Error(httpErr))
		} else {
			log.Warn("Handler returned client error", zap.String("code", httpErr.Code), zap.Error(httpErr))
		}

		return c.Status(httpErr.Status).JSON(payload)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		log.Warn("Fiber validation error", zap.String("message", fiberErr.Message), zap.Error(err))
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"code":    "request.invalid",
			"message": fiberErr.Message,
		})
	}

	log.Error("Unhandled error", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"code":    "internal_server_error",
		"message": "Internal server error.",
	})
}
