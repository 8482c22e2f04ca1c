package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/rard/internal/app"
	"github.com/emrgen/rard/internal/config"
	"github.com/emrgen/rard/internal/jobs"
	"github.com/emrgen/rard/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Server represents the server
type Server struct {
	httpPort string
}

// NewServer creates a new server
func NewServer(httpPort string) *Server {
	return &Server{httpPort: httpPort}
}

// Start starts the server
func (s *Server) Start() {
	cfg := config.LoadConfig()
	if s.httpPort != "" {
		cfg.HTTPPort = s.httpPort
	}
	if err := Start(cfg); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// NewRouter builds the http handler of the catalogue api.
func NewRouter(svc *service.CatalogueService) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestTimeInterceptor())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	registerRoutes(router.Group("/v1"), &handler{svc: svc})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// Start serves the api and the consistency sweep until the process is interrupted.
func Start(cfg *config.Config) error {
	config.SetupLogging(cfg)
	httpPort := ":" + cfg.HTTPPort

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	executor := a.Executor()
	if err := executor.Run(); err != nil {
		return err
	}

	var watcher *jobs.ViolationWatcher
	if cfg.CheckInterval > 0 {
		watcher = jobs.NewViolationWatcher(cfg.CheckInterval, a.Service)
		go watcher.Run()
	}

	restServer := &http.Server{
		Addr:              httpPort,
		Handler:           NewRouter(a.Service),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// make sure to wait for the server to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting rest api on: ", httpPort)
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting rest api: %v", err)
			}
		}
		logrus.Infof("rest api stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	executor.Stop()
	if watcher != nil {
		watcher.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := restServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error stopping rest api: %v", err)
	}

	wg.Wait()

	return nil
}
