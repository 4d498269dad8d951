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

	"github.com/emrgen/communication/internal/cache"
	"github.com/emrgen/communication/internal/compress"
	"github.com/emrgen/communication/internal/config"
	"github.com/emrgen/communication/internal/jobs"
	"github.com/emrgen/communication/internal/realtime"
	"github.com/emrgen/communication/internal/service"
	"github.com/emrgen/communication/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Server represents the communication REST server.
type Server struct {
	httpPort string
}

// NewServer creates a new server.
func NewServer(httpPort string) *Server {
	return &Server{
		httpPort: httpPort,
	}
}

// Start starts the server.
func (s *Server) Start() {
	if err := Start(s.httpPort); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// Start wires the store, cache and services together and serves the REST API
// until interrupted.
func Start(httpPort string) error {
	httpPort = ":" + httpPort

	cnf := config.LoadConfig()
	rdb := config.GetDb(cnf)

	rl, err := net.Listen("tcp", httpPort)
	if err != nil {
		return err
	}

	redis, err := cache.NewRedis(cnf.RedisURL)
	if err != nil {
		return err
	}

	commStore := store.NewGormStore(rdb)
	err = commStore.Migrate()
	if err != nil {
		return err
	}

	publisher := realtime.NewRedisPublisher(redis.Client())
	codec := compress.FromName(cnf.Compression)

	svc := service.NewCommunicationService(codec, commStore, publisher)
	svc.SetCompression(cnf.Compression)
	svc.SetCache(redis)

	runner := jobs.NewTaskExecutor(nil, []jobs.CronJob{
		jobs.NewDeliverySyncTask("@every 30s", commStore, svc),
	})
	runner.Run()

	handler := NewHandler(svc)

	apiMux := http.NewServeMux()
	handler.Register(apiMux)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-User"},
		AllowCredentials: true,
	})

	restServer := &http.Server{
		Addr:    httpPort,
		Handler: c.Handler(apiMux),
	}

	// make sure to wait for the server to stop before exiting
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Info("starting rest server on: ", httpPort)
		if err := restServer.Serve(rl); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting rest server: %v", err)
			}
		}
		logrus.Infof("rest server stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	<-sigs
	// clean Ctrl+C output
	fmt.Println()

	runner.Stop()

	err = restServer.Shutdown(context.Background())
	if err != nil {
		logrus.Errorf("error stopping rest server: %v", err)
	}

	if err := redis.Close(); err != nil {
		logrus.Errorf("error closing redis: %v", err)
	}

	wg.Wait()

	return nil
}
