package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"github.com/ammar1510/gigchat/internal/api"
	"github.com/ammar1510/gigchat/internal/auth"
	"github.com/ammar1510/gigchat/internal/config"
	"github.com/ammar1510/gigchat/internal/database"
	"github.com/ammar1510/gigchat/internal/logger"
	"github.com/ammar1510/gigchat/internal/models"
	"github.com/ammar1510/gigchat/internal/websocket"
)

var log = logger.New("devserver")

func main() {
	configPath := flag.StringP("config", "c", "", "path to a config file (yaml, json or toml)")
	port := flag.StringP("port", "p", "", "listen port, overrides PORT")
	seed := flag.Bool("seed", false, "create demo users, a project and a conversation on start")
	flag.Parse()

	if err := run(*configPath, *port, *seed); err != nil {
		log.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(configPath, port string, seed bool) error {
	defer logger.Sync()

	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}
	if seed {
		cfg.Seed = true
	}

	// Set Gin mode based on environment
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	auth.InitJWTKey([]byte(cfg.JWTSecret))

	dbType := database.DatabaseType(cfg.DBType)
	db, err := database.NewDatabase(dbType, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Connected to %s database successfully", dbType)

	if cfg.Seed {
		if err := seedDemo(db); err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sockets := websocket.NewManager(db, cfg.SocketMessagesPerMinute)
	go sockets.Run(ctx)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(db, sockets, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	// Give the server 5 seconds to finish processing remaining requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited properly")
	return nil
}

// seedDemo creates a client who owns one project, a freelancer whose bid on
// it is accepted, a second bidder, and a short conversation. Every demo
// account uses the password "password123".
func seedDemo(db database.Store) error {
	hash, err := auth.HashPassword("password123")
	if err != nil {
		return err
	}

	users := make(map[string]*models.User)
	for _, demo := range []struct{ name, email, role string }{
		{"Olivia Owner", "olivia@example.com", "client"},
		{"Fred Freelancer", "fred@example.com", "freelancer"},
		{"Gina Bidder", "gina@example.com", "freelancer"},
	} {
		user, err := db.CreateUser(demo.name, demo.email, hash, demo.role)
		if errors.Is(err, database.ErrUserAlreadyExists) {
			log.Info("Demo data already present, skipping seed")
			return nil
		}
		if err != nil {
			return err
		}
		users[demo.email] = user
	}
	owner := users["olivia@example.com"]
	fred := users["fred@example.com"]
	gina := users["gina@example.com"]

	project, err := db.CreateProject(owner.ID, models.ProjectInput{
		Title:       "Landing page redesign",
		Description: "Refresh the marketing site",
		Budget:      1500,
	})
	if err != nil {
		return err
	}

	bid, err := db.CreateBid(fred.ID, models.BidInput{ProjectID: project.ID, Amount: 1400, Proposal: "Two weeks, three revisions"})
	if err != nil {
		return err
	}
	if _, err := db.CreateBid(gina.ID, models.BidInput{ProjectID: project.ID, Amount: 1200}); err != nil {
		return err
	}
	if _, err := db.AcceptBid(bid.ID, owner.ID); err != nil {
		return err
	}

	for _, m := range []struct{ from, to, body string }{
		{owner.ID, fred.ID, "Welcome aboard! Mockups by Friday?"},
		{fred.ID, owner.ID, "Sure, I will share a draft Thursday."},
		{gina.ID, owner.ID, "Happy to help if anything changes."},
	} {
		if _, err := db.CreateMessage(m.from, m.to, project.ID, m.body); err != nil {
			return err
		}
	}

	log.Info("Seeded project %s (owner %s, freelancer %s, bidder %s)", project.ID, owner.Email, fred.Email, gina.Email)
	return nil
}
