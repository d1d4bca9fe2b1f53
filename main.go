package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/toxnroot/trans-invoice-v3/config"
	"github.com/toxnroot/trans-invoice-v3/handlers"
	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/middleware"
	"github.com/toxnroot/trans-invoice-v3/suggest"
)

const serviceName = "trans-invoice-api"

func main() {
	app := &cli.App{
		Name:  "trans-invoice",
		Usage: "invoice ledger for the textile shop",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "backup",
				Usage: "write every invoice to a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (- for stdout)", Value: "-"},
				},
				Action: backup,
			},
			{
				Name:  "restore",
				Usage: "upsert invoices from a backup file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "backup file", Required: true},
				},
				Action: restore,
			},
			{
				Name:  "purge",
				Usage: "delete every invoice and reset numbering",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Usage: "confirm the purge"},
				},
				Action: purge,
			},
			{
				Name:  "token",
				Usage: "mint an access token for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "uid", Usage: "user id (token subject)", Required: true},
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "name"},
				},
				Action: token,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// deps bundles what every command needs.
type deps struct {
	cfg    *config.Config
	log    *logrus.Logger
	svc    *ledger.Service
	closer func()
}

func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := config.NewLogger(cfg)

	s, err := config.InitStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rs, err := config.InitSuggestionStore(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	svc, err := config.NewService(cfg, s, rs, log)
	if err != nil {
		s.Close()
		return nil, err
	}

	return &deps{
		cfg: cfg,
		log: log,
		svc: svc,
		closer: func() {
			if rs != nil {
				rs.Close()
			}
			s.Close()
		},
	}, nil
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.closer()
	if err := a.cfg.RequireJWTSecret(); err != nil {
		return err
	}

	router := setupRouter(a.cfg, a.svc, config.InitCompleter(a.cfg, a.log), a.log)
	srv := &http.Server{
		Addr:    ":" + a.cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithFields(logrus.Fields{"port": a.cfg.Port, "driver": a.cfg.StoreDriver}).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupRouter(cfg *config.Config, svc *ledger.Service, completer suggest.Completer, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	invoiceHandler := handlers.NewInvoiceHandler(svc, cfg, log)
	userHandler := handlers.NewUserHandler(svc, cfg, log)
	suggestionHandler := handlers.NewSuggestionHandler(svc, completer, log)
	backupHandler := handlers.NewBackupHandler(svc, log)

	api := router.Group("/api/v1")
	api.Use(middleware.JwtAuthMiddleware(cfg))
	{
		// Token only: the profile may not exist yet.
		api.POST("/profile", userHandler.Register)
		api.POST("/auth/refresh", userHandler.Refresh)

		member := api.Group("")
		member.Use(middleware.LoadProfile(svc))
		{
			member.GET("/profile", userHandler.Me)
			member.GET("/drafts", invoiceHandler.NewDraft)

			member.GET("/invoices", invoiceHandler.ListInvoices)
			member.POST("/invoices", invoiceHandler.CreateInvoice)
			member.GET("/invoices/:id", invoiceHandler.GetInvoice)
			member.PATCH("/invoices/:id", invoiceHandler.UpdateInvoice)
			member.PUT("/invoices/:id/status", invoiceHandler.UpdateStatus)
			member.PUT("/invoices/:id/note", invoiceHandler.UpdateNote)
			member.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)

			member.POST("/invoices/:id/products", invoiceHandler.AddProduct)
			member.PUT("/invoices/:id/products/:index", invoiceHandler.UpdateProduct)
			member.DELETE("/invoices/:id/products/:index", invoiceHandler.DeleteProduct)

			member.GET("/suggestions/:list", suggestionHandler.List)
			member.GET("/suggestions/:list/complete", suggestionHandler.Complete)

			admin := member.Group("")
			admin.Use(middleware.RequireRole("admin"))
			{
				admin.POST("/suggestions/:list", suggestionHandler.Add)
				admin.DELETE("/suggestions/:list", suggestionHandler.Delete)

				admin.GET("/users", userHandler.ListUsers)
				admin.PUT("/users/:uid/role", userHandler.UpdateRole)

				admin.GET("/backup", backupHandler.Backup)
				admin.POST("/restore", backupHandler.Restore)
				admin.DELETE("/invoices", invoiceHandler.DeleteAllInvoices)
				admin.GET("/counter", invoiceHandler.Counter)
			}
		}
	}

	return router
}

func backup(c *cli.Context) error {
	a, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer a.closer()

	data, err := a.svc.Backup(c.Context)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "-" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	a.log.WithField("file", out).Info("backup written")
	return nil
}

func restore(c *cli.Context) error {
	data, err := os.ReadFile(c.String("in"))
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	a, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer a.closer()

	n, err := a.svc.Restore(c.Context, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "restored %d invoices\n", n)
	return nil
}

func purge(c *cli.Context) error {
	if !c.Bool("yes") {
		return cli.Exit("refusing to purge without --yes", 2)
	}

	a, err := bootstrap(c.Context)
	if err != nil {
		return err
	}
	defer a.closer()

	n, err := a.svc.DeleteAllInvoices(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %d invoices\n", n)
	return nil
}

func token(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}

	tok, err := middleware.GenerateToken(c.String("uid"), c.String("email"), c.String("name"), cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, tok)
	return nil
}
