package main

import (
	"context"
	"log"
	"os"

	"github.com/opentracing/opentracing-go"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/orgohq/mailgate/config"
	"github.com/orgohq/mailgate/dto"
	"github.com/orgohq/mailgate/internal/database"
	"github.com/orgohq/mailgate/internal/logger"
	"github.com/orgohq/mailgate/internal/repository"
	"github.com/orgohq/mailgate/internal/tracing"
	"github.com/orgohq/mailgate/server"
	"github.com/orgohq/mailgate/services"
)

func main() {
	app := &cli.App{
		Name:  "mailgate",
		Usage: "email gateway for the org-ops backend",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(c *cli.Context) error {
					cfg, db, err := setup()
					if err != nil {
						return err
					}
					if err := repository.MigrateDB(databaseConfig(cfg), db); err != nil {
						return err
					}
					log.Println("Database migration completed successfully")
					return nil
				},
			},
			{
				Name:  "server",
				Usage: "Start the application server",
				Action: func(c *cli.Context) error {
					cfg, db, err := setup()
					if err != nil {
						return err
					}
					srv, err := server.NewServer(cfg, db)
					if err != nil {
						return err
					}
					return srv.Run()
				},
			},
			{
				Name:  "poll",
				Usage: "Run one ingestion cycle and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "org", Usage: "limit to one organization id"},
					&cli.StringFlag{Name: "account", Usage: "limit to one account config id"},
				},
				Action: func(c *cli.Context) error {
					cfg, db, err := setup()
					if err != nil {
						return err
					}
					return runPoll(cfg, db, c.String("org"), c.String("account"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.InitDatabase(databaseConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	return cfg, db, nil
}

func databaseConfig(cfg *config.Config) *database.DatabaseConfig {
	return &database.DatabaseConfig{
		Host:            cfg.DatabaseConfig.Host,
		Port:            cfg.DatabaseConfig.Port,
		User:            cfg.DatabaseConfig.User,
		DBName:          cfg.DatabaseConfig.DBName,
		Password:        cfg.DatabaseConfig.Password,
		MaxConn:         cfg.DatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.DatabaseConfig.LogLevel,
		SSLMode:         cfg.DatabaseConfig.SSLMode,
	}
}

// runPoll wires the pipeline without the HTTP server or cron scheduler and
// runs a single poll, for operators and one-shot jobs.
func runPoll(cfg *config.Config, db *gorm.DB, organizationID, accountConfigID string) error {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer closer.Close()
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return err
	}
	defer svcs.Close()

	results, err := svcs.EmailIngestor.PollMailboxes(context.Background(), dto.PollOptions{
		OrganizationID:  organizationID,
		AccountConfigID: accountConfigID,
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		appLogger.Infof("batch %s account %s status %s fetched %d persisted %d failed %d",
			result.BatchID, result.AccountConfigID, result.Status,
			result.TotalFetched, result.TotalPersisted, result.TotalFailed)
	}
	return nil
}
