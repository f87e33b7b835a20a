package protocal

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"facebot/configs"
	httpAdapter "facebot/internal/adapters/input/http"
	"facebot/internal/adapters/output/filestore"
	lineAdapter "facebot/internal/adapters/output/line"
	"facebot/internal/adapters/output/memory"
	"facebot/internal/adapters/output/postgres"
	"facebot/internal/adapters/output/remote"
	"facebot/internal/application"
	"facebot/internal/domain"
	"facebot/internal/ports/output"
	"facebot/pkg/database_driver/gorm"

	swagger "github.com/arsmn/fiber-swagger/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
)

// bodyLimit leaves room for the largest accepted video plus multipart overhead
const bodyLimit = domain.MaxVideoBytes + 8*domain.MiB

const restoreTimeout = 10 * time.Second

type config struct {
	ENV string `mapstructure:"env"`
}

// ServeHTTP func
func ServeHTTP() error {
	var cfg config
	flag.StringVar(&cfg.ENV, "env", "", "the environment to use")
	flag.Parse()
	configs.InitViper("./configs", cfg.ENV)
	conf := configs.GetViper()
	configureLogging(conf.Log)
	logrus.Info(conf.Env)

	// Output adapter (state storage)
	storage, ping, closeStorage, err := newStateStorage(conf)
	if err != nil {
		return err
	}

	// Output adapter (session store), restored before anything observes it
	store := memory.NewMemorySessionStore()
	persister := application.NewPersister(storage, conf.Storage.Key)
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	err = persister.Restore(ctx, store)
	cancel()
	if errors.Is(err, domain.ErrStorageUnavailable) {
		closeStorage()
		return err
	}
	if err != nil {
		logrus.Warnf("Starting with a fresh console: %v", err)
	}
	store.Subscribe(persister.Observe)

	broker := httpAdapter.NewEventBroker()
	store.Subscribe(broker.Publish)

	// Output adapter (remote gateway)
	gateway, err := remote.NewGatewayClientAdapter(conf.Remote)
	if err != nil {
		return err
	}
	// Application service (use case)
	console := application.NewReconciler(store, gateway)
	// Input adapter (HTTP handler)
	hdl := httpAdapter.New(console, broker, ping)

	app := fiber.New(fiber.Config{
		AppName:   "facebot",
		BodyLimit: bodyLimit,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept,Authorization",
	}))
	app.Get("/swagger/*", swagger.HandlerDefault) // default
	httpAdapter.RegisterRoutes(app, hdl)

	// Wire up LINE hexagonal architecture
	if conf.Line.Enabled {
		// Output adapter (LINE client)
		lineClient, err := lineAdapter.NewLineClientAdapter(conf.Line.ChannelToken)
		if err != nil {
			logrus.Fatalf("Failed to create LINE client: %v", err)
		}
		// Application service (LINE webhook use case)
		lineWebhookSrv := application.NewLineWebhookService(lineClient, console, store)
		// Input adapter (LINE webhook handler)
		lineWebhookHdl := httpAdapter.NewLineWebhookHandler(lineWebhookSrv, conf.Line.ChannelSecret)
		httpAdapter.RegisterLineRoutes(app, lineWebhookHdl)
		logrus.Info("LINE webhook enabled at /webhook/line")
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range c {
			log.Println("Gracefull shut down ...")
			broker.Close()
			if err := app.Shutdown(); err != nil {
				log.Println("Error when shutdown server: ", err)
			}
			hdl.Wait()
			closeStorage()
		}
	}()

	logrus.Println("Listerning on port: ", conf.App.Port)
	return app.Listen(":" + conf.App.Port)
}

// newStateStorage selects the persistence backend. ping and closeFn are never nil.
func newStateStorage(conf *configs.Config) (output.StateStorage, func() error, func(), error) {
	noop := func() {}

	switch strings.ToLower(conf.Storage.Driver) {
	case "", "file":
		fileStorage, err := filestore.NewStateStorage(conf.Storage.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return fileStorage, func() error { return nil }, noop, nil

	case "postgres":
		dbConGorm, err := gorm.ConnectToPostgreSQL(
			conf.Postgres.Host,
			conf.Postgres.Port,
			conf.Postgres.Username,
			conf.Postgres.Password,
			conf.Postgres.DbName,
			conf.Postgres.SSLMode,
		)
		if err != nil {
			return nil, nil, nil, err
		}
		repo, err := postgres.NewStateRepository(dbConGorm.Postgres)
		if err != nil {
			gorm.DisconnectPostgres(dbConGorm.Postgres)
			return nil, nil, nil, err
		}
		ping := func() error {
			sqlDB, err := dbConGorm.Postgres.DB()
			if err != nil {
				return err
			}
			return sqlDB.Ping()
		}
		return repo, ping, func() { gorm.DisconnectPostgres(dbConGorm.Postgres) }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

func configureLogging(conf configs.Log) {
	level, err := logrus.ParseLevel(conf.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(conf.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
