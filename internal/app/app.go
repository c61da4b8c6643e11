package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgman "NotifyRelay/internal/config"
	emailadapter "NotifyRelay/internal/adapter/email"
	smsadapter "NotifyRelay/internal/adapter/sms"
	tgadapter "NotifyRelay/internal/adapter/telegram"
	"NotifyRelay/internal/delivery/handlers"
	"NotifyRelay/internal/delivery/middleware"
	"NotifyRelay/internal/dispatch"
	"NotifyRelay/internal/domain"
	"NotifyRelay/internal/migrator"
	"NotifyRelay/internal/repository/cache"
	"NotifyRelay/internal/repository/pg"
	"NotifyRelay/internal/repository/rabbit"
	"NotifyRelay/internal/service"
	"NotifyRelay/internal/worker"
	"NotifyRelay/pkg/rabbitmq"
	"NotifyRelay/pkg/retry"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

// Application основная структура приложения.
type Application struct {
	config     *cfgman.Config
	server     *ginext.Engine
	db         *dbpg.DB
	redis      *goredis.Client
	rabbit     *rabbitmq.RabbitClient
	publisher  *rabbit.Publisher
	consumer   *worker.Consumer
	sweeper    *worker.Sweeper
	service    *service.NotificationService
	dispatcher *dispatch.Dispatcher
	notifRepo  *pg.PostgresRepo
	attempts   *pg.AttemptRepo
	cacheRepo  *cache.RedisRepo
	smtp       *emailadapter.SMTPClient
}

// New создает новое приложение.
func New() (*Application, error) {
	// Загружаем конфигурацию
	cfg, err := cfgman.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Инициализируем логгер
	if err := initLogger(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	app := &Application{
		config: cfg,
	}

	return app, nil
}

// Run запускает приложение в зависимости от команды.
func (a *Application) Run() error {
	if len(os.Args) < 2 {
		a.printUsage()
		return fmt.Errorf("no command specified")
	}

	command := os.Args[1]

	switch command {
	case "runserver":
		return a.runServer()
	case "migrate":
		return a.runMigrate()
	case "health":
		return a.runHealthCheck()
	default:
		a.printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// printUsage печатает инструкции по использованию.
func (a *Application) printUsage() {
	fmt.Println("NotifyRelay - сервис многоканальной доставки уведомлений")
	fmt.Println()
	fmt.Println("Доступные команды:")
	fmt.Println("  runserver    - запуск HTTP сервера и воркеров")
	fmt.Println("  migrate up   - накат миграций")
	fmt.Println("  migrate down - откат миграций")
	fmt.Println("  health       - проверка состояния сервисов")
	fmt.Println()
	fmt.Println("Примеры:")
	fmt.Println("  <appname> runserver")
	fmt.Println("  <appname> migrate up")
	fmt.Println("  <appname> migrate down")
	fmt.Println("  <appname> health")
}

// runHealthCheck проверяет состояние всех подключений.
func (a *Application) runHealthCheck() error {
	fmt.Println("Running health check...")

	// Проверяем подключение к базе данных
	if err := a.checkDatabase(); err != nil {
		return fmt.Errorf("database check failed: %w", err)
	}
	fmt.Println("✅ Database connection: OK")

	// Проверяем подключение к Redis
	if err := a.checkRedis(); err != nil {
		return fmt.Errorf("redis check failed: %w", err)
	}
	fmt.Println("✅ Redis connection: OK")

	// Проверяем подключение к RabbitMQ
	if err := a.checkRabbitMQ(); err != nil {
		return fmt.Errorf("rabbitmq check failed: %w", err)
	}
	fmt.Println("✅ RabbitMQ connection: OK")

	fmt.Println("🎉 All health checks passed!")
	return nil
}

// checkDatabase проверяет подключение к базе данных.
func (a *Application) checkDatabase() error {
	db, err := initDatabase(a.config.Database)
	if err != nil {
		return err
	}
	defer func(Master *sql.DB) {
		_ = Master.Close()
	}(db.Master)

	return db.Master.Ping()
}

// checkRedis проверяет подключение к Redis.
func (a *Application) checkRedis() error {
	client := goredis.NewClient(&goredis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return client.Ping(ctx).Err()
}

// checkRabbitMQ проверяет подключение к RabbitMQ.
func (a *Application) checkRabbitMQ() error {
	clientConfig := rabbitmq.ClientConfig{
		URL:            a.config.RabbitMQ.URL,
		ConnectionName: a.config.RabbitMQ.ConnectionName + "-health",
		ConnectTimeout: 5 * time.Second,
		Heartbeat:      5 * time.Second,
	}

	client, err := rabbitmq.NewClient(clientConfig)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	// Простая проверка - попытка подключения
	return client.Ping()
}

// initLogger инициализирует логгер.
func initLogger(level string) error {
	zlog.Init()

	zerologLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	return zlog.SetLevel(zerologLevel.String())
}

// runServer запускает приложение в режиме сервера.
func (a *Application) runServer() error {
	zlog.Logger.Info().Msg("Starting NotifyRelay server...")

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := a.initConnections(); err != nil {
		return fmt.Errorf("failed to init connections: %w", err)
	}
	defer a.cleanup()
	if err := a.setupHTTPServer(); err != nil {
		return fmt.Errorf("failed to setup HTTP server: %w", err)
	}
	if err := a.startWorkers(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	zlog.Logger.Info().Str("address", a.config.HTTP.GetConnectionString()).Msg("HTTP server starting")
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Run(a.config.HTTP.GetConnectionString())
	}()
	zlog.Logger.Info().Msg("HTTP server started, waiting for shutdown signal...")
	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		zlog.Logger.Info().Msg("Received shutdown signal")
		return nil
	}
}

// runMigrate запускает приложение в режиме миграций.
func (a *Application) runMigrate() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("migrate command requires direction (up/down)")
	}

	direction := os.Args[2]

	switch direction {
	case "up":
		return a.runMigrateUp()
	case "down":
		return a.runMigrateDown()
	default:
		return fmt.Errorf("unknown migrate direction: %s (use up/down)", direction)
	}
}

// runMigrateUp выполняет накат миграций.
func (a *Application) runMigrateUp() error {
	zlog.Logger.Info().Msg("Running migrations up...")
	db, err := initDatabase(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func(Master *sql.DB) {
		_ = Master.Close()
	}(db.Master)
	m, err := migrator.NewMigrator(db.Master, a.config.Migrations.Path)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}

	zlog.Logger.Info().Msg("Migrations applied successfully")
	return nil
}

// runMigrateDown выполняет откат миграций.
func (a *Application) runMigrateDown() error {
	zlog.Logger.Info().Msg("Running migrations down...")

	db, err := initDatabase(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}
	defer func(Master *sql.DB) {
		_ = Master.Close()
	}(db.Master)

	m, err := migrator.NewMigrator(db.Master, a.config.Migrations.Path)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := m.Down(); err != nil {
		return fmt.Errorf("migration down failed: %w", err)
	}

	zlog.Logger.Info().Msg("Migrations rolled back successfully")
	return nil
}

// initConnections инициализирует все подключения.
func (a *Application) initConnections() error {
	var err error

	a.db, err = initDatabase(a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to init database: %w", err)
	}

	a.redis, err = initRedis(a.config.Redis)
	if err != nil {
		return fmt.Errorf("failed to init redis: %w", err)
	}

	a.rabbit, err = initRabbitMQ(a.config.RabbitMQ)
	if err != nil {
		return fmt.Errorf("failed to init rabbitmq: %w", err)
	}

	if err := a.initServices(); err != nil {
		return fmt.Errorf("failed to init services: %w", err)
	}

	return nil
}

// initDatabase инициализирует подключение к базе данных.
func initDatabase(cfg cfgman.DatabaseConfig) (*dbpg.DB, error) {
	opts := &dbpg.Options{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	}

	db, err := dbpg.New(cfg.DSN, nil, opts)
	if err != nil {
		return nil, err
	}

	if err := db.Master.Ping(); err != nil {
		return nil, err
	}

	zlog.Logger.Info().Msg("Database connection established")
	return db, nil
}

// initRedis инициализирует подключение к Redis.
func initRedis(cfg cfgman.RedisConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	zlog.Logger.Info().Msg("Redis connection established")
	return client, nil
}

// initRabbitMQ инициализирует подключение к RabbitMQ.
func initRabbitMQ(cfg cfgman.RabbitMQConfig) (*rabbitmq.RabbitClient, error) {
	publishStrategy := retry.Strategy{
		Attempts: cfg.PublishRetry.Attempts,
		Delay:    cfg.PublishRetry.Delay,
		Backoff:  float64(cfg.PublishRetry.Backoff),
	}

	clientConfig := rabbitmq.ClientConfig{
		URL:            cfg.URL,
		ConnectionName: cfg.ConnectionName,
		ConnectTimeout: cfg.ConnectTimeout,
		Heartbeat:      cfg.Heartbeat,
		PublishRetry:   publishStrategy,
	}

	client, err := rabbitmq.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}
	zlog.Logger.Info().Msg("RabbitMQ connection established")
	return client, nil
}

// initServices инициализирует сервисы приложения.
func (a *Application) initServices() error {
	a.notifRepo = pg.NewPostgresRepo(a.db)
	a.attempts = pg.NewAttemptRepo(a.db)
	a.cacheRepo = cache.NewRedisRepo(a.redis)

	a.publisher = rabbit.NewPublisher(
		a.rabbit,
		a.config.RabbitMQ.ExchangeName,
		"application/json",
		a.config.RabbitMQ.QueueName)

	a.service = service.NewNotificationService(
		a.notifRepo, a.attempts, a.publisher, a.cacheRepo, 24*time.Hour)

	a.dispatcher = dispatch.NewDispatcher(
		a.notifRepo,
		a.attempts,
		a.cacheRepo,
		a.config.Dispatch.DefaultPriorityChannels(),
		a.config.Dispatch.AdapterTimeout,
		a.buildAdapters()...,
	)

	return nil
}

// buildAdapters собирает адаптеры каналов из конфигурации.
// Недоступный SMTP не мешает запуску: адаптер будет возвращать
// неуспешный результат, отправка уйдет в следующий канал.
func (a *Application) buildAdapters() []domain.ChannelAdapter {
	var mailer emailadapter.Mailer
	smtp, err := emailadapter.NewSMTPClient(
		a.config.Email.Host,
		a.config.Email.Port,
		a.config.Email.Username,
		a.config.Email.Password,
		a.config.Email.From,
		a.config.Email.UseTLS,
	)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("SMTP unavailable, email channel will fail over")
	} else {
		a.smtp = smtp
		mailer = smtp
	}

	return []domain.ChannelAdapter{
		emailadapter.NewAdapter(mailer),
		smsadapter.NewAdapter(a.config.SMS.ProviderURL, a.config.SMS.Token),
		tgadapter.NewAdapter(a.config.Telegram.BotToken, a.config.Telegram.APIBase),
	}
}

// setupHTTPServer настраивает HTTP сервер.
func (a *Application) setupHTTPServer() error {
	a.server = ginext.New(gin.ReleaseMode)
	a.server.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-IJT"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
	}))

	a.server.Use(middleware.RequestIDMiddleware())
	a.server.Use(middleware.LoggingMiddleware())
	h := handlers.NewHandlersSet(a.service)
	group := a.server.RouterGroup.Group("notify")
	group.POST("/", h.CreateNotificationHandler)
	group.GET("/", h.ListNotificationsHandler)
	group.GET("/:id", h.GetNotificationHandler)
	group.POST("/:id/resend", h.ResendNotificationHandler)

	return nil
}

// startWorkers запускает воркеры для обработки сообщений.
func (a *Application) startWorkers(ctx context.Context) error {
	retryStrategy := retry.Strategy{
		Attempts: a.config.RabbitMQ.ConsumerRetry.Attempts,
		Delay:    a.config.RabbitMQ.ConsumerRetry.Delay,
		Backoff:  float64(a.config.RabbitMQ.ConsumerRetry.Backoff),
	}

	var err error
	a.consumer, err = worker.NewConsumer(a.service, a.publisher, a.dispatcher, a.rabbit, retryStrategy)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	go a.consumer.Start(ctx,
		a.config.RabbitMQ.QueueName,
		a.config.RabbitMQ.ExchangeName,
		a.config.RabbitMQ.Workers,
		a.config.RabbitMQ.PrefetchCount)

	if a.config.Sweeper.Enabled {
		a.sweeper = worker.NewSweeper(a.notifRepo, a.publisher,
			a.config.Sweeper.Interval,
			a.config.Sweeper.Staleness,
			a.config.Sweeper.BatchSize)
		go a.sweeper.Start(ctx)
	}

	zlog.Logger.Info().Msg("Workers started successfully")
	return nil
}

// cleanup освобождает ресурсы.
func (a *Application) cleanup() {
	zlog.Logger.Info().Msg("Cleaning up resources...")

	if a.rabbit != nil {
		_ = a.rabbit.Close()
	}

	if a.smtp != nil {
		_ = a.smtp.Close()
	}

	if a.redis != nil {
		_ = a.redis.Close()
	}

	if a.db != nil {
		_ = a.db.Master.Close()
	}

	zlog.Logger.Info().Msg("Cleanup completed")
}
