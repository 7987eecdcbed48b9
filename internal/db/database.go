package db

import (
  "context"
  "fmt"
  "time"

  "github.com/glebarez/sqlite"
  "gorm.io/driver/mysql"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/types"
  "github.com/gakusta-org/gakusta-backend/internal/utils"
)

const (
  DriverPostgres = "postgres"
  DriverMySQL    = "mysql"
  DriverSQLite   = "sqlite"
)

type Config struct {
  Driver          string
  Host            string
  Port            string
  User            string
  Password        string
  Name            string
  SSLMode         string
  SQLitePath      string
  MaxOpenConns    int
  MaxIdleConns    int
  ConnMaxLifetime time.Duration
  AcquireTimeout  time.Duration
}

// ConfigFromEnv reads DB_* variables. Pool defaults mirror a 10 connection
// pool with a 60s acquire timeout.
func ConfigFromEnv(log *logger.Logger) Config {
  return Config{
    Driver:          utils.GetEnv("DB_DRIVER", DriverPostgres, log),
    Host:            utils.GetEnv("DB_HOST", "localhost", log),
    Port:            utils.GetEnv("DB_PORT", "", log),
    User:            utils.GetEnv("DB_USER", "postgres", log),
    Password:        utils.GetEnv("DB_PASSWORD", "", log),
    Name:            utils.GetEnv("DB_NAME", "stampcard", log),
    SSLMode:         utils.GetEnv("DB_SSLMODE", "disable", log),
    SQLitePath:      utils.GetEnv("DB_SQLITE_PATH", "stampcard.db", log),
    MaxOpenConns:    utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 10, log),
    MaxIdleConns:    utils.GetEnvAsInt("DB_MAX_IDLE_CONNS", 5, log),
    ConnMaxLifetime: utils.GetEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, log),
    AcquireTimeout:  utils.GetEnvAsDuration("DB_ACQUIRE_TIMEOUT", 60*time.Second, log),
  }
}

func (c Config) dialector() (gorm.Dialector, error) {
  switch c.Driver {
  case DriverPostgres:
    port := c.Port
    if port == "" {
      port = "5432"
    }
    dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.User, c.Password, c.Host, port, c.Name, c.SSLMode)
    return postgres.Open(dsn), nil
  case DriverMySQL:
    port := c.Port
    if port == "" {
      port = "3306"
    }
    dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&timeout=%s",
      c.User, c.Password, c.Host, port, c.Name, c.AcquireTimeout)
    return mysql.Open(dsn), nil
  case DriverSQLite:
    return sqlite.Open(c.SQLitePath), nil
  default:
    return nil, fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
  }
}

// Database owns the connection pool. Construct it once in main and Close it
// on shutdown.
type Database struct {
  db             *gorm.DB
  driver         string
  acquireTimeout time.Duration
  log            *logger.Logger
}

func Open(cfg Config, log *logger.Logger) (*Database, error) {
  dbLog := log.With("service", "Database", "driver", cfg.Driver)

  //1) Pick Dialector
  dialector, err := cfg.dialector()
  if err != nil {
    dbLog.Error("Invalid database configuration", "error", err)
    return nil, err
  }

  //2) Open Connection
  dbLog.Info("Attempting to connect to database now...")
  gdb, err := gorm.Open(dialector, &gorm.Config{
    Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
    TranslateError: true,
  })
  if err != nil {
    dbLog.Error("Failed to connect to database", "error", err)
    return nil, fmt.Errorf("failed to connect to database: %w", err)
  }

  //3) Size The Pool
  sqlDB, err := gdb.DB()
  if err != nil {
    return nil, fmt.Errorf("failed to get sql.DB: %w", err)
  }
  if cfg.MaxOpenConns > 0 {
    sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
  }
  if cfg.MaxIdleConns > 0 {
    sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
  }
  if cfg.ConnMaxLifetime > 0 {
    sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
  }
  dbLog.Info("Connected to database :)", "maxOpen", cfg.MaxOpenConns, "maxIdle", cfg.MaxIdleConns)

  return &Database{db: gdb, driver: cfg.Driver, acquireTimeout: cfg.AcquireTimeout, log: dbLog}, nil
}

// OpenSQLiteMemory opens a private in-memory database, used by tests and the
// demo mode.
func OpenSQLiteMemory(name string, log *logger.Logger) (*Database, error) {
  cfg := Config{
    Driver:       DriverSQLite,
    SQLitePath:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
    MaxOpenConns: 1,
  }
  return Open(cfg, log)
}

func (d *Database) AutoMigrateAll() error {
  d.log.Info("Starting AutoMigrateAll for all GORM models now...")
  err := d.db.AutoMigrate(
    &types.User{},
    &types.StampImage{},
    &types.StampCard{},
    &types.Stamp{},
    &types.OneTimeCode{},
    &types.GiftExchange{},
  )
  if err != nil {
    d.log.Error("AutoMigrateAll failed :(", "error", err)
    return err
  }
  d.log.Info("AutoMigrateAll completed successfully :)")
  return nil
}

func (d *Database) DB() *gorm.DB {
  return d.db
}

func (d *Database) Driver() string {
  return d.driver
}

// AcquireTimeout bounds how long a request waits for the pool.
func (d *Database) AcquireTimeout() time.Duration {
  return d.acquireTimeout
}

func (d *Database) Ping(ctx context.Context) error {
  sqlDB, err := d.db.DB()
  if err != nil {
    return err
  }
  return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
  sqlDB, err := d.db.DB()
  if err != nil {
    return err
  }
  d.log.Info("Closing database pool")
  return sqlDB.Close()
}
