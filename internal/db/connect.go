package db

import (
	"fmt"
	"os"
	"path/filepath"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/tableside/internal/config"
)

// DSN builds a MySQL DSN. An empty database selects none, for admin
// operations such as CREATE DATABASE.
func DSN(host string, port int, user, password, database string) string {
	c := gomysql.NewConfig()
	c.User = user
	c.Passwd = password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", host, port)
	c.DBName = database
	c.ParseTime = true
	return c.FormatDSN()
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
}

// Open connects to the journal database described by cfg and migrates it.
// For mysql the database is created first if missing.
func Open(cfg config.JournalConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		db, err = OpenSQLite(cfg.Path)
	case "mysql":
		db, err = openMySQL(cfg)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens (creating if needed) a sqlite database at path.
// ":memory:" is accepted for tests.
func OpenSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db: sqlite path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db: create %s: %w", dir, err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	// One connection: an in-memory database exists per connection, and a
	// file database allows a single writer anyway.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func openMySQL(cfg config.JournalConfig) (*gorm.DB, error) {
	admin, err := ConnectAdmin(cfg)
	if err != nil {
		return nil, err
	}
	if err := CreateDatabase(admin, cfg.Database); err != nil {
		return nil, err
	}
	if sqlDB, err := admin.DB(); err == nil {
		sqlDB.Close()
	}

	dsn := DSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database)
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

// ConnectAdmin opens a MySQL connection without selecting a database.
func ConnectAdmin(cfg config.JournalConfig) (*gorm.DB, error) {
	dsn := DSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, "")
	db, err := gorm.Open(mysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}
