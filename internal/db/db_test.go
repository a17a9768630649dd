package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/tableside/internal/config"
	"github.com/zulandar/tableside/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		user     string
		password string
		database string
		want     string
	}{
		{
			name:     "default local",
			host:     "127.0.0.1",
			port:     3306,
			user:     "root",
			database: "tableside",
			want:     "root@tcp(127.0.0.1:3306)/tableside?parseTime=true",
		},
		{
			name:     "with password",
			host:     "10.0.0.5",
			port:     3307,
			user:     "floor",
			password: "s3cret",
			database: "venue_9",
			want:     "floor:s3cret@tcp(10.0.0.5:3307)/venue_9?parseTime=true",
		},
		{
			name: "admin without database",
			host: "db.internal",
			port: 3306,
			user: "root",
			want: "root@tcp(db.internal:3306)/?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.host, tt.port, tt.user, tt.password, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 2 {
		t.Errorf("AllModels() returned %d models, want 2", got)
	}
}

func TestOpen_SQLiteMemoryMigrates(t *testing.T) {
	gdb, err := Open(config.JournalConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !gdb.Migrator().HasTable(&models.Activity{}) {
		t.Error("activities table not created")
	}
	if !gdb.Migrator().HasTable(&models.RelayPost{}) {
		t.Error("relay_posts table not created")
	}
}

func TestOpenSQLite_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	gdb, err := Open(config.JournalConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := gdb.Create(&models.Activity{Kind: "toast"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.JournalConfig{Driver: "postgres"})
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %v", err)
	}
}

func TestOpen_MySQLUnreachable(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Open(config.JournalConfig{Driver: "mysql", Host: "127.0.0.1", Port: 1, User: "root", Database: "x"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}
