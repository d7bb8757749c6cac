package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "LOG_LEVEL", "SEED_CUSTOMERS", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != "3001" {
		t.Errorf("Expected port 3001, got %s", cfg.Port)
	}
	if cfg.DBDriver != DriverSQLite {
		t.Errorf("Expected driver %s, got %s", DriverSQLite, cfg.DBDriver)
	}
	if cfg.LogLevel != logrus.InfoLevel {
		t.Errorf("Expected level info, got %s", cfg.LogLevel)
	}
	if !cfg.SeedCustomers {
		t.Error("Expected customers to be seeded by default")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected 10s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfig_PostgresRequiresURL(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(nil); err == nil {
		t.Fatal("Expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SEED_CUSTOMERS", "false")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.DBDriver != DriverMemory {
		t.Errorf("Expected 9090/memory, got %s/%s", cfg.Port, cfg.DBDriver)
	}
	if cfg.LogLevel != logrus.DebugLevel {
		t.Errorf("Expected level debug, got %s", cfg.LogLevel)
	}
	if cfg.SeedCustomers {
		t.Error("Expected seeding disabled")
	}
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mongo")
	if _, err := LoadConfig(nil); err == nil {
		t.Fatal("Expected error for unknown driver")
	}
}
