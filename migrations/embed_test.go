package migrations_test

import (
	"testing"

	"github.com/nerrad567/mqttservice/internal/infrastructure/database"
	"github.com/nerrad567/mqttservice/migrations"
)

func TestEmbeddedMigrationsLoad(t *testing.T) {
	loaded, err := database.LoadMigrations(migrations.FS)
	if err != nil {
		t.Fatalf("LoadMigrations() error = %v", err)
	}
	if len(loaded) == 0 {
		t.Fatal("no embedded migrations found")
	}
	for _, m := range loaded {
		if m.DownSQL == "" {
			t.Errorf("migration %s (%s) has no down SQL", m.Version, m.Name)
		}
	}
}
