// migrate creates or updates the campaign engine schema.
package main

import (
	"fmt"
	"log"
	"os"

	cfg "sms-campaign-engine/config"
	"sms-campaign-engine/internal/adapters/db/postgres"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	conf, err := cfg.FromEnv()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Println("🔗 Connecting to database...")

	repo, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect: %v", err)
	}
	defer repo.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println("🔄 Running migrations...")

	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	fmt.Println("✅ Migration complete!")
	os.Exit(0)
}
