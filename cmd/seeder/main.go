//cmd/seeder/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/wablast/wablast-backend/internal/db"
)

func main() {
	godotenv.Load()

	conn, err := db.Open()
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()

	seedFiles := []string{
		"seed/schema.sql",
		"seed/campaigns.sql",
		"seed/suppressed_numbers.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Str("file", file).Err(err).Msg("failed to read seed file")
		}

		if _, err := conn.Exec(string(content)); err != nil {
			log.Fatal().Str("file", file).Err(err).Msg("failed to execute seed file")
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
