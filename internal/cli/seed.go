package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ilyalazarenkoit/eltis-test/internal/config"
	"github.com/ilyalazarenkoit/eltis-test/internal/domain"
	pgstore "github.com/ilyalazarenkoit/eltis-test/internal/infra/postgres"
	rediscache "github.com/ilyalazarenkoit/eltis-test/internal/infra/redis"
)

// NewSeedCmd loads the question catalog from a JSON file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the question catalog from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/questions.json", "path to questions JSON")
	return cmd
}

func runSeed(ctx context.Context, cfg config.Config, file string) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return fmt.Errorf("decode questions: %w", err)
	}
	for _, q := range questions {
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			return fmt.Errorf("question %d: correct option %d out of range", q.ID, q.CorrectOption)
		}
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("encode options for question %d: %w", q.ID, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO questions (id, type, question_text, question_audio_url, question_image_url, options, correct_option)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET
				type=EXCLUDED.type, question_text=EXCLUDED.question_text,
				question_audio_url=EXCLUDED.question_audio_url,
				question_image_url=EXCLUDED.question_image_url,
				options=EXCLUDED.options, correct_option=EXCLUDED.correct_option`,
			q.ID, q.Kind, q.Text, q.AudioURL, q.ImageURL, options, q.CorrectOption)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", q.ID, err)
		}
	}
	log.Printf("seeded %d questions", len(questions))

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache := rediscache.NewCatalogCache(client, pgstore.NewCatalog(pool), 0)
		if err := cache.Invalidate(ctx); err != nil {
			log.Printf("invalidate catalog cache: %v", err)
		}
	}
	return nil
}
