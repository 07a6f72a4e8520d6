package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"tenderplan/internal/auth"
	"tenderplan/internal/config"
	"tenderplan/internal/repository/postgres"
	outlineStore "tenderplan/internal/repository/postgres/outline"

	"github.com/joho/godotenv"
)

const (
	defaultProjectID = "00000000-0000-0000-0000-000000000001"
	defaultUserID    = "00000000-0000-0000-0000-000000000001"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema and triggers, don't seed an outline")
	clearData := flag.Bool("clear-data", false, "Clear the demo project's outline and sources (keep schema)")
	projectID := flag.String("project-id", defaultProjectID, "Project to seed")
	userID := flag.String("user-id", defaultUserID, "Owner of the seeded project")
	userEmail := flag.String("user-email", "", "Create or look up a Supabase user and make them the owner (needs SUPABASE_KEY)")
	userPassword := flag.String("user-password", "password123", "Password for a user created with --user-email")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables or --clear-data) in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	switch {
	case *clearData:
		log.Printf("🧹 Clearing data only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	case *schemaOnly:
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	default:
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := dropAllTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Println("✅ Tables dropped")
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := runSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Printf("✅ Schema ready (notify channel: %s)", tables.NotifyChannel)

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	if *clearData {
		log.Println("🧹 Clearing existing outline and sources...")
		if err := clearProjectData(ctx, pool, tables, *projectID); err != nil {
			log.Fatalf("Failed to clear data: %v", err)
		}
		log.Println("✅ Data cleared successfully")
		return
	}

	owner := *userID
	if *userEmail != "" {
		if cfg.SupabaseKey == "" {
			log.Fatalf("--user-email needs SUPABASE_URL and SUPABASE_KEY")
		}
		admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseKey)
		owner, err = admin.EnsureUser(ctx, *userEmail, *userPassword)
		if err != nil {
			log.Fatalf("Failed to ensure user %s: %v", *userEmail, err)
		}
		log.Printf("👤 Using user %s (ID: %s)", *userEmail, owner)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	seeder := &demoSeeder{
		pool:     pool,
		tables:   tables,
		projects: outlineStore.NewProjectRepository(repoConfig),
		sections: outlineStore.NewSectionRepository(repoConfig),
		tasks:    outlineStore.NewTaskRepository(repoConfig),
		tx:       postgres.NewTransactionManager(pool, logger),
	}

	log.Println("⚠️  Clearing existing outline and sources...")
	if err := clearProjectData(ctx, pool, tables, *projectID); err != nil {
		log.Printf("Warning: Could not clear data: %v", err)
	}

	log.Println("📝 Seeding demo outline...")
	stats, err := seeder.Seed(ctx, *projectID, owner)
	if err != nil {
		log.Fatalf("Failed to seed outline: %v", err)
	}

	log.Printf("🎉 Seeding complete! project=%s sections=%d tasks=%d sources=%d",
		*projectID, stats.sections, stats.tasks, stats.sources)
}
