package main

import (
	"context"
	"fmt"
	"log"

	"tenderplan/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// runSchema creates tables, indexes and change triggers if they don't exist
func runSchema(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	p := tables.Prefix

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		`CREATE TABLE IF NOT EXISTS ` + tables.Projects + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		// project_id NULL marks a global source
		`CREATE TABLE IF NOT EXISTS ` + tables.Sources + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			project_id UUID REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'tender' CHECK (type IN ('tender', 'internal', 'external')),
			origin_url TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.ProjectSources + ` (
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			source_id UUID NOT NULL REFERENCES ` + tables.Sources + `(id) ON DELETE CASCADE,
			PRIMARY KEY (project_id, source_id)
		)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.Sections + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			parent_id UUID REFERENCES ` + tables.Sections + `(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			order_index DOUBLE PRECISION NOT NULL DEFAULT 0,
			content TEXT,
			generation_method TEXT NOT NULL DEFAULT 'manual',
			is_modified BOOLEAN NOT NULL DEFAULT FALSE,
			last_integrated_at TIMESTAMPTZ,
			citations JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.Tasks + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			section_id UUID NOT NULL REFERENCES ` + tables.Sections + `(id) ON DELETE CASCADE,
			requirement_text TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			order_index DOUBLE PRECISION NOT NULL DEFAULT 0,
			workflow_type TEXT,
			generation_method TEXT NOT NULL DEFAULT 'manual',
			is_modified BOOLEAN NOT NULL DEFAULT FALSE,
			citations JSONB NOT NULL DEFAULT '[]',
			citation_source_id UUID REFERENCES ` + tables.Sources + `(id) ON DELETE SET NULL,
			citation_page INTEGER,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.TaskImages + ` (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			task_id UUID NOT NULL REFERENCES ` + tables.Tasks + `(id) ON DELETE CASCADE,
			project_id UUID NOT NULL REFERENCES ` + tables.Projects + `(id) ON DELETE CASCADE,
			image_type TEXT,
			prompt TEXT,
			image_url TEXT NOT NULL,
			caption TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ` + tables.TaskContents + ` (
			task_id UUID NOT NULL REFERENCES ` + tables.Tasks + `(id) ON DELETE CASCADE,
			version INTEGER NOT NULL DEFAULT 1,
			content TEXT NOT NULL DEFAULT '',
			word_count INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (task_id, version)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_` + p + `sections_project_parent ON ` + tables.Sections + `(project_id, parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + p + `tasks_project_section ON ` + tables.Tasks + `(project_id, section_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + p + `task_images_project ON ` + tables.TaskImages + `(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + p + `sources_project ON ` + tables.Sources + `(project_id)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}

	return installTriggers(ctx, pool, tables)
}

// installTriggers publishes every row change on the outline tables to
// NotifyChannel as {table, op, project_id, record_id, section_id}. Source rows
// are published too; a global source carries a null project_id.
func installTriggers(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	fn := tables.Prefix + "notify_outline_change"

	createFn := `
		CREATE OR REPLACE FUNCTION ` + fn + `() RETURNS trigger AS $$
		DECLARE
			rec RECORD;
			project UUID;
			section UUID;
			record_id UUID;
		BEGIN
			IF TG_OP = 'DELETE' THEN rec := OLD; ELSE rec := NEW; END IF;

			IF TG_TABLE_NAME = '` + tables.Sections + `' THEN
				project := rec.project_id; record_id := rec.id;
			ELSIF TG_TABLE_NAME = '` + tables.Tasks + `' THEN
				project := rec.project_id; section := rec.section_id; record_id := rec.id;
			ELSIF TG_TABLE_NAME = '` + tables.ProjectSources + `' THEN
				project := rec.project_id; record_id := rec.source_id;
			ELSIF TG_TABLE_NAME = '` + tables.Sources + `' THEN
				project := rec.project_id; record_id := rec.id;
			ELSIF TG_TABLE_NAME = '` + tables.TaskImages + `' THEN
				project := rec.project_id; record_id := rec.id;
				SELECT t.section_id INTO section FROM ` + tables.Tasks + ` t WHERE t.id = rec.task_id;
			ELSE
				record_id := rec.task_id;
				SELECT t.project_id, t.section_id INTO project, section
				FROM ` + tables.Tasks + ` t WHERE t.id = rec.task_id;
			END IF;

			-- Rows cascading from a deleted task have no project left
			IF project IS NULL AND TG_TABLE_NAME <> '` + tables.Sources + `' THEN RETURN NULL; END IF;

			PERFORM pg_notify('` + tables.NotifyChannel + `', json_build_object(
				'table', TG_TABLE_NAME,
				'op', TG_OP,
				'project_id', project,
				'record_id', record_id,
				'section_id', section
			)::text);
			RETURN NULL;
		END;
		$$ LANGUAGE plpgsql`

	if _, err := pool.Exec(ctx, createFn); err != nil {
		return fmt.Errorf("create notify function: %w", err)
	}

	for _, table := range []string{tables.Sections, tables.Tasks, tables.ProjectSources, tables.Sources, tables.TaskImages, tables.TaskContents} {
		trigger := table + "_notify"
		stmts := []string{
			`DROP TRIGGER IF EXISTS ` + trigger + ` ON ` + table,
			`CREATE TRIGGER ` + trigger + ` AFTER INSERT OR UPDATE OR DELETE ON ` + table +
				` FOR EACH ROW EXECUTE FUNCTION ` + fn + `()`,
		}
		for _, stmt := range stmts {
			if _, err := pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("install trigger on %s: %w", table, err)
			}
		}
	}
	return nil
}

// dropAllTables drops all tables in reverse order (to respect foreign keys)
func dropAllTables(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames) error {
	tableNames := []string{
		tables.TaskContents,
		tables.TaskImages,
		tables.Tasks,
		tables.Sections,
		tables.ProjectSources,
		tables.Sources,
		tables.Projects,
	}

	for _, table := range tableNames {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return err
		}
		log.Printf("  ✓ Dropped %s", table)
	}

	_, err := pool.Exec(ctx, "DROP FUNCTION IF EXISTS "+tables.Prefix+"notify_outline_change() CASCADE")
	return err
}

// clearProjectData removes the outline and source links of a project
func clearProjectData(ctx context.Context, pool *pgxpool.Pool, tables *postgres.TableNames, projectID string) error {
	// Tasks, images and drafts cascade from sections
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.Sections+" WHERE project_id = $1", projectID); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, "DELETE FROM "+tables.ProjectSources+" WHERE project_id = $1", projectID); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, "DELETE FROM "+tables.Sources+" WHERE project_id = $1", projectID)
	return err
}
