package main

import (
	"context"
	"fmt"
	"log"
	"time"

	models "tenderplan/internal/domain/models/outline"
	"tenderplan/internal/domain/repositories"
	outlineRepo "tenderplan/internal/domain/repositories/outline"
	"tenderplan/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

type demoSection struct {
	title    string
	children []demoSection
	tasks    []string
}

type demoSource struct {
	title  string
	kind   models.SourceType
	global bool
	linked bool
}

// Chapters are listed out of numeral order so auto-sort has work to do.
var demoOutline = []demoSection{
	{
		title: "第一章 项目概述",
		children: []demoSection{
			{title: "一、项目背景", tasks: []string{"概述招标方的业务现状与建设目标"}},
			{title: "二、建设范围", tasks: []string{"列出本次投标覆盖的系统模块", "说明与现有系统的边界"}},
		},
	},
	{
		title: "第三章 实施方案",
		children: []demoSection{
			{title: "二、进度计划", tasks: []string{"给出分阶段里程碑与交付物"}},
			{title: "一、实施组织", tasks: []string{"描述项目组织架构与职责分工", "说明关键岗位人员资质"}},
		},
	},
	{
		title: "第二章 技术方案",
		children: []demoSection{
			{title: "一、总体架构", tasks: []string{"绘制系统总体架构图并说明各层职责"}},
			{title: "二、关键技术", tasks: []string{"论述高可用与容灾设计", "说明数据安全与权限控制方案"}},
			{title: "三、接口设计"},
		},
	},
	{
		title: "第十章 售后服务",
		tasks: []string{"承诺响应时间与驻场支持方式"},
	},
}

var demoSources = []demoSource{
	{title: "招标文件（正文）", kind: models.SourceTypeTender, linked: true},
	{title: "技术规格书", kind: models.SourceTypeTender, linked: true},
	{title: "公司资质汇编", kind: models.SourceTypeInternal, global: true},
	{title: "历史中标方案库", kind: models.SourceTypeExternal, global: true},
}

type seedStats struct {
	sections int
	tasks    int
	sources  int
}

type demoSeeder struct {
	pool     *pgxpool.Pool
	tables   *postgres.TableNames
	projects outlineRepo.ProjectRepository
	sections outlineRepo.SectionRepository
	tasks    outlineRepo.TaskRepository
	tx       repositories.TransactionManager
}

// Seed writes the demo project, its sources and its outline in one transaction.
func (d *demoSeeder) Seed(ctx context.Context, projectID, userID string) (seedStats, error) {
	var stats seedStats
	err := d.tx.ExecTx(ctx, func(ctx context.Context) error {
		now := time.Now()
		project := &models.Project{
			ID:        projectID,
			UserID:    userID,
			Name:      "示例投标项目",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := d.projects.Create(ctx, project); err != nil {
			return err
		}

		for _, src := range demoSources {
			if err := d.createSource(ctx, projectID, src); err != nil {
				return err
			}
			stats.sources++
		}

		for i, chapter := range demoOutline {
			if err := d.createSection(ctx, projectID, nil, chapter, float64(i+1)*1000, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	return stats, err
}

func (d *demoSeeder) createSource(ctx context.Context, projectID string, src demoSource) error {
	executor := postgres.GetExecutor(ctx, d.pool)

	var owner *string
	if !src.global {
		owner = &projectID
	}

	// Global sources survive --clear-data, so reuse them by title
	var id string
	err := executor.QueryRow(ctx,
		`SELECT id FROM `+d.tables.Sources+` WHERE title = $1 AND project_id IS NOT DISTINCT FROM $2`,
		src.title, owner,
	).Scan(&id)
	if err != nil {
		err = executor.QueryRow(ctx,
			`INSERT INTO `+d.tables.Sources+` (project_id, title, type) VALUES ($1, $2, $3) RETURNING id`,
			owner, src.title, string(src.kind),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("create source %q: %w", src.title, err)
		}
	}

	if src.linked {
		_, err = executor.Exec(ctx,
			`INSERT INTO `+d.tables.ProjectSources+` (project_id, source_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			projectID, id,
		)
		if err != nil {
			return fmt.Errorf("link source %q: %w", src.title, err)
		}
	}
	return nil
}

func (d *demoSeeder) createSection(ctx context.Context, projectID string, parentID *string, data demoSection, order float64, stats *seedStats) error {
	now := time.Now()
	section := &models.Section{
		ProjectID:        projectID,
		ParentID:         parentID,
		Title:            data.title,
		OrderIndex:       order,
		GenerationMethod: models.GenerationMethodManual,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := d.sections.Create(ctx, section); err != nil {
		return fmt.Errorf("create section %q: %w", data.title, err)
	}
	stats.sections++
	log.Printf("✅ Created section %s (ID: %s)", data.title, section.ID)

	for i, requirement := range data.tasks {
		task := &models.Task{
			ProjectID:        projectID,
			SectionID:        section.ID,
			RequirementText:  requirement,
			Status:           models.TaskStatusPending,
			OrderIndex:       float64(i+1) * 1000,
			GenerationMethod: models.GenerationMethodManual,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := d.tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("create task %q: %w", requirement, err)
		}
		stats.tasks++
	}

	for i, child := range data.children {
		if err := d.createSection(ctx, projectID, &section.ID, child, float64(i+1)*1000, stats); err != nil {
			return err
		}
	}
	return nil
}
