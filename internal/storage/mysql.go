package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"resume-match-go/internal/config"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-match-go/storage/mysql")

// ErrJobNotFound 岗位不存在
var ErrJobNotFound = errors.New("岗位不存在")

type gormSpanKey struct{}

// GormTracingPlugin GORM插件，为数据库操作注册OpenTelemetry追踪回调
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)

		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 记录未找到属于正常业务分支
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer: mysqlTracer,
		dbName: dbName,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case "silent":
		logLevel = logger.Silent
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	// 迁移期间关闭SQL日志
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)
	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	if err := silentDB.AutoMigrate(
		&models.Candidate{},
		&models.Job{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetCandidates 按过滤条件取回候选池。
// 单条记录反序列化失败只跳过该条，不让整池查询失败。
func (m *MySQL) GetCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.Candidate, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.GetCandidates",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	query := m.db.WithContext(ctx).Model(&models.Candidate{})
	if filter.FolderID != "" {
		query = query.Where("folder_id = ?", filter.FolderID)
	}
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}

	var records []models.Candidate
	if err := query.Find(&records).Error; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("查询候选池失败: %w", err)
	}

	out := make([]*types.Candidate, 0, len(records))
	for i := range records {
		cand, err := records[i].ToDomain()
		if err != nil {
			span.AddEvent("candidate_decode_skipped", trace.WithAttributes(
				attribute.String("candidate_id", records[i].CandidateID),
				attribute.String("email", tracing.SafeAttributeValue("email", records[i].Email, tracing.DefaultMaxLength)),
			))
			continue
		}
		out = append(out, cand)
	}

	span.SetAttributes(attribute.Int("pool.size", len(out)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

// GetJob 通过JobID取回岗位，不存在时返回 ErrJobNotFound
func (m *MySQL) GetJob(ctx context.Context, jobID string) (*types.Job, error) {
	var record models.Job
	err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("查询岗位失败: %w", err)
	}
	return record.ToDomain()
}

// UpdateCandidateEmbedding 写回候选人向量及其更新时间
func (m *MySQL) UpdateCandidateEmbedding(ctx context.Context, candidateID string, vector []float64, updatedAt time.Time) error {
	data, err := models.MarshalVector(vector)
	if err != nil {
		return err
	}
	return m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("candidate_id = ?", candidateID).
		Updates(map[string]interface{}{
			"embedding":            data,
			"embedding_updated_at": updatedAt,
		}).Error
}

// UpdateJobEmbedding 写回岗位向量及其更新时间
func (m *MySQL) UpdateJobEmbedding(ctx context.Context, jobID string, vector []float64, updatedAt time.Time) error {
	data, err := models.MarshalVector(vector)
	if err != nil {
		return err
	}
	return m.db.WithContext(ctx).Model(&models.Job{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"embedding":            data,
			"embedding_updated_at": updatedAt,
		}).Error
}

// UpsertCandidate 创建或更新候选人记录（向量列不在此路径覆盖）。
// CandidateID为空时生成UUIDv7并回填。
func (m *MySQL) UpsertCandidate(ctx context.Context, cand *types.Candidate, folderID, ownerID string) error {
	if cand.CandidateID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		cand.CandidateID = newUUID.String()
	}
	record, err := models.CandidateFromDomain(cand)
	if err != nil {
		return err
	}
	record.FolderID = folderID
	record.OwnerID = ownerID
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "candidate_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "email", "filename", "folder_id", "owner_id",
			"skills_json", "education_json", "experience_json", "personal_json", "extra_json",
		}),
	}).Create(record).Error
}

// UpsertJob 创建或更新岗位记录
func (m *MySQL) UpsertJob(ctx context.Context, job *types.Job) error {
	if job.JobID == "" {
		newUUID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		job.JobID = newUUID.String()
	}
	record, err := models.JobFromDomain(job)
	if err != nil {
		return err
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "role", "description", "location",
			"required_skills_json", "preferred_skills_json",
			"required_exp", "education_req",
		}),
	}).Create(record).Error
}

// ListStaleCandidateIDs 返回向量缺失或超过新鲜度窗口的候选人ID，
// 供后台刷新任务分批处理
func (m *MySQL) ListStaleCandidateIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	var ids []string
	query := m.db.WithContext(ctx).Model(&models.Candidate{}).
		Where("embedding IS NULL OR embedding_updated_at IS NULL OR embedding_updated_at < ?", olderThan).
		Order("embedding_updated_at IS NULL DESC, embedding_updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Pluck("candidate_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询过期向量候选人失败: %w", err)
	}
	return ids, nil
}

// GetCandidatesByIDs 批量取回候选人，返回顺序与传入ID一致，缺失的ID跳过
func (m *MySQL) GetCandidatesByIDs(ctx context.Context, ids []string) ([]*types.Candidate, error) {
	if len(ids) == 0 {
		return []*types.Candidate{}, nil
	}

	var records []models.Candidate
	if err := m.db.WithContext(ctx).Where("candidate_id IN ?", ids).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("批量查询候选人失败: %w", err)
	}

	byID := make(map[string]*models.Candidate, len(records))
	for i := range records {
		byID[records[i].CandidateID] = &records[i]
	}

	out := make([]*types.Candidate, 0, len(ids))
	for _, id := range ids {
		record, ok := byID[id]
		if !ok {
			continue
		}
		cand, err := record.ToDomain()
		if err != nil {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// GetCandidate 通过ID取回单个候选人
func (m *MySQL) GetCandidate(ctx context.Context, candidateID string) (*types.Candidate, error) {
	var record models.Candidate
	err := m.db.WithContext(ctx).Where("candidate_id = ?", candidateID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询候选人失败: %w", err)
	}
	return record.ToDomain()
}
