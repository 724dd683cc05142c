package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"approbe/internal/domain"
	"approbe/internal/logging"
)

// RunModel is one `approbe run`.
type RunModel struct {
	ID                 string    `gorm:"primaryKey"`
	StartedAt          time.Time `gorm:"not null;index:idx_started_at"`
	Total              int       `gorm:"not null;default:0"`
	Passed             int       `gorm:"not null;default:0"`
	Failed             int       `gorm:"not null;default:0"`
	FailedExpectations int       `gorm:"not null;default:0"`
	DurationSeconds    float64   `gorm:"not null;default:0"`
	Workers            int       `gorm:"not null;default:0"`
	CreatedAt          time.Time
}

// TableName specifies the table name for GORM
func (RunModel) TableName() string { return "runs" }

// ScenarioRunModel is one scenario outcome within a run.
type ScenarioRunModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"not null;index:idx_run_id"`
	Name       string `gorm:"not null"`
	FilePath   string `gorm:"not null;default:''"`
	Fixture    string `gorm:"not null;default:''"`
	Port       int
	Success    bool   `gorm:"not null;default:false"`
	DurationMS int64  `gorm:"not null;default:0"`
	Failures   int    `gorm:"not null;default:0"`
	Warnings   int    `gorm:"not null;default:0"`
	Error      string `gorm:"default:''"`
	CreatedAt  time.Time
}

// TableName specifies the table name for GORM
func (ScenarioRunModel) TableName() string { return "scenario_runs" }

// History keeps every run in a SQLite database.
type History struct {
	db *gorm.DB
}

// gormLogger forwards GORM logs to the zap logger
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("duration", time.Since(begin)),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error", append(fields, zap.Error(err))...)
		return
	}
	logging.Logger.Debug("gorm query", fields...)
}

// newGormLogger logs queries only when debug logging is on.
func newGormLogger() logger.Interface {
	if logging.DebugEnabled() {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// OpenHistory opens (creating if needed) the history database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		Logger:  newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	if err := db.AutoMigrate(&RunModel{}, &ScenarioRunModel{}); err != nil {
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record stores a run and its scenario results in one transaction.
func (h *History) Record(output *domain.ResultsOutput, results []domain.ScenarioResult) error {
	meta := output.Meta
	started, err := time.Parse(time.RFC3339, meta.Timestamp)
	if err != nil {
		started = time.Now()
	}

	run := RunModel{
		ID:                 meta.RunID,
		StartedAt:          started.UTC(),
		Total:              meta.TotalScenarios,
		Passed:             meta.PassedScenarios,
		Failed:             meta.FailedScenarios,
		FailedExpectations: meta.FailedExpectations,
		DurationSeconds:    meta.DurationSeconds,
		Workers:            meta.Workers,
	}

	return h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("record run %s: %w", run.ID, err)
		}
		if len(results) == 0 {
			return nil
		}
		rows := make([]ScenarioRunModel, 0, len(results))
		for _, r := range results {
			row := ScenarioRunModel{
				RunID:      run.ID,
				Name:       r.Name,
				FilePath:   r.FilePath,
				Fixture:    r.Fixture,
				Port:       r.Port,
				Success:    r.Success,
				DurationMS: r.Duration.Milliseconds(),
				Failures:   len(r.Failures),
				Warnings:   len(r.Warnings),
			}
			if r.Error != nil {
				row.Error = r.Error.Error()
			}
			rows = append(rows, row)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("record scenarios of run %s: %w", run.ID, err)
		}
		return nil
	})
}

// Recent returns up to limit runs, newest first.
func (h *History) Recent(limit int) ([]RunModel, error) {
	var runs []RunModel
	q := h.db.Order("started_at DESC").Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}
	return runs, nil
}

// ErrRunNotFound is returned by FindRun when no run id has the prefix.
var ErrRunNotFound = errors.New("run not found")

// FindRun returns the run whose id starts with prefix, as shown by
// `approbe history`. An ambiguous prefix is an error.
func (h *History) FindRun(prefix string) (*RunModel, error) {
	var runs []RunModel
	if err := h.db.Where("id LIKE ?", prefix+"%").Limit(2).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("find run %s: %w", prefix, err)
	}
	switch len(runs) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return &runs[0], nil
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", prefix)
	}
}

// Scenarios returns the scenario outcomes of a run.
func (h *History) Scenarios(runID string) ([]ScenarioRunModel, error) {
	var rows []ScenarioRunModel
	if err := h.db.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load scenarios of run %s: %w", runID, err)
	}
	return rows, nil
}

// Close releases the database handle.
func (h *History) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
