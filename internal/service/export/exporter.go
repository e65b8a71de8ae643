package export

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/persistence"
	"github.com/LouYuanbo1/leadagent/internal/infra/sheets"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const NoLeadsMessage = "No new leads to export"

var (
	ErrInProgress    = errors.New("export already in progress")
	ErrNotConfigured = errors.New("no sheet configured")
)

// SettingsSource 读取运行期设置,用于判断 autoSync
type SettingsSource interface {
	Settings(ctx context.Context) (config.Settings, error)
}

// StatsRecorder 导出成功后更新统计
type StatsRecorder interface {
	RecordExport(ctx context.Context, count int) (model.Stats, error)
}

// Result 一次导出的结果
type Result struct {
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
}

// Exporter 将线索批量追加到表格
// 新线索先进入队列,最后一次入队后 Debounce 时间内没有新线索才导出
type Exporter struct {
	sink     sheets.Sink
	leads    persistence.LeadStore
	settings SettingsSource
	stats    StatsRecorder
	bus      notify.Publisher
	cfg      config.ExportConfig
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.Mutex
	queue     []*model.Lead
	kick      chan struct{}
	exporting atomic.Bool
}

// NewExporter sink 为 nil 时导出返回 ErrNotConfigured
func NewExporter(
	sink sheets.Sink,
	leads persistence.LeadStore,
	settings SettingsSource,
	stats StatsRecorder,
	bus notify.Publisher,
	cfg config.ExportConfig,
	logger *zap.Logger,
) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = notify.Nop{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 3
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 5 * time.Second
	}
	return &Exporter{
		sink:     sink,
		leads:    leads,
		settings: settings,
		stats:    stats,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.Named("export"),
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
}

// Enqueue 新线索入队,开启 autoSync 时重新计时
func (e *Exporter) Enqueue(ctx context.Context, lead *model.Lead) {
	e.mu.Lock()
	e.queue = append(e.queue, lead)
	e.mu.Unlock()

	if !e.autoSync(ctx) {
		return
	}
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Queued 队列中等待导出的线索数量
func (e *Exporter) Queued() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Run 处理防抖导出与周期同步,直到 ctx 结束
func (e *Exporter) Run(ctx context.Context) error {
	debounce := time.NewTimer(e.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	var periodic <-chan time.Time
	if e.cfg.SyncInterval > 0 {
		ticker := time.NewTicker(e.cfg.SyncInterval)
		defer ticker.Stop()
		periodic = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.kick:
			debounce.Reset(e.cfg.Debounce)
		case <-debounce.C:
			if e.Queued() == 0 || e.exporting.Load() {
				continue
			}
			e.runExport(ctx, "debounce")
		case <-periodic:
			if e.autoSync(ctx) {
				e.runExport(ctx, "periodic")
			}
		}
	}
}

func (e *Exporter) runExport(ctx context.Context, trigger string) {
	res, err := e.Export(ctx)
	if err != nil {
		e.logger.Error("导出失败", zap.String("trigger", trigger), zap.Error(err))
		return
	}
	e.logger.Info("导出完成", zap.String("trigger", trigger), zap.Int("count", res.Count))
}

// Export 导出队列中的线索,队列为空时导出所有未导出的线索
// 批次按顺序追加,失败的批次及之后的线索保持未导出状态
func (e *Exporter) Export(ctx context.Context) (Result, error) {
	if !e.exporting.CompareAndSwap(false, true) {
		return Result{}, ErrInProgress
	}
	defer e.exporting.Store(false)

	if e.sink == nil {
		return Result{}, ErrNotConfigured
	}

	pending, fromQueue, err := e.pending(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(pending) == 0 {
		return Result{Message: NoLeadsMessage}, nil
	}
	e.logger.Info("开始导出", zap.Int("leads", len(pending)))

	if err := e.ensureHeaders(ctx); err != nil {
		return Result{}, err
	}

	exported := 0
	var exportErr error
	for batch := range slices.Chunk(pending, e.cfg.BatchSize) {
		if err := e.appendWithRetry(ctx, sheets.LeadRows(batch)); err != nil {
			exportErr = err
			break
		}
		// 行已追加,即使标记失败也算作已导出并停止后续批次,避免下次重复追加
		exported += len(batch)
		if err := e.markWithRetry(ctx, batch); err != nil {
			exportErr = fmt.Errorf("标记导出状态失败: %w", err)
			break
		}
	}

	if fromQueue {
		e.dequeue(pending[:exported])
	}
	if exported > 0 {
		if e.stats != nil {
			if _, err := e.stats.RecordExport(ctx, exported); err != nil {
				e.logger.Warn("更新导出统计失败", zap.Error(err))
			}
		}
		e.bus.Publish(notify.EventExportCompleted, Result{Count: exported})
	}
	if exportErr != nil {
		return Result{Count: exported}, fmt.Errorf("exported %d of %d leads: %w", exported, len(pending), exportErr)
	}
	return Result{Count: exported}, nil
}

func (e *Exporter) pending(ctx context.Context) ([]*model.Lead, bool, error) {
	e.mu.Lock()
	queued := slices.Clone(e.queue)
	e.mu.Unlock()
	if len(queued) > 0 {
		return queued, true, nil
	}
	leads, err := e.leads.Unexported(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("读取未导出线索失败: %w", err)
	}
	return leads, false, nil
}

func (e *Exporter) dequeue(done []*model.Lead) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = slices.DeleteFunc(e.queue, func(l *model.Lead) bool {
		return slices.ContainsFunc(done, func(d *model.Lead) bool { return d.ID == l.ID })
	})
}

// ensureHeaders 表头为空时先写入表头,读取失败时中止导出
func (e *Exporter) ensureHeaders(ctx context.Context) error {
	values, err := e.sink.ReadRange(ctx, e.sink.SheetName()+"!"+sheets.HeaderRange)
	if err != nil {
		return fmt.Errorf("读取表头失败: %w", err)
	}
	if len(values) > 0 {
		return nil
	}
	return e.appendWithRetry(ctx, [][]string{sheets.Headers})
}

func (e *Exporter) appendWithRetry(ctx context.Context, rows [][]string) error {
	return e.retry(ctx, "追加失败", func() error {
		err := e.sink.AppendRows(ctx, rows)
		if errors.Is(err, sheets.ErrUnauthorized) || errors.Is(err, sheets.ErrForbidden) || errors.Is(err, sheets.ErrSheetNotFound) {
			return backoff.Permanent(err)
		}
		return err
	})
}

func (e *Exporter) markWithRetry(ctx context.Context, batch []*model.Lead) error {
	ids := make([]string, len(batch))
	for i, l := range batch {
		ids[i] = l.ID
	}
	at := e.now()
	return e.retry(ctx, "标记导出状态失败", func() error {
		return e.leads.MarkExported(ctx, ids, at)
	})
}

func (e *Exporter) retry(ctx context.Context, msg string, op func() error) error {
	var b backoff.BackOff = backoff.NewConstantBackOff(e.cfg.RetryDelay)
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.RetryAttempts-1)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err != nil {
			e.logger.Warn(msg, zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}, b)
}

func (e *Exporter) autoSync(ctx context.Context) bool {
	if e.settings == nil {
		return config.DefaultSettings().AutoSync
	}
	s, err := e.settings.Settings(ctx)
	if err != nil {
		e.logger.Warn("读取设置失败", zap.Error(err))
	}
	return s.AutoSync
}
