package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/aiscraper"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"go.uber.org/zap"
)

var (
	ErrUnknownGoal = errors.New("unknown goal")
	ErrNoExecutor  = errors.New("strategy executor not configured")
)

// aiScrapeGoalID 模型策略提取的线索使用的目标 id
const aiScrapeGoalID = "ai_scrape"

// IntelligentResult 智能模式一次分析与执行的结果,Execution 为 nil 表示未执行
type IntelligentResult struct {
	Analysis  *analysis.PageAnalysis    `json:"analysis"`
	Goal      strategy.Goal             `json:"goal"`
	Strategy  *strategy.Strategy        `json:"strategy"`
	Execution *strategy.ExecutionResult `json:"execution,omitempty"`
	Leads     []*model.Lead             `json:"leads"`
}

// Intelligent 分析页面,激活目标并生成策略,execute 为 true 时执行策略
// goalID 为空时使用设置中的目标,仍为空时使用推荐目标
func (s *Scanner) Intelligent(ctx context.Context, page types.Page, goalID, instructions string, execute bool) (*IntelligentResult, error) {
	a := s.analyzer.Analyze(ctx, page)
	if goalID == "" {
		goalID = s.Session().Settings.CurrentGoalID
	}
	if goalID == "" {
		goalID = s.goals.RecommendGoal(a).ID
	}
	if !s.goals.SetGoal(goalID, instructions) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGoal, goalID)
	}
	g, _ := s.goals.CurrentGoal()
	plan := s.goals.GenerateStrategy(g, a)
	s.logger.Info("生成提取策略",
		zap.String("goal", g.Name), zap.Stringer("pageType", a.PageType), zap.Int("steps", len(plan.Steps)))

	result := &IntelligentResult{Analysis: a, Goal: g, Strategy: plan, Leads: []*model.Lead{}}
	if !execute {
		return result, nil
	}
	exec, leads, err := s.executeStrategy(ctx, page, plan)
	result.Execution = exec
	result.Leads = leads
	return result, err
}

// executeStrategy 执行策略,成功时把记录保存为线索
func (s *Scanner) executeStrategy(ctx context.Context, page types.Page, plan *strategy.Strategy) (*strategy.ExecutionResult, []*model.Lead, error) {
	if s.executor == nil {
		return nil, nil, ErrNoExecutor
	}
	if s.scanning.Load() {
		return nil, nil, ErrScanInProgress
	}
	sourceURL := page.URL()
	res := s.executor.Execute(ctx, page, plan)
	s.bus.Publish(notify.EventExtractionResult, res)

	if !res.Success {
		message := "Unknown error occurred"
		if res.Err != nil {
			message = res.Err.Error()
		}
		s.notify("Extraction Failed", message)
		return &res, []*model.Lead{}, res.Err
	}

	leads := s.saveRecords(ctx, res.Data, entity.Provenance{
		Source:    model.SourceIntelligent,
		GoalID:    plan.GoalID,
		GoalName:  plan.GoalName,
		PageType:  plan.PageType.String(),
		SourceURL: sourceURL,
	})
	s.notify("Extraction Complete", fmt.Sprintf("Successfully extracted %d leads", res.Count))
	return &res, leads, nil
}

// handlePageChange 自动驾驶模式下页面跳转后,目标仍兼容时继续提取
func (s *Scanner) handlePageChange(ctx context.Context, page types.Page, snap Session) {
	if !snap.Settings.IntelligentMode || !snap.Settings.AutopilotEnabled {
		return
	}
	g, ok := s.goals.CurrentGoal()
	if !ok {
		return
	}
	a := s.analyzer.Analyze(ctx, page)
	if !s.goals.IsGoalCompatible(g.ID, a.PageType) {
		s.logger.Info("当前目标不适用于该页面", zap.String("goal", g.ID), zap.Stringer("pageType", a.PageType))
		return
	}
	if _, _, err := s.executeStrategy(ctx, page, s.goals.GenerateStrategy(g, a)); err != nil {
		s.logger.Warn("页面跳转后继续提取失败", zap.Error(err))
	}
}

// StopIntelligent 停止正在执行的策略
func (s *Scanner) StopIntelligent() {
	if s.executor != nil {
		s.executor.Stop()
	}
	s.goals.ClearGoal()
	s.notify("Intelligent Mode Stopped", "Extraction has been stopped")
}

// AIExtract 由模型生成提取策略并执行,提取到的记录保存为线索
func (s *Scanner) AIExtract(ctx context.Context, page types.Page, userGoal string) (*aiscraper.ExtractionResult, []*model.Lead, error) {
	if s.scraper == nil {
		return nil, nil, ErrNoScraper
	}
	sourceURL := page.URL()
	plan, err := s.scraper.Plan(ctx, page, userGoal)
	if err != nil {
		s.notify("Extraction Failed", err.Error())
		return nil, nil, err
	}
	res, err := s.scraper.ExecuteStrategy(ctx, page, plan)
	if err != nil {
		s.notify("Extraction Failed", err.Error())
		return nil, nil, err
	}
	s.bus.Publish(notify.EventExtractionResult, res)

	leads := s.saveRecords(ctx, res.Data, entity.Provenance{
		Source:    model.SourceAIScrape,
		GoalID:    aiScrapeGoalID,
		GoalName:  userGoal,
		PageType:  plan.PageType,
		SourceURL: sourceURL,
	})
	s.notify("Extraction Complete", fmt.Sprintf("Successfully extracted %d leads", res.Count))
	return res, leads, nil
}

// saveRecords 记录转换为线索并保存,已存在的线索跳过
func (s *Scanner) saveRecords(ctx context.Context, records []entity.Record, prov entity.Provenance) []*model.Lead {
	prov.Now = s.now()
	leads := make([]*model.Lead, 0, len(records))
	for i := range records {
		lead := records[i].ToDocument(prov)
		added, err := s.save(ctx, lead)
		if err != nil {
			s.logger.Warn("保存提取记录失败", zap.Int("index", records[i].Index), zap.Error(err))
			continue
		}
		if added {
			leads = append(leads, lead)
		}
	}
	s.logger.Info("提取记录已保存", zap.Int("records", len(records)), zap.Int("leads", len(leads)))
	return leads
}
