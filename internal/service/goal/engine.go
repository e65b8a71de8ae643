package goal

import (
	"slices"
	"sync"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/analysis"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"go.uber.org/zap"
)

// Engine 目标目录与当前激活的目标
type Engine struct {
	logger *zap.Logger
	now    func() time.Time

	templates []strategy.Goal

	mu      sync.RWMutex
	current *strategy.Goal
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:    logger.Named("goal"),
		now:       time.Now,
		templates: catalog(),
	}
}

// Templates 按目录顺序返回所有目标模板的副本
func (e *Engine) Templates() []strategy.Goal {
	out := make([]strategy.Goal, 0, len(e.templates))
	for _, g := range e.templates {
		out = append(out, clone(g))
	}
	return out
}

// Template 按 id 查找目标模板
func (e *Engine) Template(id string) (strategy.Goal, bool) {
	for _, g := range e.templates {
		if g.ID == id {
			return clone(g), true
		}
	}
	return strategy.Goal{}, false
}

// RecommendGoal 返回目录中第一个兼容该页面的目标,都不兼容时返回自定义目标
func (e *Engine) RecommendGoal(a *analysis.PageAnalysis) strategy.Goal {
	pageType := analysis.Unknown
	if a != nil {
		pageType = a.PageType
	}
	for _, g := range e.templates {
		if g.CompatibleWith(pageType) {
			return clone(g)
		}
	}
	custom, _ := e.Template(Custom)
	return custom
}

// SetGoal 激活目标,id 未知时返回 false 且不修改当前目标
func (e *Engine) SetGoal(id, customInstructions string) bool {
	template, ok := e.Template(id)
	if !ok {
		e.logger.Warn("未知的目标", zap.String("goalId", id))
		return false
	}
	template.CustomInstructions = customInstructions
	template.Active = true
	template.ActivatedAt = e.now()

	e.mu.Lock()
	e.current = &template
	e.mu.Unlock()

	e.logger.Info("目标已激活", zap.String("goalId", id), zap.String("goal", template.Name))
	return true
}

// CurrentGoal 返回当前激活的目标
func (e *Engine) CurrentGoal() (strategy.Goal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return strategy.Goal{}, false
	}
	return clone(*e.current), true
}

func (e *Engine) ClearGoal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = nil
}

// GenerateStrategy 将目标与页面分析编译为策略,相同输入得到相同的步骤
func (e *Engine) GenerateStrategy(goal strategy.Goal, a *analysis.PageAnalysis) *strategy.Strategy {
	pageType := analysis.Unknown
	if a != nil {
		pageType = a.PageType
	}
	s := &strategy.Strategy{
		GoalID:       goal.ID,
		GoalName:     goal.Name,
		PageType:     pageType,
		Steps:        []strategy.Step{},
		AIPrompt:     AIPrompt(goal, a),
		Instructions: goal.CustomInstructions,
	}
	if gen, ok := generators[goal.ID]; ok {
		s.Steps = gen(a)
	} else {
		e.logger.Warn("目标没有对应的步骤生成器", zap.String("goalId", goal.ID))
	}
	return s
}

// IsGoalCompatible 目标是否适用于该页面类型,未知 id 返回 false
func (e *Engine) IsGoalCompatible(id string, pageType analysis.PageType) bool {
	g, ok := e.Template(id)
	if !ok {
		return false
	}
	return g.CompatibleWith(pageType)
}

func clone(g strategy.Goal) strategy.Goal {
	g.CompatiblePages = slices.Clone(g.CompatiblePages)
	g.Targets = slices.Clone(g.Targets)
	g.Actions = slices.Clone(g.Actions)
	return g
}
