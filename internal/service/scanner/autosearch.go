package scanner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/config"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/settings"
	"go.uber.org/zap"
)

var ErrNoKeywords = errors.New("no keywords configured")

// 全局搜索框,按顺序尝试
var searchInputSelectors = []string{
	`input[placeholder="Search"]`,
	`input[aria-label="Search"]`,
	".search-global-typeahead__input",
	"input.search-global-typeahead__input",
}

const scrollFraction = 0.9

// StartAutoSearch 从第一个关键词开始轮流搜索
func (s *Scanner) StartAutoSearch(ctx context.Context) error {
	s.mu.Lock()
	if len(s.session.Keywords) == 0 {
		s.mu.Unlock()
		return ErrNoKeywords
	}
	state := AutoSearchState{Running: true, KeywordIndex: 0, ShouldNavigate: true}
	s.session.AutoSearch = state
	s.mu.Unlock()

	if err := s.settings.Save(ctx, settings.KeyAutoSearchState, state); err != nil {
		return err
	}
	s.logger.Info("自动搜索已启动")
	s.wake()
	return nil
}

// StopAutoSearch 取消下一次搜索并清除保存的状态,正在进行的一轮会执行完
func (s *Scanner) StopAutoSearch(ctx context.Context) error {
	s.mu.Lock()
	s.session.AutoSearch = AutoSearchState{}
	s.mu.Unlock()
	s.wake()
	if err := s.settings.Delete(ctx, settings.KeyAutoSearchState); err != nil {
		return err
	}
	s.logger.Info("自动搜索已停止")
	return nil
}

// autoSearchStep 执行自动搜索的一个阶段,返回到下一阶段的等待时间
// 导航阶段跳转到当前关键词,扫描阶段滚动扫描后移动到下一个关键词
func (s *Scanner) autoSearchStep(ctx context.Context, page types.Page) (time.Duration, bool) {
	snap := s.Session()
	state := snap.AutoSearch
	if !state.Running {
		return 0, false
	}
	if len(snap.Keywords) == 0 {
		if err := s.StopAutoSearch(ctx); err != nil {
			s.logger.Warn("停止自动搜索失败", zap.Error(err))
		}
		return 0, false
	}

	index := state.KeywordIndex
	if index < 0 || index >= len(snap.Keywords) {
		index = 0
	}
	keyword := snap.Keywords[index]

	if state.ShouldNavigate {
		if !s.advance(ctx, func(st *AutoSearchState) {
			st.KeywordIndex = index
			st.ShouldNavigate = false
			st.CurrentKeyword = keyword
		}) {
			return 0, false
		}
		if err := s.navigateToKeyword(ctx, page, keyword); err != nil {
			s.logger.Warn("跳转搜索页失败", zap.String("keyword", keyword), zap.Error(err))
		}
		return s.cfg.NavigationSettle, true
	}

	s.autoScrollAndScan(ctx, page, snap.Settings)
	if ctx.Err() != nil {
		return 0, false
	}

	next := (index + 1) % len(snap.Keywords)
	if !s.advance(ctx, func(st *AutoSearchState) {
		st.KeywordIndex = next
		st.ShouldNavigate = true
		st.CurrentKeyword = snap.Keywords[next]
	}) {
		return 0, false
	}
	return snap.Settings.AutoSearchInterval(), true
}

// advance 修改并保存自动搜索状态,期间被停止时返回 false
func (s *Scanner) advance(ctx context.Context, update func(*AutoSearchState)) bool {
	s.mu.Lock()
	if !s.session.AutoSearch.Running {
		s.mu.Unlock()
		return false
	}
	update(&s.session.AutoSearch)
	state := s.session.AutoSearch
	s.mu.Unlock()

	if err := s.settings.Save(ctx, settings.KeyAutoSearchState, state); err != nil {
		s.logger.Warn("保存自动搜索状态失败", zap.Error(err))
	}
	return true
}

// navigateToKeyword 在搜索框中输入关键词并回车,没有跳转到搜索结果页时直接打开搜索地址
func (s *Scanner) navigateToKeyword(ctx context.Context, page types.Page, keyword string) error {
	s.logger.Info("自动搜索跳转", zap.String("keyword", keyword))
	selector := strings.Join(searchInputSelectors, ", ")
	input, ok := types.WaitForElement(ctx, page, selector, s.cfg.SearchInputWait, 200*time.Millisecond)
	if ok {
		if err := input.SetValue(keyword, true); err != nil {
			s.logger.Debug("输入搜索词失败", zap.Error(err))
		} else {
			if err := s.sleep(ctx, s.cfg.NavigationSettle); err != nil {
				return err
			}
			if onSearchResults(page.URL()) {
				return nil
			}
		}
	}
	return page.Navigate(ctx, SearchURL(keyword))
}

// autoScrollAndScan 扫描后向下滚动,重复 max(1, autoScrollCycles) 轮后回到顶部
func (s *Scanner) autoScrollAndScan(ctx context.Context, page types.Page, current config.Settings) {
	cycles := max(1, current.AutoScrollCycles)
	for range cycles {
		if ctx.Err() != nil {
			return
		}
		s.runScanIfReady(ctx, page)
		if !current.AutoScrollEnabled {
			continue
		}
		if err := page.ScrollBy(ctx, scrollFraction); err != nil {
			s.logger.Debug("滚动失败", zap.Error(err))
		}
		if err := s.sleep(ctx, current.AutoScrollInterval()); err != nil {
			return
		}
	}
	if err := page.ScrollToTop(ctx); err != nil {
		s.logger.Debug("回到顶部失败", zap.Error(err))
	}
}

// Sweep 与扫描模式无关地执行 max(1, autoScrollCycles) 轮扫描和滚动,汇总所有轮次的结果
func (s *Scanner) Sweep(ctx context.Context, page types.Page) (ScanResult, error) {
	current := s.Session().Settings
	total := ScanResult{Leads: []*model.Lead{}}
	for range max(1, current.AutoScrollCycles) {
		res, err := s.Scan(ctx, page)
		total.Scanned += res.Scanned
		total.Leads = append(total.Leads, res.Leads...)
		if err != nil {
			return total, err
		}
		if !current.AutoScrollEnabled {
			break
		}
		if err := page.ScrollBy(ctx, scrollFraction); err != nil {
			s.logger.Debug("滚动失败", zap.Error(err))
		}
		if err := s.sleep(ctx, current.AutoScrollInterval()); err != nil {
			return total, err
		}
	}
	return total, nil
}

func onSearchResults(rawURL string) bool {
	return strings.Contains(rawURL, "/search/results")
}
