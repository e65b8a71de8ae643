package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/model"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/analyzer"
	"github.com/LouYuanbo1/leadagent/internal/service/feed"
	"github.com/LouYuanbo1/leadagent/internal/service/notify"
	"go.uber.org/zap"
)

// expandSettle 点击 "see more" 之后等待内容展开
const expandSettle = 200 * time.Millisecond

// ScanResult 一次扫描的结果
type ScanResult struct {
	Scanned int           `json:"scanned"`
	Leads   []*model.Lead `json:"leads"`
}

// Scan 扫描页面上所有尚未处理的帖子
// 已有扫描或策略执行在进行时直接返回
func (s *Scanner) Scan(ctx context.Context, page types.Page) (ScanResult, error) {
	result := ScanResult{Leads: []*model.Lead{}}
	if s.executor != nil && s.executor.Running() {
		return result, ErrExtractionRunning
	}
	if !s.scanning.CompareAndSwap(false, true) {
		return result, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	for _, post := range feed.CollectPosts(ctx, page) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		lead, scanned, err := s.scanPost(ctx, page, post)
		if err != nil {
			// 单条帖子失败不影响其余帖子,未标记为已处理,下次扫描重试
			s.logger.Warn("处理帖子失败", zap.Error(err))
			continue
		}
		if scanned {
			result.Scanned++
		}
		if lead != nil {
			result.Leads = append(result.Leads, lead)
		}
	}
	if len(result.Leads) > 0 {
		s.logger.Info("扫描完成", zap.Int("scanned", result.Scanned), zap.Int("leads", len(result.Leads)))
	}
	return result, nil
}

// scanPost 处理一条帖子,scanned 表示帖子此前未处理过
// 只有得到最终结论(未命中、未通过判断、已保存或已存在)的帖子才标记为已处理
func (s *Scanner) scanPost(ctx context.Context, page types.Page, el types.Element) (*model.Lead, bool, error) {
	postID := feed.PostID(el)
	if postID == "" {
		return nil, false, nil
	}
	s.mu.Lock()
	seen := s.session.Seen(postID)
	snap := s.session.Snapshot()
	s.mu.Unlock()
	if seen || len(snap.Keywords) == 0 {
		return nil, false, nil
	}

	feed.ExpandPost(ctx, el, expandSettle, s.sleep)
	data := feed.ExtractPostData(el, page.URL())
	if data.Content == "" {
		return nil, false, nil
	}

	match := s.matcher.Match(data.Content)
	if !match.Matched {
		s.markSeen(postID)
		return nil, true, nil
	}

	contacts := s.contacts.ExtractAll(data.Content)
	now := s.now()
	post := entity.Post{
		ID:            postID,
		URL:           data.URL,
		AuthorName:    data.Author,
		AuthorProfile: data.AuthorProfile,
		Content:       data.Content,
		Keywords:      match.Keywords,
		Emails:        contacts.Emails,
		Phones:        contacts.Phones,
		Timestamp:     now,
	}
	lead := post.ToDocument(entity.Provenance{
		Source:   model.SourceKeyword,
		PageType: analyzer.DetectPageType(page.URL()).String(),
		Now:      now,
	})
	s.logger.Debug("帖子命中关键词", zap.String("post", postID), zap.Strings("keywords", match.Keywords))

	if !s.assess(ctx, lead, snap) {
		s.markSeen(postID)
		s.logger.Info("线索未通过相关性判断", zap.String("post", postID), zap.String("reason", lead.AIReason))
		return nil, true, nil
	}

	added, err := s.save(ctx, lead)
	if err != nil {
		return nil, false, fmt.Errorf("帖子 %s: %w", postID, err)
	}
	s.markSeen(postID)
	if !added {
		return nil, true, nil
	}

	if snap.Settings.HighlightPosts {
		if err := el.Mark(types.HighlightClass, "Match: "+strings.Join(match.Keywords, ", ")); err != nil {
			s.logger.Debug("标记帖子失败", zap.Error(err))
		}
	}
	if snap.Settings.EnableNotifications && !contacts.Empty() {
		s.notify("New Lead Found!", fmt.Sprintf("Found %d email(s) and %d phone(s)", len(contacts.Emails), len(contacts.Phones)))
	}
	return lead, true, nil
}

// assess 未开启相关性判断时直接通过
func (s *Scanner) assess(ctx context.Context, lead *model.Lead, snap Session) bool {
	if !snap.Settings.AIRelevanceEnabled || s.relevance == nil {
		lead.AIReason = "AI filter disabled"
		return true
	}
	r := s.relevance.Assess(ctx, lead, snap.Settings.CompanyProfile, snap.Settings.OpenRouterModel)
	relevant := r.Relevant
	lead.AIRelevant = &relevant
	lead.AIReason = r.Reason
	lead.AIScore = r.Score
	return relevant
}

// save 保存线索,放入导出队列并更新统计
func (s *Scanner) save(ctx context.Context, lead *model.Lead) (bool, error) {
	added, err := s.leads.Add(ctx, lead)
	if err != nil {
		return false, fmt.Errorf("保存线索失败: %w", err)
	}
	if !added {
		s.logger.Debug("线索已存在", zap.String("id", lead.ID))
		return false, nil
	}
	if s.exporter != nil {
		s.exporter.Enqueue(ctx, lead)
	}
	s.bus.Publish(notify.EventNewLead, lead)
	if _, err := s.settings.RecordLead(ctx, lead); err != nil {
		s.logger.Warn("更新统计失败", zap.Error(err))
	}
	return true, nil
}

func (s *Scanner) markSeen(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.MarkSeen(postID)
}
