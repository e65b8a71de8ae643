package executor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/LouYuanbo1/leadagent/internal/domain/entity"
	"github.com/LouYuanbo1/leadagent/internal/domain/strategy"
	"github.com/LouYuanbo1/leadagent/internal/infra/crawler/types"
	"github.com/LouYuanbo1/leadagent/internal/service/contact"
	"github.com/LouYuanbo1/leadagent/internal/service/feed"
	"go.uber.org/zap"
)

const (
	clickSettle      = 500 * time.Millisecond
	clickDelay       = time.Second
	expandDelay      = 300 * time.Millisecond
	loadMoreDelay    = 1500 * time.Millisecond
	scrollDelay      = 1500 * time.Millisecond
	scrollFraction   = 0.9
	scrollCycles     = 5
	settleDelay      = time.Second
	downloadDelay    = time.Second
	waitDuration     = time.Second
	loadAllAttempts  = 20
	commentsSelector = ".comments-comment-item"
)

var firstNumber = regexp.MustCompile(`\d[\d,]*`)

type matchedPost struct {
	el       types.Element
	id       string
	data     feed.PostData
	keywords []string
}

func (e *Executor) detectCount(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if step.Selector() == "" {
		return strategy.Fail(ErrNoSelector)
	}
	el, ok := e.first(ctx, r.page, step.Selectors)
	if !ok {
		return strategy.Fail(fmt.Errorf("%w: %s", ErrNotFound, step.Selector()))
	}
	count := 0
	if m := firstNumber.FindString(el.Text()); m != "" {
		count, _ = strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	}
	e.logger.Info("检测到数量", zap.String("step", step.Name), zap.Int("count", count))
	return strategy.StepResult{Success: true, Value: map[string]any{"count": count}}
}

func (e *Executor) click(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if len(step.Selectors) == 0 {
		return strategy.Fail(ErrNoSelector)
	}
	for _, selector := range step.Selectors {
		elements, err := r.page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if !el.Visible() {
				continue
			}
			if err := el.ScrollIntoView(); err != nil {
				e.logger.Debug("滚动到元素失败", zap.Error(err))
			}
			if err := e.sleep(ctx, clickSettle); err != nil {
				return strategy.Fail(err)
			}
			if err := el.Click(); err != nil {
				return strategy.Fail(fmt.Errorf("click %s: %w", selector, err))
			}
			e.logger.Debug("已点击", zap.String("selector", selector))

			if step.WaitFor != "" {
				if _, found := types.WaitForElement(ctx, r.page, step.WaitFor, e.cfg.WaitTimeout, e.cfg.PollInterval); !found {
					e.logger.Debug("等待元素超时", zap.String("selector", step.WaitFor))
				}
			} else if err := e.sleep(ctx, clickDelay); err != nil {
				return strategy.Fail(err)
			}
			return strategy.StepResult{Success: true, Count: 1}
		}
	}
	return strategy.Fail(ErrNotVisible)
}

func (e *Executor) expand(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if len(step.Selectors) == 0 {
		return strategy.Fail(ErrNoSelector)
	}
	clicked := 0
	for _, selector := range step.Selectors {
		buttons, err := r.page.QueryAll(ctx, selector)
		if err != nil {
			continue
		}
		for _, btn := range buttons {
			if !btn.Visible() {
				continue
			}
			label := strings.ToLower(btn.Text())
			if !strings.Contains(label, "more") || strings.Contains(label, "less") {
				continue
			}
			if err := btn.Click(); err != nil {
				continue
			}
			clicked++
			if err := e.sleep(ctx, expandDelay); err != nil {
				return strategy.Fail(err)
			}
		}
	}
	return strategy.StepResult{Success: true, Count: clicked}
}

func (e *Executor) scroll(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	cycles := step.ScrollCycles
	if cycles <= 0 {
		cycles = scrollCycles
	}
	delay := step.ScrollDelay
	if delay <= 0 {
		delay = scrollDelay
	}
	for range cycles {
		if err := r.page.ScrollBy(ctx, scrollFraction); err != nil {
			e.logger.Debug("滚动失败", zap.Error(err))
		}
		if err := e.sleep(ctx, delay); err != nil {
			return strategy.Fail(err)
		}
	}
	if err := r.page.ScrollToTop(ctx); err != nil {
		e.logger.Debug("回到顶部失败", zap.Error(err))
	}
	if err := e.sleep(ctx, settleDelay); err != nil {
		return strategy.Fail(err)
	}
	return strategy.StepResult{Success: true, Count: cycles}
}

func (e *Executor) scrollTo(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if step.Selector() == "" {
		return strategy.Fail(ErrNoSelector)
	}
	el, ok := e.first(ctx, r.page, step.Selectors)
	if !ok {
		return strategy.Fail(fmt.Errorf("%w: %s", ErrNotFound, step.Selector()))
	}
	if err := el.ScrollIntoView(); err != nil {
		return strategy.Fail(err)
	}
	if err := e.sleep(ctx, settleDelay); err != nil {
		return strategy.Fail(err)
	}
	return strategy.StepResult{Success: true, Count: 1}
}

// loadAll 反复点击 "加载更多",直到按钮消失或达到次数上限
func (e *Executor) loadAll(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if step.Selector() == "" {
		return strategy.Fail(ErrNoSelector)
	}
	attempts := step.MaxAttempts
	if attempts <= 0 {
		attempts = 1
		if step.RepeatUntilGone {
			attempts = loadAllAttempts
		}
	}
	clicked := 0
	for range attempts {
		btn, ok := e.first(ctx, r.page, step.Selectors)
		if !ok || !btn.Visible() {
			break
		}
		if err := btn.ScrollIntoView(); err != nil {
			e.logger.Debug("滚动到按钮失败", zap.Error(err))
		}
		if err := e.sleep(ctx, clickSettle); err != nil {
			return strategy.Fail(err)
		}
		if err := btn.Click(); err != nil {
			break
		}
		clicked++
		if err := e.sleep(ctx, loadMoreDelay); err != nil {
			return strategy.Fail(err)
		}
	}
	e.logger.Info("加载更多", zap.String("step", step.Name), zap.Int("clicks", clicked))
	return strategy.StepResult{Success: true, Count: clicked}
}

func (e *Executor) wait(ctx context.Context, step strategy.Step) strategy.StepResult {
	d := step.Duration
	if d <= 0 {
		d = waitDuration
	}
	if err := e.sleep(ctx, d); err != nil {
		return strategy.Fail(err)
	}
	return strategy.StepResult{Success: true}
}

func (e *Executor) extractList(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if len(step.Selectors) == 0 {
		return strategy.Fail(ErrNoSelector)
	}
	elements := e.all(ctx, r.page, step.Selectors)
	if len(elements) == 0 {
		return strategy.Fail(fmt.Errorf("%w: %s", ErrNoElements, step.Selector()))
	}
	if len(step.Fields) == 0 {
		return strategy.StepResult{Success: true, Records: []entity.Record{}}
	}

	pageURL := r.page.URL()
	records := make([]entity.Record, 0, len(elements))
	for i, el := range elements {
		rec := entity.NewRecord(i, e.now())
		rec.SourceURL = pageURL
		for _, field := range step.Fields {
			rec.Set(field, e.fieldValue(el, field, pageURL))
		}
		e.attachContacts(&rec, el.InnerText())
		records = append(records, rec)
	}
	r.records = append(r.records, records...)
	e.logger.Info("列表提取完成", zap.String("step", step.Name), zap.Int("records", len(records)))
	return strategy.Succeed(records)
}

func (e *Executor) extractComments(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	selectors := step.Selectors
	if len(selectors) == 0 {
		selectors = []string{commentsSelector}
	}
	comments := e.all(ctx, r.page, selectors)
	if len(comments) == 0 {
		return strategy.Fail(fmt.Errorf("%w: %s", ErrNoElements, selectors[0]))
	}

	fields := []string{"author_name", "author_profile", "comment_text", "timestamp"}
	for _, f := range step.Fields {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}

	pageURL := r.page.URL()
	records := make([]entity.Record, 0, len(comments))
	for i, comment := range comments {
		rec := entity.NewRecord(i, e.now())
		rec.SourceURL = pageURL
		for _, field := range fields {
			rec.Set(field, e.fieldValue(comment, field, pageURL))
		}
		contacts := e.contacts.ExtractAll(comment.Text())
		rec.Emails = contacts.Emails
		rec.Phones = contacts.Phones
		records = append(records, rec)
	}
	r.records = append(r.records, records...)
	e.logger.Info("评论提取完成", zap.Int("comments", len(records)))
	return strategy.Succeed(records)
}

// extractPage 以整个页面为范围提取字段,只保留非空字段
func (e *Executor) extractPage(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	body, err := r.page.Body(ctx)
	if err != nil {
		return strategy.Fail(err)
	}
	pageURL := r.page.URL()
	rec := entity.NewRecord(len(r.records), e.now())
	rec.SourceURL = pageURL
	for _, field := range step.Fields {
		if v := e.fieldValue(body, field, pageURL); v != "" {
			rec.Set(field, v)
		}
	}
	r.records = append(r.records, rec)
	return strategy.Succeed([]entity.Record{rec})
}

// extractContacts 提取页面可见文本中的联系方式,总是成功
func (e *Executor) extractContacts(ctx context.Context, r *run) strategy.StepResult {
	text, err := r.page.VisibleText(ctx)
	if err != nil {
		e.logger.Debug("读取页面文本失败", zap.Error(err))
	}
	contacts := e.contacts.ExtractAll(text)
	e.logger.Info("页面联系方式", zap.Int("emails", len(contacts.Emails)), zap.Int("phones", len(contacts.Phones)))
	return strategy.StepResult{
		Success: true,
		Count:   len(contacts.Emails) + len(contacts.Phones),
		Value:   map[string]any{"emails": contacts.Emails, "phones": contacts.Phones},
	}
}

func (e *Executor) extractContactSection(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if step.Selector() == "" {
		return strategy.Fail(ErrNoSelector)
	}
	section, ok := e.first(ctx, r.page, step.Selectors)
	if !ok {
		return strategy.Fail(fmt.Errorf("%w: contact section", ErrNotFound))
	}

	pageURL := r.page.URL()
	rec := entity.NewRecord(len(r.records), e.now())
	rec.SourceURL = pageURL
	contacts := e.contacts.ExtractAll(section.Text())
	rec.Emails = contacts.Emails
	rec.Phones = contacts.Phones
	for _, link := range section.QueryAll(`a[href^="mailto:"]`) {
		href, _ := link.Attr("href")
		e.addContact(&rec, contact.KindEmail, href)
	}
	for _, link := range section.QueryAll(`a[href^="tel:"]`) {
		href, _ := link.Attr("href")
		e.addContact(&rec, contact.KindPhone, href)
	}
	for _, field := range step.Fields {
		if v := e.fieldValue(section, field, pageURL); v != "" {
			rec.Set(field, v)
		}
	}
	r.records = append(r.records, rec)
	return strategy.Succeed([]entity.Record{rec})
}

func (e *Executor) download(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if len(step.Selectors) == 0 {
		return strategy.Fail(ErrNoSelector)
	}
	links := e.all(ctx, r.page, step.Selectors)
	if len(links) == 0 {
		return strategy.Fail(fmt.Errorf("%w: %s", ErrNotFound, step.Selector()))
	}
	pageURL := r.page.URL()
	downloaded := 0
	for _, link := range links {
		href, _ := link.Attr("href")
		if href == "" {
			continue
		}
		filename, _ := link.Attr("download")
		if filename == "" {
			filename = fmt.Sprintf("resume_%d.pdf", e.now().UnixMilli())
		}
		if err := r.page.Download(ctx, resolve(pageURL, href), filename); err != nil {
			e.logger.Warn("下载失败", zap.String("href", href), zap.Error(err))
			continue
		}
		downloaded++
		if err := e.sleep(ctx, downloadDelay); err != nil {
			return strategy.StepResult{Success: true, Count: downloaded}
		}
	}
	e.logger.Info("下载完成", zap.Int("downloaded", downloaded))
	return strategy.StepResult{Success: true, Count: downloaded}
}

// navigate 跳转到当前地址 (不含查询参数) 加上相对路径,跳转后本次执行结束
func (e *Executor) navigate(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	target := strings.TrimSuffix(originAndPath(r.page.URL()), "/") + step.URL
	if err := r.page.Navigate(ctx, target); err != nil {
		return strategy.Fail(fmt.Errorf("navigate %s: %w", target, err))
	}
	r.navigatedTo = target
	e.logger.Info("已跳转", zap.String("url", target))
	return strategy.StepResult{Success: true, Value: map[string]any{"url": target}}
}

// assess 将已提取的记录交给模型评估,失败时保留记录
func (e *Executor) assess(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if e.assessor == nil {
		return strategy.Fail(ErrNoAssessor)
	}
	if len(r.records) == 0 {
		return strategy.StepResult{Success: true}
	}
	task := step.Task
	if task == "" {
		task = "relevance_assessment"
	}
	results, err := e.assessor.AssessRecords(ctx, r.records, r.strategy.AIPrompt, task)
	if err != nil {
		return strategy.Fail(fmt.Errorf("ai analysis failed: %w", err))
	}
	for i := range r.records {
		if i >= len(results) {
			break
		}
		relevant, priority := results[i].Relevant, results[i].Priority
		r.records[i].AIRelevant = &relevant
		r.records[i].AIPriority = &priority
		r.records[i].AIReason = results[i].Reason
	}
	return strategy.StepResult{Success: true, Count: len(results)}
}

func (e *Executor) matchKeywords(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if e.matcher == nil {
		e.logger.Debug("未配置关键词匹配器,跳过")
		return strategy.StepResult{Success: true}
	}
	var posts []types.Element
	if len(step.Selectors) > 0 {
		posts = e.all(ctx, r.page, step.Selectors)
	} else {
		posts = feed.CollectPosts(ctx, r.page)
	}

	pageURL := r.page.URL()
	r.matched = r.matched[:0]
	for _, post := range posts {
		data := feed.ExtractPostData(post, pageURL)
		if data.Content == "" {
			continue
		}
		if res := e.matcher.Match(data.Content); res.Matched {
			r.matched = append(r.matched, matchedPost{el: post, id: feed.PostID(post), data: data, keywords: res.Keywords})
		}
	}
	e.logger.Info("关键词扫描完成", zap.Int("posts", len(posts)), zap.Int("matched", len(r.matched)))
	return strategy.StepResult{Success: true, Count: len(r.matched)}
}

func (e *Executor) extractMatched(r *run, step strategy.Step) strategy.StepResult {
	fields := step.Fields
	if len(fields) == 0 {
		fields = []string{"author", "content", "url", "keywords_matched"}
	}
	records := make([]entity.Record, 0, len(r.matched))
	for _, m := range r.matched {
		rec := entity.NewRecord(len(r.records)+len(records), e.now())
		rec.ID = m.id
		rec.SourceURL = m.data.URL
		for _, field := range fields {
			switch field {
			case "author":
				rec.Set(field, m.data.Author)
			case "content":
				rec.Set(field, m.data.Content)
			case "url":
				rec.Set(field, m.data.URL)
			case "author_profile":
				rec.Set(field, m.data.AuthorProfile)
			case "keywords_matched":
				rec.Set(field, strings.Join(m.keywords, ", "))
			default:
				rec.Set(field, e.fieldValue(m.el, field, m.data.URL))
			}
		}
		contacts := e.contacts.ExtractAll(m.data.Content)
		rec.Emails = contacts.Emails
		rec.Phones = contacts.Phones
		records = append(records, rec)
	}
	r.records = append(r.records, records...)
	return strategy.Succeed(records)
}

func (e *Executor) aiPlan(ctx context.Context, r *run, step strategy.Step) strategy.StepResult {
	if e.planner == nil {
		return strategy.Fail(ErrNoPlanner)
	}
	plan, err := e.planner.Plan(ctx, r.page, r.strategy.UserGoal())
	if err != nil {
		return strategy.Fail(err)
	}
	r.plan = plan
	return strategy.StepResult{Success: true, Count: len(plan.DataAvailable)}
}

func (e *Executor) aiExecute(ctx context.Context, r *run) strategy.StepResult {
	if e.planner == nil {
		return strategy.Fail(ErrNoPlanner)
	}
	if r.plan == nil {
		return strategy.Fail(ErrNoPlan)
	}
	records, err := e.planner.Extract(ctx, r.page, r.plan)
	if err != nil {
		return strategy.Fail(err)
	}
	for i := range records {
		records[i].Index = len(r.records) + i
	}
	r.records = append(r.records, records...)
	return strategy.Succeed(records)
}

// fieldValue 取字段值,链接类字段补全为绝对地址
func (e *Executor) fieldValue(el types.Element, field, pageURL string) string {
	v := e.fields.Extract(el, field)
	if v == "" {
		return ""
	}
	switch field {
	case "profile_url", "author_profile", "resume_url", "website":
		return resolve(pageURL, v)
	}
	return v
}

// attachContacts 合并元素全文与 email/phone 字段中的联系方式
func (e *Executor) attachContacts(rec *entity.Record, text string) {
	contacts := e.contacts.ExtractAll(text)
	rec.Emails = contacts.Emails
	rec.Phones = contacts.Phones
	e.addContact(rec, contact.KindEmail, rec.Get("email"))
	e.addContact(rec, contact.KindPhone, rec.Get("phone"))
}

// addContact 去掉 mailto:/tel: 前缀与查询参数,通过校验后合并到记录
func (e *Executor) addContact(rec *entity.Record, kind contact.Kind, raw string) {
	v := strings.TrimSpace(raw)
	switch kind {
	case contact.KindEmail:
		v = strings.TrimPrefix(v, "mailto:")
	case contact.KindPhone:
		v = strings.TrimPrefix(v, "tel:")
	}
	if i := strings.IndexByte(v, '?'); i >= 0 {
		v = v[:i]
	}
	if v == "" || !e.contacts.Accept(kind, v) {
		return
	}
	switch kind {
	case contact.KindEmail:
		rec.Emails = appendUnique(rec.Emails, v)
	case contact.KindPhone:
		rec.Phones = appendUnique(rec.Phones, v)
	}
}

func (e *Executor) first(ctx context.Context, page types.Page, selectors []string) (types.Element, bool) {
	for _, selector := range selectors {
		if el, ok := types.QueryFirst(ctx, page, selector); ok {
			return el, true
		}
	}
	return nil, false
}

// all 返回第一个有匹配结果的候选选择器的所有元素
func (e *Executor) all(ctx context.Context, page types.Page, selectors []string) []types.Element {
	for _, selector := range selectors {
		elements, err := page.QueryAll(ctx, selector)
		if err == nil && len(elements) > 0 {
			return elements
		}
	}
	return nil
}

func appendUnique(items []string, v string) []string {
	if v == "" || slices.Contains(items, v) {
		return items
	}
	return append(items, v)
}

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return feed.Absolute(href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func originAndPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
