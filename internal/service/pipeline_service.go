package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/peptidepress/internal/db"
)

// RunRequest 描述一次管线触发。Force 为 true 时跳过到期检查，
// 即使没有计划记录也会执行。
type RunRequest struct {
	Force bool
}

// RunResult 汇报一次触发的结果。Generated 为 false 时 Reason
// 说明为何没有生成（未到期、计划未激活等），这不是错误。
type RunResult struct {
	Generated bool
	Reason    string
	Article   *db.Article
	Topic     TopicDecision
}

// PipelineService 串起一次完整的文章生成：
// 到期检查 → 选题 → 生成 → 目录修正 → 配图 → 落库 → 顺延计划。
//
// 落库之前的任何失败都不产生副作用；配图失败不中断管线；
// 只有文章成功落库后才顺延计划，失败的运行会在下个到期点原样重试。
// 并发触发没有互斥：两次运行同时通过到期检查、各插入一篇文章
// 是已知且可接受的低概率结果。
type PipelineService struct {
	schedules  ScheduleStore
	articles   *ArticleService
	categories *CategoryService
	peptides   *PeptideService
	topics     *TopicSelector
	generator  *ArticleGenerator
	images     *ImageService
	authorName string
	authorRole string
	now        func() time.Time
}

// NewPipelineService 构造 PipelineService。
func NewPipelineService(
	schedules ScheduleStore,
	articles *ArticleService,
	categories *CategoryService,
	peptides *PeptideService,
	topics *TopicSelector,
	generator *ArticleGenerator,
	images *ImageService,
	authorName, authorRole string,
) *PipelineService {
	return &PipelineService{
		schedules:  schedules,
		articles:   articles,
		categories: categories,
		peptides:   peptides,
		topics:     topics,
		generator:  generator,
		images:     images,
		authorName: authorName,
		authorRole: authorRole,
		now:        time.Now,
	}
}

// Run 执行一次生成。调用方负责触发面的鉴权（管理员角色或内部标记）。
func (p *PipelineService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := uuid.New().String()[:8]
	now := p.now().UTC()

	sched, err := p.schedules.Load()
	if err != nil {
		return nil, err
	}

	if !IsDue(sched, now, req.Force) {
		reason := "生成计划尚未到期"
		if sched == nil {
			reason = "未配置生成计划"
		} else if !sched.Active {
			reason = "生成计划未激活"
		}
		log.Printf("[pipeline %s] 跳过运行：%s", runID, reason)
		return &RunResult{Generated: false, Reason: reason}, nil
	}

	titles, err := p.articles.ListRecentTitles()
	if err != nil {
		return nil, err
	}
	categories, err := p.categories.List()
	if err != nil {
		return nil, err
	}
	peptides, err := p.peptides.List()
	if err != nil {
		return nil, err
	}

	targetLength := db.LengthStandard
	steering := ""
	if sched != nil {
		if sched.TargetLength != "" {
			targetLength = sched.TargetLength
		}
		if sched.AdditionalContext != nil {
			steering = *sched.AdditionalContext
		}
	}

	topic, err := p.topics.SelectTopic(ctx, titles, peptides, steering)
	if err != nil {
		return nil, err
	}
	log.Printf("[pipeline %s] 选题：%s（keyword=%s）", runID, topic.Title, topic.Keyword)

	draft, err := p.generator.Generate(ctx, topic, targetLength, steering, categories, peptides)
	if err != nil {
		return nil, err
	}

	draft.Content, draft.TableOfContents = Reconcile(draft.Content, draft.TableOfContents)

	images := p.images.GenerateImages(ctx, ImageRequest{
		Title:              draft.Title,
		Summary:            draft.Summary,
		Sections:           sectionSuggestions(draft.Content),
		RegenerateFeatured: true,
	})

	// 新分类插入失败（多为并发运行抢先建好）只记日志，不影响发布。
	if draft.IsNewCategory {
		if err := p.categories.Ensure(draft.Category, draft.CategoryLabel); err != nil {
			log.Printf("[pipeline %s] 插入新分类 %s 失败，忽略: %v", runID, draft.Category, err)
		}
	}

	article, err := p.articles.Create(ArticleInput{
		Draft:         draft,
		Images:        images,
		PublishedDate: now,
		AuthorName:    p.authorName,
		AuthorRole:    p.authorRole,
	})
	if err != nil {
		return nil, err
	}

	if sched != nil {
		lastRun, nextRun := Advance(sched, now)
		if err := p.schedules.SaveRun(sched.ID, lastRun, nextRun); err != nil {
			// 文章已经发出去了，这里失败只会让下个到期点多跑一次。
			log.Printf("[pipeline %s] 写回计划时间戳失败: %v", runID, err)
		} else {
			log.Printf("[pipeline %s] 计划顺延至 %s", runID, nextRun.Format(time.RFC3339))
		}
	}

	log.Printf("[pipeline %s] 文章《%s》已发布（slug=%s）", runID, article.Title, article.Slug)
	return &RunResult{Generated: true, Article: article, Topic: topic}, nil
}

// sectionSuggestions 取正文前几个带 id 的 heading 作为配图小节。
func sectionSuggestions(content []ContentBlock) []SectionSuggestion {
	suggestions := make([]SectionSuggestion, 0, maxSectionImages)
	for _, block := range content {
		if block.Type != BlockHeading || block.ID == "" || block.Text == "" {
			continue
		}
		suggestions = append(suggestions, SectionSuggestion{ID: block.ID, Title: block.Text})
		if len(suggestions) == maxSectionImages {
			break
		}
	}
	return suggestions
}
