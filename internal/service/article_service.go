package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/peptidepress/internal/db"
	"gorm.io/gorm"
)

// ErrArticleSlugTaken 表示同 slug 的文章已存在。
var ErrArticleSlugTaken = errors.New("article slug already exists")

// recentTitleLimit 限定提供给选题提示词的历史标题数量。
const recentTitleLimit = 50

// ArticleService wraps article related database operations.
type ArticleService struct {
	db *gorm.DB
}

// ArticleInput 汇总持久化一篇生成文章所需的全部内容。
type ArticleInput struct {
	Draft         *ArticleDraft
	Images        GeneratedImages
	PublishedDate time.Time
	AuthorName    string
	AuthorRole    string
}

// NewArticleService creates an ArticleService instance.
func NewArticleService(gdb *gorm.DB) *ArticleService {
	return &ArticleService{db: gdb}
}

// Create 将文章草稿与配图写入数据库，同时固化一份渲染后的 HTML 快照。
func (s *ArticleService) Create(input ArticleInput) (*db.Article, error) {
	draft := input.Draft

	contentJSON, err := json.Marshal(draft.Content)
	if err != nil {
		return nil, fmt.Errorf("序列化内容块失败: %w", err)
	}
	tocJSON, err := json.Marshal(draft.TableOfContents)
	if err != nil {
		return nil, fmt.Errorf("序列化目录失败: %w", err)
	}
	imagesJSON, err := json.Marshal(input.Images.ContentImages)
	if err != nil {
		return nil, fmt.Errorf("序列化配图失败: %w", err)
	}
	relatedJSON, err := json.Marshal(draft.RelatedPeptides)
	if err != nil {
		return nil, fmt.Errorf("序列化关联肽失败: %w", err)
	}
	matchedJSON, err := json.Marshal(draft.MatchedPeptideSlugs)
	if err != nil {
		return nil, fmt.Errorf("序列化匹配 slug 失败: %w", err)
	}

	article := db.Article{
		Title:             draft.Title,
		Slug:              draft.Slug,
		Summary:           draft.Summary,
		Category:          draft.Category,
		CategoryLabel:     draft.CategoryLabel,
		ReadTime:          draft.ReadTime,
		ContentJSON:       string(contentJSON),
		TocJSON:           string(tocJSON),
		ContentImagesJSON: string(imagesJSON),
		RelatedJSON:       string(relatedJSON),
		MatchedSlugsJSON:  string(matchedJSON),
		RenderedHTML:      renderContentHTML(draft.Content),
		FeaturedImageURL:  input.Images.FeaturedImageURL,
		PublishedDate:     input.PublishedDate,
		AuthorName:        input.AuthorName,
		AuthorRole:        input.AuthorRole,
	}

	if err := s.db.Create(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrArticleSlugTaken
		}
		return nil, err
	}
	return &article, nil
}

// ListRecentTitles 返回最近发布的文章标题，最多 recentTitleLimit 条。
func (s *ArticleService) ListRecentTitles() ([]string, error) {
	var titles []string
	if err := s.db.Model(&db.Article{}).
		Order("published_date desc").
		Limit(recentTitleLimit).
		Pluck("title", &titles).Error; err != nil {
		return nil, err
	}
	return titles, nil
}
