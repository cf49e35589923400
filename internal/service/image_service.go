package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/peptidepress/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	featuredImageAttempts = 3
	sectionImageAttempts  = 2
	maxSectionImages      = 3
	imageRetryBaseDelay   = 2 * time.Second
	slugPrefixMaxRunes    = 40
)

var errImagePayloadMissing = errors.New("响应中缺少图片数据")

// SectionSuggestion 指定一个需要配图的小节。
type SectionSuggestion struct {
	ID    string
	Title string
}

// ImageRequest 描述一次运行需要生成的全部图片。
type ImageRequest struct {
	Title              string
	Summary            string
	Sections           []SectionSuggestion
	RegenerateFeatured bool
}

// ImageService 调用图像模型生成头图与小节配图，并上传到对象存储。
//
// 每张图各自带重试预算，预算耗尽或上传失败都只是让这张图缺席，
// 永远不会让整条管线失败——文章照常发布。
type ImageService struct {
	client    *AIClient
	model     string
	store     storage.Provider
	baseDelay time.Duration
	now       func() time.Time
}

// NewImageService 构造 ImageService。
func NewImageService(client *AIClient, model string, store storage.Provider) *ImageService {
	return &ImageService{
		client:    client,
		model:     model,
		store:     store,
		baseDelay: imageRetryBaseDelay,
		now:       time.Now,
	}
}

// GenerateImages 生成头图（最多 3 次尝试）与至多 3 张小节配图（各 2 次尝试）。
// 小节之间相互独立，并发执行只是优化，不影响最终结构。
func (s *ImageService) GenerateImages(ctx context.Context, req ImageRequest) GeneratedImages {
	runStamp := s.now().UTC().Format("20060102150405")
	prefix := slugPrefix(req.Title)

	var result GeneratedImages

	if req.RegenerateFeatured {
		name := fmt.Sprintf("%s-%s", prefix, runStamp)
		url, err := s.generateOne(ctx, buildFeaturedImagePrompt(req.Title, req.Summary), name, featuredImageAttempts)
		if err != nil {
			log.Printf("[generate IMAGE] 头图生成失败，文章将不带头图发布: %v", err)
		} else {
			result.FeaturedImageURL = url
		}
	}

	sections := req.Sections
	if len(sections) > maxSectionImages {
		sections = sections[:maxSectionImages]
	}

	images := make([]*ContentImage, len(sections))
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for i, section := range sections {
		i, section := i, section
		group.Go(func() error {
			name := fmt.Sprintf("%s-%s-%s", prefix, runStamp, section.ID)
			url, err := s.generateOne(groupCtx, buildSectionImagePrompt(req.Title, section.Title), name, sectionImageAttempts)
			if err != nil {
				log.Printf("[generate IMAGE] 小节 %s 配图生成失败，跳过: %v", section.ID, err)
				return nil
			}
			mu.Lock()
			images[i] = &ContentImage{
				SectionID: section.ID,
				ImageURL:  url,
				AltText:   section.Title,
			}
			mu.Unlock()
			return nil
		})
	}
	// 每个小节都把失败吞成缺席，这里不会返回错误。
	_ = group.Wait()

	for _, img := range images {
		if img != nil {
			result.ContentImages = append(result.ContentImages, *img)
		}
	}

	return result
}

// generateOne 在给定重试预算内生成并上传一张图。
// 解析失败与上游错误同样消耗重试名额；上传失败不重试。
func (s *ImageService) generateOne(ctx context.Context, prompt, name string, attempts int) (string, error) {
	data, err := withRetry(ctx, retryPolicy{MaxAttempts: attempts, BaseDelay: s.baseDelay}, func(attempt int) ([]byte, error) {
		logModelExchange("IMAGE", fmt.Sprintf("prompt (attempt %d)", attempt), prompt)
		return s.requestImage(ctx, prompt)
	})
	if err != nil {
		return "", err
	}

	ext := sniffImageExt(data)
	url, err := s.store.Save(name+"."+ext, data)
	if err != nil {
		return "", fmt.Errorf("上传图片失败: %w", err)
	}
	return url, nil
}

// requestImage 发起一次图像模型调用并解码 base64 数据 URL。
func (s *ImageService) requestImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := s.client.createChatCompletion(ctx, chatCompletionRequest{
		Model:      s.model,
		Messages:   []chatMessage{{Role: "user", Content: prompt}},
		Modalities: []string{"image", "text"},
	})
	if err != nil {
		return nil, err
	}

	message := resp.Choices[0].Message
	if len(message.Images) == 0 {
		return nil, errImagePayloadMissing
	}

	return decodeImageDataURL(message.Images[0].ImageURL.URL)
}

// decodeImageDataURL 解析 data:image/...;base64,... 形式的载荷。
func decodeImageDataURL(raw string) ([]byte, error) {
	const marker = ";base64,"
	idx := strings.Index(raw, marker)
	if !strings.HasPrefix(raw, "data:") || idx < 0 {
		return nil, fmt.Errorf("图片载荷不是 base64 数据 URL")
	}

	data, err := base64.StdEncoding.DecodeString(raw[idx+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("解码图片数据失败: %w", err)
	}
	if len(data) == 0 {
		return nil, errImagePayloadMissing
	}
	return data, nil
}

// sniffImageExt 按真实字节内容判断扩展名，不信任数据 URL 里的标注。
// webp 解码由 golang.org/x/image/webp 注册。
func sniffImageExt(data []byte) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return format
	}
	return "png"
}

func slugPrefix(title string) string {
	slug := Slugify(title)
	runes := []rune(slug)
	if len(runes) > slugPrefixMaxRunes {
		slug = strings.Trim(string(runes[:slugPrefixMaxRunes]), "-")
	}
	if slug == "" {
		slug = "article"
	}
	return slug
}

func buildFeaturedImagePrompt(title, summary string) string {
	var builder strings.Builder
	builder.WriteString("为一篇肽科普文章生成一张干净的头图，风格偏医学插画，不要出现文字。\n")
	builder.WriteString("文章标题：")
	builder.WriteString(title)
	if strings.TrimSpace(summary) != "" {
		builder.WriteString("\n文章摘要：")
		builder.WriteString(summary)
	}
	return builder.String()
}

func buildSectionImagePrompt(articleTitle, sectionTitle string) string {
	return fmt.Sprintf(
		"为文章《%s》中的小节「%s」生成一张简洁的示意插图，风格偏医学插画，不要出现文字。",
		articleTitle, sectionTitle,
	)
}
