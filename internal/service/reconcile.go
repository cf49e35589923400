package service

import "strings"

// Reconcile 对生成的内容块与目录做一致性修正，纯函数、无副作用。
//
// 第一步：为缺少 id 的 heading 块借用目录中的 id——按去空格、
// 不区分大小写的标题匹配。第二步：丢弃原目录，按正文顺序重建，
// 只收录同时具备 id 和 text 的 heading 块。正文是唯一事实来源，
// 修正后目录与正文在结构上保证一致。
func Reconcile(content []ContentBlock, toc []TocEntry) ([]ContentBlock, []TocEntry) {
	patched := make([]ContentBlock, len(content))
	copy(patched, content)

	for i := range patched {
		block := &patched[i]
		if block.Type != BlockHeading || block.ID != "" {
			continue
		}
		if entry, ok := findTocEntryByTitle(toc, block.Text); ok {
			block.ID = entry.ID
		}
	}

	rebuilt := make([]TocEntry, 0, len(patched))
	for _, block := range patched {
		if block.Type != BlockHeading || block.ID == "" || strings.TrimSpace(block.Text) == "" {
			continue
		}
		level := block.Level
		if level == 0 {
			level = 2
		}
		rebuilt = append(rebuilt, TocEntry{ID: block.ID, Title: block.Text, Level: level})
	}

	return patched, rebuilt
}

func findTocEntryByTitle(toc []TocEntry, title string) (TocEntry, bool) {
	want := strings.ToLower(strings.TrimSpace(title))
	if want == "" {
		return TocEntry{}, false
	}
	for _, entry := range toc {
		if strings.ToLower(strings.TrimSpace(entry.Title)) == want {
			return entry, true
		}
	}
	return TocEntry{}, false
}
