package service

import (
	"log"
	"strings"
	"unicode/utf8"
)

const maxModelLogSnippetRunes = 800

// logModelExchange 输出一次模型调用的提示词或响应摘要，方便排查模型行为。
// stage 取 TOPIC/ARTICLE/IMAGE 之一，phase 为 prompt 或 response。
func logModelExchange(stage, phase, content string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		log.Printf("[generate %s] %s: <empty>", stage, phase)
		return
	}

	if utf8.RuneCountInString(trimmed) > maxModelLogSnippetRunes {
		trimmed = string([]rune(trimmed)[:maxModelLogSnippetRunes]) + "…(truncated)"
	}
	log.Printf("[generate %s] %s: %s", stage, phase, trimmed)
}
