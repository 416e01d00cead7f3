package generator

import "strings"

// PostProcess 清理模型返回的故事：去掉首尾空白，以及模型回显的三引号或代码块包裹。
func PostProcess(raw string) (string, error) {
	story := strings.TrimSpace(raw)
	story = stripWrapper(story, `"""`, `"""`)
	if strings.HasPrefix(story, "```") && strings.HasSuffix(story, "```") && len(story) >= 6 {
		inner := strings.TrimSuffix(story, "```")
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
			story = strings.TrimSpace(inner[nl+1:])
		}
	}
	if story == "" {
		return "", ErrEmptyStory
	}
	return story, nil
}

func stripWrapper(s, prefix, suffix string) string {
	if len(s) >= len(prefix)+len(suffix) && strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) {
		return strings.TrimSpace(s[len(prefix) : len(s)-len(suffix)])
	}
	return s
}
