package sentiment

import "strings"

// Classifier 基于关键词的二分类器
// 文本命中任一 A 方关键词即判定为预测 A 方，否则默认 B 方
type Classifier struct {
	keywords []string
}

// New 创建分类器，关键词统一转为小写，空白关键词被忽略
func New(keywords []string) *Classifier {
	c := &Classifier{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			c.keywords = append(c.keywords, k)
		}
	}
	return c
}

// Classify 判断文本是否预测 A 方
func (c *Classifier) Classify(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Keywords 返回归一化后的关键词
func (c *Classifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}
