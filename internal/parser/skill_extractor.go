package parser

import (
	"regexp"
)

// compiledSkill 预编译后的技能匹配模式
type compiledSkill struct {
	name    string
	pattern *regexp.Regexp
}

// SkillExtractor 基于词表做技能匹配，模式在构造时一次性编译
type SkillExtractor struct {
	skills []compiledSkill
}

// NewSkillExtractor 按词表顺序编译所有技能模式。
// 边界锚点按技能自身首尾字符决定：字母数字侧加\b，符号侧
// （如c++、c#、node.js的结尾）不加，\b在非词字符旁不成立。
func NewSkillExtractor(vocab *Vocabulary) *SkillExtractor {
	e := &SkillExtractor{skills: make([]compiledSkill, 0, len(vocab.Skills))}
	for _, skill := range vocab.Skills {
		e.skills = append(e.skills, compiledSkill{
			name:    skill,
			pattern: regexp.MustCompile(skillPattern(skill)),
		})
	}
	return e
}

func skillPattern(skill string) string {
	pattern := "(?i)"
	if isWordChar(skill[0]) {
		pattern += `\b`
	}
	pattern += regexp.QuoteMeta(skill)
	if isWordChar(skill[len(skill)-1]) {
		pattern += `\b`
	}
	return pattern
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// ExtractSkills 返回文本中命中的技能，顺序与词表一致，
// 每个技能至多出现一次。空文本返回空切片而非nil。
func (e *SkillExtractor) ExtractSkills(text string) []string {
	found := make([]string, 0)
	for _, s := range e.skills {
		if s.pattern.MatchString(text) {
			found = append(found, s.name)
		}
	}
	return found
}
