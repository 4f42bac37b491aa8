package parser

// Vocabulary 技能词表与章节标题词表，进程启动时构建一次，之后只读。
// 以依赖注入的方式传给各提取器，便于在测试中替换为小词表。
type Vocabulary struct {
	Skills         []string
	SectionHeaders []string
}

// DefaultVocabulary 返回内置的默认词表
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		Skills:         defaultTechSkills,
		SectionHeaders: defaultSectionHeaders,
	}
}

// 技能词表（可按需扩充）
var defaultTechSkills = []string{
	// 编程语言
	"python", "javascript", "typescript", "java", "c++", "c#", "go", "rust",
	"kotlin", "swift", "ruby", "php", "scala", "r", "dart", "elixir",
	// 前端
	"react", "next.js", "vue", "angular", "svelte", "html", "css", "tailwind",
	"bootstrap", "sass", "webpack", "vite", "redux", "zustand",
	// 后端
	"node.js", "fastapi", "django", "flask", "express", "spring boot",
	"nestjs", "graphql", "rest api", "grpc",
	// 数据库
	"mongodb", "postgresql", "mysql", "sqlite", "redis", "elasticsearch",
	"cassandra", "dynamodb", "firebase",
	// 云与DevOps
	"aws", "azure", "gcp", "docker", "kubernetes", "github actions",
	"terraform", "ansible", "jenkins", "nginx", "linux",
	// 机器学习/AI
	"tensorflow", "pytorch", "scikit-learn", "hugging face", "langchain",
	"openai", "machine learning", "deep learning", "nlp", "computer vision",
	// 工具
	"git", "jira", "figma", "postman", "pytest", "jest", "cypress",
}

// 简历章节标题关键词，按行首匹配
var defaultSectionHeaders = []string{
	"education", "experience", "work experience", "projects",
	"skills", "certifications", "achievements", "summary",
	"objective", "publications",
}
