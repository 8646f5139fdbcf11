package profile

// Profile captures the assistant attributes exposed to the frontend.
type Profile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	PromptHint  string   `json:"promptHint,omitempty"`
	SeedOutputs []string `json:"seedOutputs"`           // 会话创建时写入的初始消息
	CannedLines []string `json:"cannedLines,omitempty"` // 定时追加的预设消息
}

// Seed provides the default campus assistant.
func Seed() []Profile {
	return []Profile{
		{
			ID:         "campus-guide",
			Name:       "Campus Guide",
			Title:      "NYU information assistant",
			PromptHint: "Answer only from the supplied documents and cite the page you used.",
			SeedOutputs: []string{
				"Welcome to the campus assistant.",
				"Ask about courses, the core curriculum or the academic calendar.",
				"Type a question and press enter.",
			},
			CannedLines: []string{
				"Still here if you need anything.",
				"Tip: the class search can be filtered through URL query parameters.",
				"Tip: registration deadlines live in the academic calendar.",
			},
		},
		{
			ID:          "quiet",
			Name:        "Quiet Guide",
			Title:       "Campus assistant without idle messages",
			SeedOutputs: []string{"Ask me anything about campus."},
		},
	}
}
