package judge

import "strings"

// topicRule classifies a topic by trigger words and lists the vocabulary an
// on-topic argument is expected to use.
type topicRule struct {
	category  string
	triggers  []string
	relevance []string
}

var topicRules = []topicRule{
	{
		category:  "technology",
		triggers:  []string{"technology", "ai", "artificial", "software", "internet", "digital", "language models", "developer", "robot", "social media"},
		relevance: []string{"technology", "data", "software", "automation", "innovation", "digital", "privacy", "algorithm", "ai", "internet", "productivity", "tools"},
	},
	{
		category:  "economy",
		triggers:  []string{"income", "economy", "economic", "tax", "work", "jobs", "wage", "market", "policy", "four-day"},
		relevance: []string{"economy", "jobs", "income", "cost", "market", "growth", "tax", "wage", "inflation", "productivity", "employment", "budget"},
	},
	{
		category:  "environment",
		triggers:  []string{"climate", "environment", "energy", "cars", "carbon", "green", "pollution", "nuclear"},
		relevance: []string{"climate", "emissions", "carbon", "energy", "pollution", "sustainable", "environment", "renewable", "warming", "transport"},
	},
	{
		category:  "education",
		triggers:  []string{"school", "education", "homework", "students", "university", "college", "teachers"},
		relevance: []string{"students", "learning", "teachers", "school", "education", "skills", "curriculum", "exams", "grades"},
	},
	{
		category:  "health",
		triggers:  []string{"health", "medical", "diet", "sport", "healthcare", "vaccine", "sugar"},
		relevance: []string{"health", "patients", "doctors", "disease", "risk", "care", "wellbeing", "medical", "exercise"},
	},
}

var stopwords = map[string]bool{
	"should": true, "would": true, "could": true, "there": true, "their": true, "about": true,
	"which": true, "these": true, "those": true, "being": true, "from": true, "with": true,
	"that": true, "this": true, "than": true, "more": true, "into": true, "does": true,
}

// classifyTopic returns the matching category ("general" when none matches)
// and the relevance vocabulary for the topic, including the topic's own
// content words.
func classifyTopic(topic string) (string, map[string]bool) {
	lower := strings.ToLower(topic)
	padded := " " + strings.Join(tokenize(lower), " ") + " "
	vocab := make(map[string]bool)
	category := "general"
	for _, rule := range topicRules {
		matched := false
		for _, trig := range rule.triggers {
			if strings.Contains(padded, " "+trig+" ") {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if category == "general" {
			category = rule.category
		}
		for _, w := range rule.relevance {
			vocab[w] = true
		}
	}
	for _, w := range tokenize(lower) {
		if len(w) > 3 && !stopwords[w] {
			vocab[w] = true
		}
	}
	return category, vocab
}
