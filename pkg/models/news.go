package models

import "time"

// NewsArticle is one item of a news sentiment feed.
type NewsArticle struct {
	Title          string      `json:"title"`
	URL            string      `json:"url"`
	TimePublished  time.Time   `json:"time_published"`
	Summary        string      `json:"summary"`
	Source         string      `json:"source"`
	Topics         []NewsTopic `json:"topics"`
	SentimentScore float64     `json:"overall_sentiment_score"`
	SentimentLabel string      `json:"overall_sentiment_label"`
}

// NewsTopic is a topic tag with its relevance to the article (0..1).
type NewsTopic struct {
	Topic     string  `json:"topic"`
	Relevance float64 `json:"relevance_score"`
}

// TopicNames returns the article's topic names in feed order.
func (a NewsArticle) TopicNames() []string {
	names := make([]string, 0, len(a.Topics))
	for _, t := range a.Topics {
		names = append(names, t.Topic)
	}
	return names
}
