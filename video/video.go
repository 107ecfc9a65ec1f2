// Package video holds the video metadata served by the example application.
package video

import (
	"strings"
	"time"
)

type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
	Duration     string    `json:"duration"` // ISO 8601, e.g. PT4M13S
	ViewCount    int64     `json:"viewCount"`
}

type SearchResult struct {
	Query string  `json:"query"`
	Items []Video `json:"items"`
	Total int     `json:"total"`
}

// Catalog is an in-memory, ordered list of videos.
type Catalog struct {
	videos []Video
}

func NewCatalog(videos ...Video) *Catalog {
	return &Catalog{videos: videos}
}

// Search matches query case-insensitively against title, channel and
// description, keeping catalog order. An empty query matches everything.
func (c *Catalog) Search(query string) SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	items := make([]Video, 0)
	for _, v := range c.videos {
		if q == "" || matches(v, q) {
			items = append(items, v)
		}
	}
	return SearchResult{
		Query: query,
		Items: items,
		Total: len(items),
	}
}

func (c *Catalog) Len() int {
	return len(c.videos)
}

func matches(v Video, q string) bool {
	return strings.Contains(strings.ToLower(v.Title), q) ||
		strings.Contains(strings.ToLower(v.ChannelTitle), q) ||
		strings.Contains(strings.ToLower(v.Description), q)
}
