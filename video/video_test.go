package video

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(
		Video{ID: "1", Title: "Go Concurrency Patterns", ChannelTitle: "GopherCon"},
		Video{ID: "2", Title: "Debounce explained", ChannelTitle: "Frontend Weekly", Description: "timers and go"},
		Video{ID: "3", Title: "Cooking pasta", ChannelTitle: "Kitchen"},
	)
}

func TestSearch(t *testing.T) {
	c := testCatalog()

	r := c.Search("GO")
	assert.Equal(t, "GO", r.Query)
	assert.Equal(t, 2, r.Total)
	require.Len(t, r.Items, 2)
	assert.Equal(t, "1", r.Items[0].ID)
	assert.Equal(t, "2", r.Items[1].ID)

	r = c.Search("kitchen")
	require.Len(t, r.Items, 1)
	assert.Equal(t, "3", r.Items[0].ID)

	r = c.Search("nothing here")
	assert.Equal(t, 0, r.Total)
	assert.NotNil(t, r.Items)
}

func TestSearchEmptyQueryMatchesAll(t *testing.T) {
	c := testCatalog()
	assert.Equal(t, c.Len(), c.Search("  ").Total)
}

func TestVideoJSONFieldNames(t *testing.T) {
	v := Video{
		ID:           "abc",
		ThumbnailURL: "https://example.com/t.jpg",
		ChannelTitle: "chan",
		PublishedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		ViewCount:    42,
	}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "https://example.com/t.jpg", m["thumbnailUrl"])
	assert.Equal(t, "chan", m["channelTitle"])
	assert.Equal(t, "2024-01-02T03:04:05Z", m["publishedAt"])
	assert.EqualValues(t, 42, m["viewCount"])
}
