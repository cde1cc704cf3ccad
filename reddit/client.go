package reddit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"resty.dev/v3"
)

const userAgent = "TradeFeed/1.0 (community platform for contractors)"

// Item is one entry of a subreddit hot listing.
type Item struct {
	Title       string
	Subreddit   string
	Score       int
	NumComments int
}

// https://www.reddit.com/dev/api/#GET_hot
type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string `json:"title"`
				Subreddit   string `json:"subreddit"`
				Score       int    `json:"score"`
				NumComments int    `json:"num_comments"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Client reads public subreddit listings. No authentication is needed for
// read-only access.
type Client struct {
	client *resty.Client
}

func NewClient(baseURL string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent)

	return &Client{client: client}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// HotItems fetches up to limit entries from the combined hot listing of the
// given channels in a single call.
func (c *Client) HotItems(ctx context.Context, channels []string, limit int) ([]Item, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("reddit: no channels given")
	}

	path := fmt.Sprintf("/r/%s/hot.json", strings.Join(channels, "+"))

	res, err := c.r(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetQueryParam("t", "day").
		SetResult(&listing{}).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("reddit: fetch hot listing: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("reddit: hot listing status %s", res.Status())
	}

	children := res.Result().(*listing).Data.Children
	items := make([]Item, 0, len(children))
	for _, child := range children {
		items = append(items, Item{
			Title:       child.Data.Title,
			Subreddit:   child.Data.Subreddit,
			Score:       child.Data.Score,
			NumComments: child.Data.NumComments,
		})
	}

	return items, nil
}
