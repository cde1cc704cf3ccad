package genbatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resty.dev/v3"
)

const (
	batchesPath      = "/v1/messages/batches"
	apiVersion       = "2023-06-01"
	betaFeature      = "message-batches-2024-09-24"
	maxResultLineLen = 1 << 20
)

// Client talks to the external batched text-generation service. The service is
// treated as an unordered batch processor: submit once, poll, fetch JSONL.
type Client struct {
	client *resty.Client
	model  string
}

func NewClient(baseURL, apiKey, model string) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("anthropic-beta", betaFeature)

	return &Client{client: client, model: model}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) r(ctx context.Context) *resty.Request {
	return c.client.R().WithContext(ctx)
}

// Submit sends every request as one network call and returns the created job.
func (c *Client) Submit(ctx context.Context, reqs []Request) (Job, error) {
	if len(reqs) == 0 {
		return Job{}, fmt.Errorf("genbatch: empty request set")
	}

	payload := submitPayload{Requests: make([]batchRequest, 0, len(reqs))}
	for _, req := range reqs {
		payload.Requests = append(payload.Requests, batchRequest{
			CustomID: req.CorrelationID,
			Params: requestParams{
				Model:     c.model,
				MaxTokens: req.MaxTokens,
				Messages:  []message{{Role: "user", Content: req.Prompt}},
			},
		})
	}

	res, err := c.r(ctx).
		SetBody(payload).
		SetResult(&Job{}).
		Post(batchesPath)
	if err != nil {
		return Job{}, fmt.Errorf("genbatch: submit batch: %w", err)
	}
	if res.IsError() {
		return Job{}, fmt.Errorf("genbatch: submit batch status %s: %s", res.Status(), res.String())
	}

	job := *res.Result().(*Job)
	if job.ID == "" {
		return Job{}, fmt.Errorf("genbatch: submit response missing job id")
	}

	return job, nil
}

// Status fetches the lifecycle status of a previously submitted job.
func (c *Client) Status(ctx context.Context, jobID string) (Job, error) {
	res, err := c.r(ctx).
		SetResult(&Job{}).
		Get(batchesPath + "/" + jobID)
	if err != nil {
		return Job{}, fmt.Errorf("genbatch: job status: %w", err)
	}
	if res.IsError() {
		return Job{}, fmt.Errorf("genbatch: job status %s", res.Status())
	}

	return *res.Result().(*Job), nil
}

// Results fetches the newline-delimited result set of an ended job. Lines that
// cannot be decoded are returned with OutcomeInvalid instead of failing the
// whole fetch.
func (c *Client) Results(ctx context.Context, jobID string) ([]ResultLine, error) {
	res, err := c.r(ctx).
		Get(batchesPath + "/" + jobID + "/results")
	if err != nil {
		return nil, fmt.Errorf("genbatch: fetch results: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("genbatch: fetch results status %s", res.Status())
	}

	return decodeResults(res.String()), nil
}

func decodeResults(body string) []ResultLine {
	var lines []ResultLine

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxResultLineLen)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var env resultEnvelope
		if err := json.Unmarshal([]byte(raw), &env); err != nil || env.CustomID == "" {
			lines = append(lines, ResultLine{Outcome: OutcomeInvalid})
			continue
		}

		line := ResultLine{CorrelationID: env.CustomID}
		switch env.Result.Type {
		case OutcomeSucceeded:
			line.Outcome = OutcomeSucceeded
			if env.Result.Message != nil && len(env.Result.Message.Content) > 0 {
				line.Text = env.Result.Message.Content[0].Text
			}
		case OutcomeErrored, OutcomeExpired:
			line.Outcome = env.Result.Type
		default:
			line.Outcome = OutcomeInvalid
		}
		lines = append(lines, line)
	}

	return lines
}
