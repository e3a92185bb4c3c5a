package evidence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

// DefaultFactCheckAPI is the Google Fact Check Tools claim search endpoint
const DefaultFactCheckAPI = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

type factCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			URL           string `json:"url"`
			TextualRating string `json:"textualRating"`
			Publisher     struct {
				Name string `json:"name"`
				Site string `json:"site"`
			} `json:"publisher"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// FactChecker looks claims up in an external fact-check registry
type FactChecker struct {
	client *Client
	apiURL string
	apiKey string
}

// NewFactChecker creates a registry lookup. Without an API key every lookup
// reports not found.
func NewFactChecker(client *Client, apiURL, apiKey string) *FactChecker {
	if apiURL == "" {
		apiURL = DefaultFactCheckAPI
	}
	return &FactChecker{
		client: client,
		apiURL: apiURL,
		apiKey: apiKey,
	}
}

// Name identifies the source in logs and metrics
func (f *FactChecker) Name() string {
	return "fact_check"
}

// Enabled reports whether an API key is configured
func (f *FactChecker) Enabled() bool {
	return f.apiKey != ""
}

// Check returns the first published review matching the claim
func (f *FactChecker) Check(ctx context.Context, claim string) (*model.FactCheckResult, error) {
	if strings.TrimSpace(claim) == "" || !f.Enabled() {
		return &model.FactCheckResult{Found: false}, nil
	}

	params := url.Values{}
	params.Set("query", claim)
	params.Set("key", f.apiKey)

	var resp factCheckResponse
	if err := f.client.GetJSON(ctx, f.apiURL+"?"+params.Encode(), &resp); err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			// Registry rejected the query; treat as no review
			return &model.FactCheckResult{Found: false}, nil
		}
		return nil, fmt.Errorf("fact check lookup: %w", err)
	}

	if len(resp.Claims) == 0 {
		return &model.FactCheckResult{Found: false}, nil
	}

	first := resp.Claims[0]
	result := &model.FactCheckResult{
		Found:       true,
		Rating:      "Unknown",
		ClaimReview: first.Text,
	}
	if len(first.ClaimReview) > 0 {
		review := first.ClaimReview[0]
		if review.TextualRating != "" {
			result.Rating = review.TextualRating
		}
		result.URL = review.URL
		result.Publisher = review.Publisher.Name
	}

	return result, nil
}
