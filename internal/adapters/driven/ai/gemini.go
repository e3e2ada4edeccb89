package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiClient is the transport shared by the Gemini embedding and
// generation adapters. Endpoints live under models/<model>:<method>.
type geminiClient struct {
	*restClient
}

func newGeminiClient(apiKey, baseURL string) *geminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	rc := newRESTClient("gemini", baseURL, 90*time.Second)
	rc.authorize = func(req *http.Request) {
		req.Header.Set("x-goog-api-key", apiKey)
	}
	rc.errorMessage = func(body []byte) string {
		var apiErr struct {
			Error *struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) != nil || apiErr.Error == nil {
			return ""
		}
		return apiErr.Error.Status + ": " + apiErr.Error.Message
	}
	return &geminiClient{restClient: rc}
}

func (c *geminiClient) call(ctx context.Context, model, method string, body, out any) error {
	return c.post(ctx, "/models/"+model+":"+method, body, out)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}
