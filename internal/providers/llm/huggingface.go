package llm

import "time"

const HFRouterBaseURL = "https://router.huggingface.co/v1"

// HFRouter serves "org/model:provider" ids through the Hugging Face router.
type HFRouter struct {
	*OpenAICompatible
}

func NewHFRouter(baseURL, token string, timeout time.Duration) *HFRouter {
	if baseURL == "" {
		baseURL = HFRouterBaseURL
	}
	temperature := 0.3
	return &HFRouter{
		OpenAICompatible: NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:     baseURL,
			APIKey:      token,
			AuthHeader:  "Authorization",
			AuthPrefix:  "Bearer ",
			Temperature: &temperature,
			Timeout:     timeout,
		}),
	}
}
