package client

import (
	"context"
	"net/http"
)

// GetConfig fetches the bot configuration. Fields the server omits keep
// their default values.
func (c *Client) GetConfig(ctx context.Context) (*BotConfig, error) {
	cfg := DefaultBotConfig()

	err := c.do(ctx, request{
		op:     "get config",
		method: http.MethodGet,
		path:   "/api/config",
		out:    &cfg,
	})
	if err != nil {
		return nil, err
	}

	cfg.MembitUseTrending = true

	return &cfg, nil
}

// SaveConfig writes schedule, limits, image and source settings.
func (c *Client) SaveConfig(ctx context.Context, update ConfigUpdate) error {
	return c.act(ctx, request{
		op:     "save config",
		method: http.MethodPost,
		path:   "/api/config",
		body:   update,
	}, "Failed to save configuration")
}

// SavePrompt writes the prompt template.
func (c *Client) SavePrompt(ctx context.Context, template string) error {
	return c.act(ctx, request{
		op:     "save prompt",
		method: http.MethodPost,
		path:   "/api/prompt",
		body:   map[string]string{"prompt_template": template},
	}, "Failed to save prompt template")
}

// GetKeys fetches the API keys. Unset keys may come back as UnsetKey.
func (c *Client) GetKeys(ctx context.Context) (*Credentials, error) {
	var creds Credentials

	err := c.do(ctx, request{
		op:     "get keys",
		method: http.MethodGet,
		path:   "/api/keys",
		out:    &creds,
	})
	if err != nil {
		return nil, err
	}

	return &creds, nil
}

// SaveKeys writes the API keys. The server ignores empty values, so unset
// keys are sent as "" rather than the placeholder.
func (c *Client) SaveKeys(ctx context.Context, creds Credentials) error {
	body := Credentials{}
	for _, f := range creds.Fields() {
		if IsUnset(f.Value) {
			continue
		}

		switch f.Name {
		case "membit_key":
			body.MembitKey = f.Value
		case "gemini_key":
			body.GeminiKey = f.Value
		case "twitter_key":
			body.TwitterKey = f.Value
		case "twitter_secret":
			body.TwitterSecret = f.Value
		case "twitter_token":
			body.TwitterToken = f.Value
		case "twitter_access_secret":
			body.TwitterAccessSecret = f.Value
		}
	}

	return c.act(ctx, request{
		op:     "save keys",
		method: http.MethodPost,
		path:   "/api/keys",
		body:   body,
	}, "Failed to save API keys")
}
