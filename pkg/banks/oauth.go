package banks

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/flaboy/aira-payments/pkg/cache"
	"github.com/spf13/cast"
)

// OAuthSession 银行 OAuth 凭证会话。生命周期限定在单次对账调用内，
// 首次请求时懒加载 token，不在渠道实例之间共享。
// 配置了 redis 时会缓存 token，行为不变，只省掉取 token 的往返。
type OAuthSession struct {
	HTTP      *HTTPClient
	TokenURL  string
	ClientID  string
	SecretKey string
	Scope     string

	token string
}

// Token 懒取 token，会话内复用
func (s *OAuthSession) Token(ctx context.Context) (string, error) {
	if s.token != "" {
		return s.token, nil
	}

	cacheKey := "aira-payments:token:" + s.TokenURL + ":" + s.ClientID
	if rdb := cache.Client(); rdb != nil {
		if cached, err := rdb.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			s.token = cached
			return s.token, nil
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if s.Scope != "" {
		form.Set("scope", s.Scope)
	}
	resp, err := s.HTTP.Do(ctx, &Request{
		Method: "POST",
		URL:    s.TokenURL,
		Form:   form,
		Headers: map[string]string{
			"Authorization": BasicAuth(s.ClientID, s.SecretKey),
		},
	})
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}
	data, err := resp.JSON()
	if err != nil {
		return "", err
	}
	token := data.GetString("access_token")
	if token == "" {
		return "", fmt.Errorf("token endpoint returned no access_token")
	}
	s.token = token

	if rdb := cache.Client(); rdb != nil {
		expiresIn := cast.ToInt64(data["expires_in"])
		if expiresIn > 60 {
			// 提前一分钟过期，避免用到边界上的 token
			ttl := time.Duration(expiresIn-60) * time.Second
			if err := rdb.Set(ctx, cacheKey, token, ttl).Err(); err != nil {
				slog.Warn("token cache write failed", "err", err)
			}
		}
	}
	return s.token, nil
}
