package banks

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/valyala/fasthttp"
)

// HTTPClient 出站银行调用的统一封装，超时有界，
// 单个银行变慢不会拖住其它交易的对账。
type HTTPClient struct {
	client *fasthttp.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		client: &fasthttp.Client{
			WriteTimeout: config.ConnectTimeout,
			ReadTimeout:  config.ReadTimeout,
		},
	}
}

// NewMutualTLSClient 双向TLS客户端（UFC 要求商户证书）
func NewMutualTLSClient(certFile, keyFile string) (*HTTPClient, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	return &HTTPClient{
		client: &fasthttp.Client{
			WriteTimeout: config.ConnectTimeout,
			ReadTimeout:  config.ReadTimeout,
			TLSConfig: &tls.Config{
				Certificates:       []tls.Certificate{cert},
				InsecureSkipVerify: true, // UFC 网关证书链不完整
			},
		},
	}, nil
}

type Request struct {
	Method  string
	URL     string
	Body    []byte
	Form    url.Values // 非空时以 urlencoded 发送，覆盖 Body
	Headers map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// JSON 把响应体解析为银行报文
func (r *Response) JSON() (Payload, error) {
	p := Payload{}
	if len(r.Body) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(r.Body, &p); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return p, nil
}

func (r *Response) Header(key string) string {
	return r.Headers[key]
}

// Do 发送请求。deadline 优先取 ctx 的，否则用配置的读超时。
func (c *HTTPClient) Do(ctx context.Context, r *Request) (*Response, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.URL)
	req.Header.SetMethod(r.Method)
	if r.Form != nil {
		req.Header.SetContentType("application/x-www-form-urlencoded")
		req.SetBodyString(r.Form.Encode())
	} else if r.Body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(r.Body)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	deadline := time.Now().Add(config.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       append([]byte(nil), resp.Body()...),
		Headers:    map[string]string{},
	}
	resp.Header.VisitAll(func(key, value []byte) {
		out.Headers[string(key)] = string(value)
	})
	return out, nil
}

// BasicAuth Authorization 头的值
func BasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func BearerAuth(token string) string {
	return "Bearer " + token
}
