package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// GoogleProvider Google Cloud Natural Language + Vision服务提供商
type GoogleProvider struct {
	apiKey      string
	languageURL string
	visionURL   string
	httpClient  *http.Client
}

// NewGoogleProvider 创建Google Cloud服务提供商实例
func NewGoogleProvider(config ProviderConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required")
	}

	return &GoogleProvider{
		apiKey:      config.APIKey,
		languageURL: "https://language.googleapis.com/v1/documents",
		visionURL:   "https://vision.googleapis.com/v1/images:annotate",
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Name 获取提供商名称
func (p *GoogleProvider) Name() string {
	return "google"
}

// AnalyzeText 实现文本分析，依次调用情感分析和文本分类
func (p *GoogleProvider) AnalyzeText(ctx context.Context, text string) (*TextAnalysis, error) {
	sentiment, err := p.analyzeSentiment(ctx, text)
	if err != nil {
		return nil, err
	}

	categories, err := p.classifyText(ctx, text)
	if err != nil {
		return nil, err
	}

	return &TextAnalysis{
		Categories: categories,
		Sentiment:  *sentiment,
	}, nil
}

// analyzeSentiment 调用情感分析接口
func (p *GoogleProvider) analyzeSentiment(ctx context.Context, text string) (*Sentiment, error) {
	var result struct {
		DocumentSentiment struct {
			Score     float64 `json:"score"`
			Magnitude float64 `json:"magnitude"`
		} `json:"documentSentiment"`
	}

	if err := p.post(ctx, p.languageURL+":analyzeSentiment", plainTextDocument(text), &result); err != nil {
		return nil, fmt.Errorf("sentiment analysis failed: %v", err)
	}

	return &Sentiment{
		Score:     result.DocumentSentiment.Score,
		Magnitude: result.DocumentSentiment.Magnitude,
	}, nil
}

// classifyText 调用文本分类接口
func (p *GoogleProvider) classifyText(ctx context.Context, text string) ([]Category, error) {
	var result struct {
		Categories []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"categories"`
	}

	if err := p.post(ctx, p.languageURL+":classifyText", plainTextDocument(text), &result); err != nil {
		return nil, fmt.Errorf("text classification failed: %v", err)
	}

	categories := make([]Category, 0, len(result.Categories))
	for _, c := range result.Categories {
		categories = append(categories, Category{Name: c.Name, Confidence: c.Confidence})
	}
	return categories, nil
}

// AnalyzeImage 实现图片分析
// 先用HEAD请求校验图片可达，获取失败与分析失败分开上报
func (p *GoogleProvider) AnalyzeImage(ctx context.Context, imageURL string) (*SafeSearchResult, error) {
	if err := p.checkImageAccessible(ctx, imageURL); err != nil {
		return nil, &AccessError{URL: imageURL, Err: err}
	}

	reqBody := map[string]interface{}{
		"requests": []map[string]interface{}{
			{
				"image": map[string]interface{}{
					"source": map[string]string{"imageUri": imageURL},
				},
				"features": []map[string]string{
					{"type": "SAFE_SEARCH_DETECTION"},
				},
			},
		},
	}

	var result struct {
		Responses []struct {
			SafeSearchAnnotation *struct {
				Adult    string `json:"adult"`
				Violence string `json:"violence"`
				Racy     string `json:"racy"`
				Medical  string `json:"medical"`
				Spoof    string `json:"spoof"`
			} `json:"safeSearchAnnotation"`
		} `json:"responses"`
	}

	if err := p.post(ctx, p.visionURL, reqBody, &result); err != nil {
		return nil, fmt.Errorf("safe search detection failed: %v", err)
	}

	if len(result.Responses) == 0 || result.Responses[0].SafeSearchAnnotation == nil {
		return nil, fmt.Errorf("vision API returned invalid or empty result")
	}

	ann := result.Responses[0].SafeSearchAnnotation
	return &SafeSearchResult{
		Adult:    Likelihood(ann.Adult),
		Violence: Likelihood(ann.Violence),
		Racy:     Likelihood(ann.Racy),
		Medical:  Likelihood(ann.Medical),
		Spoof:    Likelihood(ann.Spoof),
	}, nil
}

// checkImageAccessible 校验图片URL可达性
func (p *GoogleProvider) checkImageAccessible(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return fmt.Errorf("invalid image URL: %v", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("image URL not accessible: %d %s", resp.StatusCode, resp.Status)
	}
	return nil
}

// post 发送JSON请求并解析响应
func (p *GoogleProvider) post(ctx context.Context, url string, body interface{}, out interface{}) error {
	reqData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"?key="+p.apiKey, strings.NewReader(string(reqData)))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

// plainTextDocument 构造Natural Language API的文档请求体
func plainTextDocument(text string) map[string]interface{} {
	return map[string]interface{}{
		"document": map[string]string{
			"type":    "PLAIN_TEXT",
			"content": text,
		},
	}
}
