package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/flashlearn/flashlearn-backend/internal/logger"
)

const (
	webSearchMaxResults = 5
	braveSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"
	duckDuckGoEndpoint  = "https://html.duckduckgo.com/html/"
)

// SearchResult is one hit from an external search engine.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchService answers queries the student's materials cannot. Brave
// Search is used when a key is configured; DuckDuckGo's HTML endpoint is the
// keyless fallback.
type WebSearchService interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

type webSearchService struct {
	log      *logger.Logger
	http     *http.Client
	braveKey string
}

func NewWebSearchService(log *logger.Logger) WebSearchService {
	return &webSearchService{
		log:      log.With("service", "WebSearchService"),
		http:     &http.Client{Timeout: 30 * time.Second},
		braveKey: strings.TrimSpace(os.Getenv("BRAVE_SEARCH_API_KEY")),
	}
}

func (s *webSearchService) Search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query required")
	}

	if s.braveKey != "" {
		results, err := s.searchBrave(ctx, query)
		if err == nil {
			return results, nil
		}
		s.log.Warn("Brave search failed, falling back to DuckDuckGo",
			"error", err.Error(),
		)
	}

	return s.searchDuckDuckGo(ctx, query)
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (s *webSearchService) searchBrave(ctx context.Context, query string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s?q=%s&count=%d", braveSearchEndpoint, url.QueryEscape(query), webSearchMaxResults)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.braveKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d: %s", resp.StatusCode, string(raw))
	}

	var out braveResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("brave decode: %w", err)
	}

	results := make([]SearchResult, 0, len(out.Web.Results))
	for _, r := range out.Web.Results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Description,
		})
		if len(results) == webSearchMaxResults {
			break
		}
	}
	return results, nil
}

func (s *webSearchService) searchDuckDuckGo(ctx context.Context, query string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s?q=%s", duckDuckGoEndpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo read: %w", err)
	}

	return parseDuckDuckGoResults(string(body), webSearchMaxResults)
}

// parseDuckDuckGoResults extracts results from the html.duckduckgo.com page;
// results live in divs whose class holds both "result" and "results_links".
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []SearchResult

	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "result") && strings.Contains(attr.Val, "results_links") {
					result := extractSearchResult(n)
					if result.URL != "" && result.Title != "" {
						results = append(results, result)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findResults(c)
		}
	}

	findResults(doc)
	return results, nil
}

func extractSearchResult(n *html.Node) SearchResult {
	var result SearchResult

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key == "class" {
					if strings.Contains(attr.Val, "result__a") {
						result.URL = nodeAttr(n, "href")
						result.Title = nodeText(n)
					} else if strings.Contains(attr.Val, "result__snippet") {
						result.Snippet = nodeText(n)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)

	// unwrap DuckDuckGo redirect links
	if strings.HasPrefix(result.URL, "//duckduckgo.com/l/?uddg=") {
		if decoded, err := url.QueryUnescape(strings.TrimPrefix(result.URL, "//duckduckgo.com/l/?uddg=")); err == nil {
			if idx := strings.Index(decoded, "&"); idx > 0 {
				decoded = decoded[:idx]
			}
			result.URL = decoded
		}
	}
	return result
}

func nodeAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
