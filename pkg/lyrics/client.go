package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Lyrics lookup errors
var (
	ErrEmptyQuery = errors.New("empty lyrics query")
	ErrNotFound   = errors.New("no lyrics found")
)

const (
	defaultAPIBase    = "https://api.lyrics.ovh/v1"
	defaultScrapeBase = "https://www.animelyrics.com"
	cacheTTL          = 30 * time.Minute
	requestTimeout    = 10 * time.Second

	// maxLyricsLength keeps results inside a single Discord message.
	maxLyricsLength = 2000
)

// Result is a successful lyrics lookup.
type Result struct {
	Title  string
	Artist string
	Lyrics string
	URL    string
	Source string
}

type cacheEntry struct {
	result    *Result
	notFound  bool
	expiresAt time.Time
}

// Client fetches lyrics from the lyrics.ovh API with a scrape fallback.
// Results are cached for a while since users tend to re-request the same
// track.
type Client struct {
	http       *http.Client
	logger     zerolog.Logger
	apiBase    string
	scrapeBase string

	mutex sync.Mutex
	cache map[string]cacheEntry
}

// NewClient creates a lyrics client with the default providers.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http:       &http.Client{Timeout: requestTimeout},
		logger:     logger.With().Str("component", "lyrics").Logger(),
		apiBase:    defaultAPIBase,
		scrapeBase: defaultScrapeBase,
		cache:      make(map[string]cacheEntry),
	}
}

// Search looks lyrics up by artist and title. Misses are cached as well so
// repeated lookups for obscure tracks stay cheap.
func (c *Client) Search(ctx context.Context, artist, title string) (*Result, error) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyQuery
	}

	key := strings.ToLower(artist + "|" + title)
	if result, notFound, ok := c.cached(key); ok {
		if notFound {
			return nil, ErrNotFound
		}
		return result, nil
	}

	result, err := c.fetchAPI(ctx, artist, title)
	if err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn().Err(err).Str("artist", artist).Str("title", title).Msg("lyrics api lookup failed")
	}
	if result == nil {
		result, err = c.scrape(ctx, artist+" "+title)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if result == nil {
		c.cache[key] = cacheEntry{notFound: true, expiresAt: time.Now().Add(cacheTTL)}
		return nil, ErrNotFound
	}
	c.cache[key] = cacheEntry{result: result, expiresAt: time.Now().Add(cacheTTL)}
	return result, nil
}

// ClearCache drops every cached lookup.
func (c *Client) ClearCache() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string]cacheEntry)
}

func (c *Client) cached(key string) (*Result, bool, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, false
	}
	return entry.result, entry.notFound, true
}

// fetchAPI queries the lyrics.ovh JSON endpoint.
func (c *Client) fetchAPI(ctx context.Context, artist, title string) (*Result, error) {
	if artist == "" {
		// The API needs both path segments.
		return nil, ErrNotFound
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.apiBase, url.PathEscape(artist), url.PathEscape(title))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lyrics request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lyrics api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lyrics api returned status %d", resp.StatusCode)
	}

	var payload struct {
		Lyrics string `json:"lyrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode lyrics response: %w", err)
	}

	lyrics := cleanLyrics(payload.Lyrics)
	if lyrics == "" {
		return nil, ErrNotFound
	}
	return &Result{
		Title:  title,
		Artist: artist,
		Lyrics: lyrics,
		URL:    endpoint,
		Source: "lyrics.ovh",
	}, nil
}

// scrape falls back to searching the lyrics site and pulling the first hit.
func (c *Client) scrape(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}

	searchURL := fmt.Sprintf("%s/search.php?search=%s", c.scrapeBase, url.QueryEscape(query))
	doc, err := c.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var pageURL string
	doc.Find("a[href*='anime/']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if href, ok := s.Attr("href"); ok {
			pageURL = href
			return false
		}
		return true
	})
	if pageURL == "" {
		return nil, ErrNotFound
	}
	if !strings.HasPrefix(pageURL, "http") {
		pageURL = c.scrapeBase + "/" + strings.TrimPrefix(pageURL, "/")
	}

	return c.scrapePage(ctx, pageURL)
}

func (c *Client) scrapePage(ctx context.Context, pageURL string) (*Result, error) {
	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("h1, h2, h3").First().Text())

	var lyrics string
	doc.Find("div.lyrics, div#lyrics, pre, .lyrics-content").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		lyrics = strings.TrimSpace(s.Text())
		return lyrics == ""
	})

	lyrics = cleanLyrics(lyrics)
	if lyrics == "" {
		return nil, ErrNotFound
	}
	return &Result{
		Title:  title,
		Lyrics: lyrics,
		URL:    pageURL,
		Source: "animelyrics.com",
	}, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build scrape request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

var whitespacePattern = regexp.MustCompile(`[ \t]+`)

func cleanLyrics(lyrics string) string {
	lyrics = strings.ReplaceAll(lyrics, "\r\n", "\n")
	lyrics = whitespacePattern.ReplaceAllString(lyrics, " ")
	lyrics = strings.TrimSpace(lyrics)

	if len(lyrics) > maxLyricsLength {
		lyrics = lyrics[:maxLyricsLength-3] + "..."
	}
	return lyrics
}
