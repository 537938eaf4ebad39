package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SnippetSearcher is the knowledge-base lookup the KB source runs on.
// The sqlite store implements it.
type SnippetSearcher interface {
	SearchSnippets(ctx context.Context, topic string, limit int) ([]string, error)
}

// kbSnippetLimit caps how many knowledge-base entries feed one prompt.
const kbSnippetLimit = 8

// KBSource serves snippets from the local knowledge base.
type KBSource struct {
	repo SnippetSearcher
}

func NewKBSource(repo SnippetSearcher) *KBSource {
	return &KBSource{repo: repo}
}

func (s *KBSource) Name() string { return "kb" }

func (s *KBSource) Search(ctx context.Context, topic string) ([]string, error) {
	return s.repo.SearchSnippets(ctx, topic, kbSnippetLimit)
}

// PubMedSource searches PubMed through the NCBI E-utilities JSON API
// and returns article titles as context snippets.
type PubMedSource struct {
	client  *http.Client
	baseURL string
	retMax  int
}

const defaultEutilsBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// NewPubMedSource creates a PubMed source. baseURL overrides the NCBI
// endpoint for testing; empty uses the real one.
func NewPubMedSource(baseURL string) *PubMedSource {
	if baseURL == "" {
		baseURL = defaultEutilsBaseURL
	}
	return &PubMedSource{
		client:  &http.Client{Timeout: 20 * time.Second},
		baseURL: baseURL,
		retMax:  5,
	}
}

func (s *PubMedSource) Name() string { return "pubmed" }

func (s *PubMedSource) Search(ctx context.Context, topic string) ([]string, error) {
	ids, err := s.search(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.summaries(ctx, ids)
}

func (s *PubMedSource) search(ctx context.Context, topic string) ([]string, error) {
	q := url.Values{
		"db":      {"pubmed"},
		"term":    {topic},
		"retmode": {"json"},
		"retmax":  {fmt.Sprint(s.retMax)},
		"sort":    {"relevance"},
	}

	var payload struct {
		ESearchResult struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := s.getJSON(ctx, s.baseURL+"/esearch.fcgi?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	return payload.ESearchResult.IDList, nil
}

func (s *PubMedSource) summaries(ctx context.Context, ids []string) ([]string, error) {
	q := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}

	var payload struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := s.getJSON(ctx, s.baseURL+"/esummary.fcgi?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("pubmed summary: %w", err)
	}

	var snippets []string
	for _, id := range ids {
		raw, ok := payload.Result[id]
		if !ok {
			continue
		}
		var doc struct {
			Title   string `json:"title"`
			PubDate string `json:"pubdate"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil || doc.Title == "" {
			continue
		}
		snippets = append(snippets, fmt.Sprintf("%s (%s)", doc.Title, doc.PubDate))
	}
	return snippets, nil
}

func (s *PubMedSource) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
