package wiki

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCandidates(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		results []SearchResult
		want    []string
	}{
		{
			name:  "exact match jumps the queue",
			query: "mahatma gandhi",
			results: []SearchResult{
				{Title: "Gandhi (film)"},
				{Title: "Mahatma Gandhi"},
				{Title: "Gandhism"},
			},
			want: []string{"Mahatma Gandhi", "Gandhi (film)", "Gandhism"},
		},
		{
			name:  "disambiguation pages dropped",
			query: "Gandhi",
			results: []SearchResult{
				{Title: "Gandhi (disambiguation)"},
				{Title: "Mahatma Gandhi"},
			},
			want: []string{"Mahatma Gandhi"},
		},
		{
			name:    "no results",
			query:   "x",
			results: nil,
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range SelectCandidates(tt.query, tt.results) {
				got = append(got, r.Title)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Fetch_SkipsDisambiguationPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("formatversion"))
		switch {
		case q.Get("list") == "search":
			_, _ = w.Write([]byte(`{"query":{"search":[{"title":"Gandhi","pageid":1},{"title":"Mahatma Gandhi","pageid":2}]}}`))
		case q.Get("titles") == "Gandhi":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"title":"Gandhi","extract":"Gandhi may refer to:","pageprops":{"disambiguation":""}}]}}`))
		case q.Get("titles") == "Mahatma Gandhi":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"title":"Mahatma Gandhi","fullurl":"https://en.wikipedia.org/wiki/Mahatma_Gandhi","extract":"Mohandas Gandhi was a lawyer.\n\n\n== Early life ==\nBorn in   Porbandar."}]}}`))
		default:
			t.Errorf("unexpected query %v", q)
		}
	}))
	defer srv.Close()

	article, err := NewClient(srv.URL).Fetch(t.Context(), "Gandhi")
	require.NoError(t, err)
	assert.Equal(t, "Mahatma Gandhi", article.Title)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Mahatma_Gandhi", article.URL)
	assert.Equal(t, "Mohandas Gandhi was a lawyer.\n\nBorn in Porbandar.", article.Content)
}

func TestClient_Fetch_NoArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query":{"search":[]}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Fetch(t.Context(), "zzzz")
	assert.ErrorIs(t, err, ErrNoArticle)
}

func TestCleanText(t *testing.T) {
	in := "Intro line.\n\n== History ==\n\n\n\nSome   text\there.\n=== Sub ===\nEnd."
	assert.Equal(t, "Intro line.\n\nSome text here.\n\nEnd.", CleanText(in))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "mahatma_gandhi", SanitizeFilename("Mahatma Gandhi"))
	assert.Equal(t, "gandhi_film", SanitizeFilename("Gandhi (film)"))
	assert.Equal(t, "article", SanitizeFilename("!!!"))
}
