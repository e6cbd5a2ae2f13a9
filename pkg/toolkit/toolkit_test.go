package toolkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/pkg/tools"
)

func TestRegisterAll(t *testing.T) {
	t.Run("should register the five built-in tools", func(t *testing.T) {
		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{}))

		descs := registry.DescribeAll()
		names := make([]string, 0, len(descs))
		for _, d := range descs {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"adder", "github_repo", "wiki_summary", "news_search", "post_update"}, names)
	})

	t.Run("should require a registry", func(t *testing.T) {
		assert.Error(t, RegisterAll(nil, Options{}))
	})
}

func TestAdder(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, RegisterAll(registry, Options{}))

	t.Run("should add two numbers", func(t *testing.T) {
		result := registry.Dispatch(context.Background(), "adder", map[string]interface{}{"a": 2.0, "b": 3.0}, 0)
		assert.False(t, result.IsError)
		assert.Equal(t, "2 + 3 = 5", result.Text())
	})

	t.Run("should handle negatives and fractions", func(t *testing.T) {
		result := registry.Dispatch(context.Background(), "adder", map[string]interface{}{"a": -1.5, "b": 0.5}, 0)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), "-1")
	})
}

func TestGithubRepo(t *testing.T) {
	t.Run("should format repository info", func(t *testing.T) {
		var gotAuth, gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"full_name":"golang/go","description":"The Go programming language","stargazers_count":120000,"forks_count":17000,"open_issues_count":9000,"html_url":"https://github.com/golang/go"}`))
		}))
		defer ts.Close()

		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			GitHub: config.GitHubConfig{BaseURL: ts.URL, Token: "tok"},
		}))

		result := registry.Dispatch(context.Background(), "github_repo", map[string]interface{}{"owner": "golang", "repo": "go"}, 0)
		assert.False(t, result.IsError)
		assert.Equal(t, "/repos/golang/go", gotPath)
		assert.Equal(t, "Bearer tok", gotAuth)
		assert.Contains(t, result.Text(), "golang/go")
		assert.Contains(t, result.Text(), "stars: 120000")
	})

	t.Run("should surface a missing repository as an error result", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			GitHub: config.GitHubConfig{BaseURL: ts.URL},
		}))

		result := registry.Dispatch(context.Background(), "github_repo", map[string]interface{}{"owner": "nobody", "repo": "nothing"}, 0)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Text(), "not found")
	})
}

func TestWikiSummary(t *testing.T) {
	t.Run("should replace spaces with underscores in the title", func(t *testing.T) {
		var gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"title":"Alan Turing","extract":"English mathematician.","content_urls":{"desktop":{"page":"https://en.wikipedia.org/wiki/Alan_Turing"}}}`))
		}))
		defer ts.Close()

		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			Wiki: config.WikiConfig{BaseURL: ts.URL},
		}))

		result := registry.Dispatch(context.Background(), "wiki_summary", map[string]interface{}{"topic": "Alan Turing"}, 0)
		assert.False(t, result.IsError)
		assert.Equal(t, "/page/summary/Alan_Turing", gotPath)
		assert.Contains(t, result.Text(), "English mathematician")
		assert.Contains(t, result.Text(), "wiki/Alan_Turing")
	})
}

func TestNewsSearch(t *testing.T) {
	const feed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<item><title>First headline</title><link>https://example.com/1</link></item>
<item><title>Second headline</title><link>https://example.com/2</link></item>
<item><title>Third headline</title><link>https://example.com/3</link></item>
</channel></rss>`

	newsRegistry := func(t *testing.T, baseURL string, maxItems int) *tools.Registry {
		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			News: config.NewsConfig{BaseURL: baseURL, MaxItems: maxItems},
		}))
		return registry
	}

	t.Run("should list numbered headlines", func(t *testing.T) {
		var gotQuery string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.Query().Get("q")
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(feed))
		}))
		defer ts.Close()

		result := newsRegistry(t, ts.URL, 5).Dispatch(context.Background(), "news_search", map[string]interface{}{"topic": "space"}, 0)
		assert.False(t, result.IsError)
		assert.Equal(t, "space", gotQuery)
		assert.Contains(t, result.Text(), "1. First headline")
		assert.Contains(t, result.Text(), "3. Third headline")
	})

	t.Run("should cap headlines at the configured maximum", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(feed))
		}))
		defer ts.Close()

		result := newsRegistry(t, ts.URL, 2).Dispatch(context.Background(), "news_search", map[string]interface{}{"topic": "space"}, 0)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), "2. Second headline")
		assert.NotContains(t, result.Text(), "Third headline")
	})

	t.Run("should honor a smaller caller limit", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(feed))
		}))
		defer ts.Close()

		result := newsRegistry(t, ts.URL, 5).Dispatch(context.Background(), "news_search", map[string]interface{}{"topic": "space", "limit": 1}, 0)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), "First headline")
		assert.NotContains(t, result.Text(), "Second headline")
	})

	t.Run("should report an empty feed", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`<?xml version="1.0"?><rss><channel></channel></rss>`))
		}))
		defer ts.Close()

		result := newsRegistry(t, ts.URL, 5).Dispatch(context.Background(), "news_search", map[string]interface{}{"topic": "nothing"}, 0)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), "no news found")
	})
}

func TestPostUpdate(t *testing.T) {
	t.Run("should publish and return the post id", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/posts", r.URL.Path)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"post-42"}`))
		}))
		defer ts.Close()

		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			Social: config.SocialConfig{BaseURL: ts.URL},
		}))

		result := registry.Dispatch(context.Background(), "post_update", map[string]interface{}{"text": "hello"}, 0)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), "post-42")
	})

	t.Run("should read a nested data id", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{"data":{"id":"nested-7"}}`))
		}))
		defer ts.Close()

		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			Social: config.SocialConfig{BaseURL: ts.URL},
		}))

		result := registry.Dispatch(context.Background(), "post_update", map[string]interface{}{"text": "hello"}, 0)
		assert.False(t, result.IsError)
		assert.Contains(t, result.Text(), "nested-7")
	})

	t.Run("should fail when posting is not configured", func(t *testing.T) {
		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{}))

		result := registry.Dispatch(context.Background(), "post_update", map[string]interface{}{"text": "hello"}, 0)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Text(), "not configured")
	})

	t.Run("should reject text over the length limit", func(t *testing.T) {
		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			Social: config.SocialConfig{BaseURL: "http://localhost:1"},
		}))

		long := strings.Repeat("x", 281)
		result := registry.Dispatch(context.Background(), "post_update", map[string]interface{}{"text": long}, 0)
		assert.True(t, result.IsError)
		assert.Contains(t, result.Text(), "280")
	})
}

func TestTimeoutBound(t *testing.T) {
	t.Run("should convert a slow collaborator into a timeout error result", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{}`))
		}))
		defer ts.Close()

		registry := tools.NewRegistry()
		require.NoError(t, RegisterAll(registry, Options{
			GitHub:      config.GitHubConfig{BaseURL: ts.URL},
			HTTPTimeout: 50 * time.Millisecond,
		}))

		result := registry.Dispatch(context.Background(), "github_repo", map[string]interface{}{"owner": "a", "repo": "b"}, 0)
		assert.True(t, result.IsError)
	})
}
