package discover

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercase host and scheme", in: "HTTPS://Marine.Example/Blog/", want: "https://marine.example/Blog/"},
		{name: "drop default https port", in: "https://marine.example:443/faq", want: "https://marine.example/faq"},
		{name: "drop default http port", in: "http://marine.example:80/faq", want: "http://marine.example/faq"},
		{name: "keep other ports", in: "http://127.0.0.1:8080/faq", want: "http://127.0.0.1:8080/faq"},
		{name: "drop fragment", in: "https://marine.example/faq#hull", want: "https://marine.example/faq"},
		{name: "sort query", in: "https://marine.example/s?b=2&a=1", want: "https://marine.example/s?a=1&b=2"},
		{name: "empty path becomes root", in: "https://marine.example", want: "https://marine.example/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := NormalizeURL("http://[::1")
	require.Error(t, err)
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://marine.example/blog/")
	require.NoError(t, err)

	t.Run("no links", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, ExtractLinks(base, "<html><body><h1>Hull cover</h1></body></html>"))
	})

	t.Run("relative and absolute", func(t *testing.T) {
		t.Parallel()
		body := `<a href="/guide/hull">Hull</a><a href="towing">Towing</a>` +
			`<a href="https://other.example/x">Other</a>`
		require.Equal(t, []string{
			"https://marine.example/guide/hull",
			"https://marine.example/blog/towing",
			"https://other.example/x",
		}, ExtractLinks(base, body))
	})

	t.Run("skips non-http and fragments", func(t *testing.T) {
		t.Parallel()
		body := `<a href="#top">Top</a><a href="mailto:desk@marine.example">Mail</a>` +
			`<a href="javascript:void(0)">JS</a><a href=":">Bad</a><a href="">Empty</a>`
		require.Empty(t, ExtractLinks(base, body))
	})

	t.Run("dedupes after normalization", func(t *testing.T) {
		t.Parallel()
		body := `<a href="/faq#a">A</a><a href="/faq#b">B</a><a href="HTTPS://MARINE.EXAMPLE/faq">C</a>`
		require.Equal(t, []string{"https://marine.example/faq"}, ExtractLinks(base, body))
	})
}

func TestSameSite(t *testing.T) {
	t.Parallel()

	require.True(t, SameSite("marine.example", "https://www.marine.example/blog/"))
	require.True(t, SameSite("www.marine.example", "https://marine.example/"))
	require.False(t, SameSite("marine.example", "https://blog.marine.example/"))
	require.False(t, SameSite("marine.example", "https://other.example/"))
}

func TestIsArticleAndAsset(t *testing.T) {
	t.Parallel()

	require.True(t, IsArticle("https://marine.example/blog/hull-cover"))
	require.True(t, IsArticle("https://marine.example/News/storm-season"))
	require.False(t, IsArticle("https://marine.example/contact"))

	require.True(t, isAsset("https://marine.example/brochure.PDF"))
	require.True(t, isAsset("https://marine.example/logo.png"))
	require.False(t, isAsset("https://marine.example/blog/hull"))
}
