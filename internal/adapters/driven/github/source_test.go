package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ispasdani/k2ide/internal/core/domain"
)

func newTestSource(t *testing.T, ref string, mux *http.ServeMux) *Source {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	src, err := NewSource(Config{BaseURL: server.URL, Ref: ref})
	require.NoError(t, err)
	return src
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		in    string
		owner string
		repo  string
		ok    bool
	}{
		{"https://github.com/acme/widgets", "acme", "widgets", true},
		{"https://github.com/acme/widgets.git", "acme", "widgets", true},
		{"https://www.github.com/acme/widgets/", "acme", "widgets", true},
		{"github.com/acme/widgets", "acme", "widgets", true},
		{"acme/widgets", "acme", "widgets", true},
		{"https://github.com/acme/widgets/tree/main/src", "acme", "widgets", true},
		{"https://gitlab.com/acme/widgets", "", "", false},
		{"acme", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.in)
			if !tt.ok {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.repo, repo)
		})
	}
}

func TestSource_ListFiles_DefaultBranch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"name":"widgets","default_branch":"trunk"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/trunk", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		writeJSON(w, http.StatusOK, `{"sha":"t1","truncated":false,"tree":[
			{"path":"src","type":"tree","sha":"d1"},
			{"path":"src/app.ts","type":"blob","sha":"b1","size":12},
			{"path":"README.md","type":"blob","sha":"b2","size":5}
		]}`)
	})

	src := newTestSource(t, "", mux)
	refs, err := src.ListFiles(context.Background(), "https://github.com/acme/widgets", "")
	require.NoError(t, err)
	assert.Equal(t, []domain.FileRef{
		{Path: "src/app.ts", SHA: "b1", Size: 12},
		{Path: "README.md", SHA: "b2", Size: 5},
	}, refs)
}

func TestSource_ListFiles_ConfiguredRefSendsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/trees/v1.2.0", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ghp_secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"sha":"t1","tree":[{"path":"a.go","type":"blob","sha":"b1","size":1}]}`)
	})

	src := newTestSource(t, "v1.2.0", mux)
	refs, err := src.ListFiles(context.Background(), "acme/widgets", "ghp_secret")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestSource_FetchFile_Blob(t *testing.T) {
	content := "export const x = 1;\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/blobs/b1", func(w http.ResponseWriter, r *http.Request) {
		// split like GitHub does
		wrapped := encoded[:10] + "\n" + encoded[10:]
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"sha":"b1","encoding":"base64","content":%q}`, wrapped))
	})

	src := newTestSource(t, "main", mux)
	file, err := src.FetchFile(context.Background(), "acme/widgets", domain.FileRef{Path: "src/x.ts", SHA: "b1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "src/x.ts", file.Path)
	assert.Equal(t, content, string(file.Content))
}

func TestSource_FetchFile_ByPath(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/contents/docs/guide.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		writeJSON(w, http.StatusOK, `{"type":"file","path":"docs/guide.md","encoding":"base64","content":"aGVsbG8="}`)
	})

	src := newTestSource(t, "main", mux)
	file, err := src.FetchFile(context.Background(), "acme/widgets", domain.FileRef{Path: "docs/guide.md"}, "")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(file.Content))
}

func TestSource_ErrorMapping(t *testing.T) {
	reset := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)

	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "quota exhausted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", reset)
				writeJSON(w, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
			},
			want: domain.ErrRateLimited,
		},
		{
			name: "too many requests",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, `{"message":"slow down"}`)
			},
			want: domain.ErrRateLimited,
		},
		{
			name: "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-RateLimit-Remaining", "4000")
				writeJSON(w, http.StatusForbidden, `{"message":"Resource not accessible"}`)
			},
			want: domain.ErrForbidden,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusNotFound, `{"message":"Not Found"}`)
			},
			want: domain.ErrNotFound,
		},
		{
			name: "bad credentials",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, `{"message":"Bad credentials"}`)
			},
			want: domain.ErrUnauthorized,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadGateway, `{"message":"upstream"}`)
			},
			want: domain.ErrServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/repos/acme/widgets/git/trees/main", tt.handler)

			src := newTestSource(t, "main", mux)
			_, err := src.ListFiles(context.Background(), "acme/widgets", "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSource_FailsFastAfterQuotaExhausted(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10))
		writeJSON(w, http.StatusOK, `{"sha":"t","tree":[]}`)
	})

	src := newTestSource(t, "main", mux)
	_, err := src.ListFiles(context.Background(), "acme/widgets", "")
	require.NoError(t, err)

	_, err = src.ListFiles(context.Background(), "acme/widgets", "")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSource_InvalidRepoURL(t *testing.T) {
	src, err := NewSource(DefaultConfig())
	require.NoError(t, err)

	_, err = src.ListFiles(context.Background(), "not a repo", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
