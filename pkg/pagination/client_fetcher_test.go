package pagination

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/criske/my-git-feed-server/pkg/cache"
	"github.com/criske/my-git-feed-server/pkg/client"
	"github.com/tidwall/gjson"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name    string
		headers client.Headers
		body    string
		want    int
	}{
		{
			name:    "github link header",
			headers: client.Headers{"Link": {`<https://api.github.com/user/repos?page=2>; rel="next", <https://api.github.com/user/repos?page=7>; rel="last"`}},
			body:    `[]`,
			want:    7,
		},
		{
			name:    "gitlab total pages",
			headers: client.Headers{"X-Total-Pages": {"3"}},
			body:    `[]`,
			want:    3,
		},
		{
			name:    "bitbucket body",
			headers: client.Headers{},
			body:    `{"size": 25, "pagelen": 10, "values": []}`,
			want:    3,
		},
		{
			name:    "no paging",
			headers: client.Headers{},
			body:    `[{"id":1}]`,
			want:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalPages(client.JSONResponse{Body: gjson.Parse(tt.body), Headers: tt.headers})
			if got != tt.want {
				t.Errorf("TotalPages() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPageMapper_BitbucketValues(t *testing.T) {
	out, err := PageMapper(client.JSONResponse{
		Body:    gjson.Parse(`{"size":1,"pagelen":10,"values":[{"hash":"abc"}]}`),
		Headers: client.Headers{},
	})
	if err != nil {
		t.Fatalf("PageMapper() error = %v", err)
	}
	data, _ := json.Marshal(out)
	if string(data) != `{"total_pages":1,"items":[{"hash":"abc"}]}` {
		t.Errorf("canonical page = %s", data)
	}
}

func TestQueryPageURL(t *testing.T) {
	got, err := QueryPageURL("page")("https://gitlab.com/api/v4/projects?per_page=50", 3)
	if err != nil {
		t.Fatalf("QueryPageURL() error = %v", err)
	}
	if got != "https://gitlab.com/api/v4/projects?page=3&per_page=50" {
		t.Errorf("QueryPageURL() = %q", got)
	}
}

func TestClientPageFetcher_CachedPagesKeepCount(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		mu.Lock()
		hits[page]++
		mu.Unlock()

		etag := `"p` + page + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("X-Total-Pages", "3")
		w.Write([]byte(`[` + page + `]`))
	}))
	defer server.Close()

	store, err := cache.NewMemoryStore(100, 0)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	defer store.Close()

	c := client.NewRequestClient(store, client.NewHTTPCommand(server.Client()), client.Bearer("t"))
	bf := NewBatchFetcher(NewClientPageFetcher(c, QueryPageURL("page")), DefaultConfig())

	for round := 0; round < 2; round++ {
		pages, err := bf.FetchAllPages(context.Background(), server.URL+"/projects")
		if err != nil {
			t.Fatalf("round %d: FetchAllPages() error = %v", round, err)
		}
		if len(pages) != 3 {
			t.Fatalf("round %d: pages = %d, want 3", round, len(pages))
		}
		for n, data := range pages {
			if string(data) != "["+strconv.Itoa(n)+"]" {
				t.Errorf("round %d: page %d = %s", round, n, data)
			}
		}
	}

	// The second round was answered with 304s and cached page counts.
	for page, n := range hits {
		if n != 2 {
			t.Errorf("page %s hit %d times, want 2", page, n)
		}
	}
}
