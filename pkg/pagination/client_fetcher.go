package pagination

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"

	"github.com/criske/my-git-feed-server/pkg/client"
)

// Page is the canonical shape cached for one page of a listing.
type Page struct {
	TotalPages int             `json:"total_pages"`
	Items      json.RawMessage `json:"items"`
}

// PageURLFunc builds the URL of page pageNum of endpoint.
type PageURLFunc func(endpoint string, pageNum int) (string, error)

// QueryPageURL sets the page number as query parameter param.
func QueryPageURL(param string) PageURLFunc {
	return func(endpoint string, pageNum int) (string, error) {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", err
		}
		q := u.Query()
		q.Set(param, strconv.Itoa(pageNum))
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}

// ClientPageFetcher fetches pages through a client.Client, so pages are
// cached and revalidated like any other resource.
type ClientPageFetcher struct {
	client  client.Client
	pageURL PageURLFunc
	opts    []client.RequestOption
}

// NewClientPageFetcher creates a fetcher over c. Extra options are applied to
// every page request; the mapper is always PageMapper.
func NewClientPageFetcher(c client.Client, pageURL PageURLFunc, opts ...client.RequestOption) *ClientPageFetcher {
	return &ClientPageFetcher{client: c, pageURL: pageURL, opts: opts}
}

// FetchPage implements PageFetcher.
func (f *ClientPageFetcher) FetchPage(ctx context.Context, endpoint string, pageNum int) ([]byte, int, error) {
	uri, err := f.pageURL(endpoint, pageNum)
	if err != nil {
		return nil, 0, &client.Error{Kind: client.KindValidation, URI: endpoint, Message: "invalid page url", Err: err}
	}

	opts := append(append([]client.RequestOption(nil), f.opts...), client.WithMapper(PageMapper))
	page, err := client.Request[Page](ctx, f.client, uri, opts...)
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.TotalPages, nil
}

var lastPageRe = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="last"`)

// PageMapper wraps a listing body into a Page. Bitbucket bodies keep only
// their "values" array as items.
func PageMapper(r client.JSONResponse) (any, error) {
	items := json.RawMessage(r.Body.Raw)
	if values := r.Body.Get("values"); values.IsArray() {
		items = json.RawMessage(values.Raw)
	}
	return Page{TotalPages: TotalPages(r), Items: items}, nil
}

// TotalPages reads the page count of a listing response. A response without
// paging information is a single page.
func TotalPages(r client.JSONResponse) int {
	if v := r.Headers.Get("X-Total-Pages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}

	if m := lastPageRe.FindStringSubmatch(r.Headers.Get("Link")); m != nil {
		if u, err := url.Parse(m[1]); err == nil {
			if n, err := strconv.Atoi(u.Query().Get("page")); err == nil && n > 0 {
				return n
			}
		}
	}

	size, pagelen := r.Body.Get("size"), r.Body.Get("pagelen")
	if size.Exists() && pagelen.Int() > 0 {
		n := int(math.Ceil(float64(size.Int()) / float64(pagelen.Int())))
		if n > 0 {
			return n
		}
	}
	return 1
}
