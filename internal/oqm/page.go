package oqm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/txdal/internal/dal"
	"github.com/roach88/txdal/internal/filter"
)

// PageRequest describes the page being served.
type PageRequest struct {
	// URL is the full request URL the page was requested with.
	URL    string
	Offset int
	Limit  int

	// URLStart trims NextURL to begin at this substring, e.g. "/v1" to
	// drop scheme and host. Ignored when empty or absent from URL.
	URLStart string
}

// Page is one page of results plus the link to the next.
type Page[E any] struct {
	TotalCount int    `json:"total_count"`
	NextURL    string `json:"next_url,omitempty"`
	Results    []E    `json:"results"`
}

// ListPage lists one page of a Paginateable entity.
type ListPage[E Paginateable] struct {
	where filter.Statement
	req   PageRequest
}

// NewListPage declares a paginated list. where is expected to apply
// req.Offset and req.Limit, for example a filter.Filter carrying them.
func NewListPage[E Paginateable](where filter.Statement, req PageRequest) ListPage[E] {
	return ListPage[E]{where: where, req: req}
}

// Page runs the list query and computes the next page link from the
// total count carried by the first row.
func (q ListPage[E]) Page(ctx context.Context, tx *dal.Transaction) (Page[E], error) {
	results, err := NewListQ[E](q.where).List(ctx, tx)
	if err != nil {
		return Page[E]{}, err
	}
	if len(results) == 0 {
		return Page[E]{Results: results}, nil
	}

	total := results[0].TotalCount()
	next, err := NextURL(q.req, len(results), total)
	if err != nil {
		return Page[E]{}, err
	}
	return Page[E]{TotalCount: total, NextURL: next, Results: results}, nil
}

// NextURL returns the link to the page after one of n results, or "" when
// nothing remains. The offset query parameter is advanced by the limit and
// the limit is added when the request did not carry one. An unlimited
// request (Limit <= 0) has no next page.
func NextURL(req PageRequest, n, total int) (string, error) {
	if req.Limit <= 0 || total < 1 || total-n-req.Offset <= 0 {
		return "", nil
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return "", fmt.Errorf("next url: %w", err)
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(req.Offset+req.Limit))
	if q.Get("limit") == "" {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	u.RawQuery = q.Encode()

	next := u.String()
	if req.URLStart != "" {
		if i := strings.Index(next, req.URLStart); i >= 0 {
			next = next[i:]
		}
	}
	return next, nil
}
