package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/transit-cache/pkg/pagination"
)

// StationSource retrieves one kind of station from a REST collection:
// GET {endpoint}/{id} returns one T, GET {endpoint}?page=N returns a page of []T.
type StationSource[T any] struct {
	client   *Client
	endpoint string
	pages    *pagination.BatchFetcher
}

// NewStationSource creates a source for the collection at endpoint.
func NewStationSource[T any](c *Client, endpoint string) *StationSource[T] {
	if c == nil {
		panic("client cannot be nil")
	}
	endpoint = "/" + strings.Trim(endpoint, "/")
	return &StationSource[T]{
		client:   c,
		endpoint: endpoint,
		pages:    pagination.NewBatchFetcher(c, pagination.DefaultConfig()),
	}
}

// Endpoint returns the collection path.
func (s *StationSource[T]) Endpoint() string {
	return s.endpoint
}

// RetrieveFreshStation fetches a single station.
func (s *StationSource[T]) RetrieveFreshStation(ctx context.Context, id string) (T, error) {
	var station T
	path := s.endpoint + "/" + url.PathEscape(id)

	data, _, err := s.client.Get(ctx, path, nil)
	if err != nil {
		return station, err
	}
	if err := json.Unmarshal(data, &station); err != nil {
		return station, &FetchError{
			StatusCode: http.StatusOK,
			Class:      ErrorClassDecode,
			Endpoint:   path,
			Err:        err,
		}
	}
	return station, nil
}

// RetrieveAllStations fetches the whole collection, all pages in parallel,
// and returns it in page order.
func (s *StationSource[T]) RetrieveAllStations(ctx context.Context) ([]T, error) {
	pages, err := s.pages.FetchAllPages(ctx, s.endpoint)
	if err != nil {
		return nil, err
	}

	var all []T
	for page := 1; page <= len(pages); page++ {
		var batch []T
		if err := json.Unmarshal(pages[page], &batch); err != nil {
			return nil, &FetchError{
				StatusCode: http.StatusOK,
				Class:      ErrorClassDecode,
				Endpoint:   s.endpoint,
				Message:    fmt.Sprintf("page %d", page),
				Err:        err,
			}
		}
		all = append(all, batch...)
	}

	s.client.logger.Info().
		Str("endpoint", s.endpoint).
		Int("pages", len(pages)).
		Int("stations", len(all)).
		Msg("Retrieved station collection")
	return all, nil
}
