// Package resolver picks the source for a user's input and resolves it.
package resolver

import (
	"context"
	"errors"
	"strings"

	"github.com/keshon/driveby/internal/apperr"
	"github.com/keshon/driveby/internal/music/sources"
)

var ErrNoSource = apperr.New(apperr.KindResolution, "no source can play this link")

// SearchSource is a source that can also search by title.
type SearchSource interface {
	sources.Source
	sources.Searcher
}

type Resolver struct {
	search  SearchSource
	sources []sources.Source
}

// New resolves links against srcs in order. Title searches go to search,
// which is also tried first for links.
func New(search SearchSource, srcs ...sources.Source) *Resolver {
	all := make([]sources.Source, 0, len(srcs)+1)
	if search != nil {
		all = append(all, search)
	}
	all = append(all, srcs...)
	return &Resolver{search: search, sources: all}
}

// Resolve handles a single argument: a link, or anything else as a search.
func (r *Resolver) Resolve(ctx context.Context, input string) (sources.TrackInfo, error) {
	input = strings.TrimSpace(input)
	if !sources.IsURL(input) {
		return r.Search(ctx, input)
	}

	for _, s := range r.sources {
		if s.Match(input) {
			info, err := s.Resolve(ctx, input)
			return info, apperr.Wrap(apperr.KindResolution, err)
		}
	}
	return sources.TrackInfo{}, ErrNoSource
}

// Search resolves free text to the first hit of the search source.
func (r *Resolver) Search(ctx context.Context, query string) (sources.TrackInfo, error) {
	if r.search == nil {
		return sources.TrackInfo{}, apperr.New(apperr.KindResolution, "title search is not available")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return sources.TrackInfo{}, apperr.Wrap(apperr.KindResolution, errors.New("empty search query"))
	}

	link, err := r.search.Search(ctx, query)
	if err != nil {
		return sources.TrackInfo{}, apperr.Wrap(apperr.KindResolution, err)
	}
	info, err := r.search.Resolve(ctx, link)
	return info, apperr.Wrap(apperr.KindResolution, err)
}
