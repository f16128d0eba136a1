package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unkn0wn-root/entcache/catalog"
)

// repo is an in-memory stand-in for the database behind the caches. Every
// read sleeps for latency and is counted, so a run shows how many loads the
// cache absorbed.
type repo struct {
	latency time.Duration
	loads   atomic.Int64

	mu          sync.RWMutex
	venues      map[int64]catalog.VenueType
	instructors map[uuid.UUID]catalog.Instructor
}

func newRepo(venues, instructors int, latency time.Duration) *repo {
	r := &repo{
		latency:     latency,
		venues:      make(map[int64]catalog.VenueType, venues),
		instructors: make(map[uuid.UUID]catalog.Instructor, instructors),
	}
	for i := 1; i <= venues; i++ {
		r.venues[int64(i)] = catalog.VenueType{ID: int64(i), Name: fmt.Sprintf("Venue %d", i)}
	}
	for i := 1; i <= instructors; i++ {
		id := uuid.New()
		r.instructors[id] = catalog.Instructor{
			ID:        id,
			FirstName: "Instructor",
			LastName:  fmt.Sprint(i),
			Email:     fmt.Sprintf("instructor%d@example.com", i),
		}
	}
	return r
}

func (r *repo) wait(ctx context.Context) error {
	r.loads.Add(1)
	t := time.NewTimer(r.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *repo) venueByID(id int64) func(context.Context) (catalog.VenueType, bool, error) {
	return func(ctx context.Context) (catalog.VenueType, bool, error) {
		if err := r.wait(ctx); err != nil {
			return catalog.VenueType{}, false, err
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		v, ok := r.venues[id]
		return v, ok, nil
	}
}

func (r *repo) venueByName(name string) func(context.Context) (catalog.VenueType, bool, error) {
	return func(ctx context.Context) (catalog.VenueType, bool, error) {
		if err := r.wait(ctx); err != nil {
			return catalog.VenueType{}, false, err
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, v := range r.venues {
			if strings.EqualFold(strings.TrimSpace(v.Name), strings.TrimSpace(name)) {
				return v, true, nil
			}
		}
		return catalog.VenueType{}, false, nil
	}
}

func (r *repo) allVenues(ctx context.Context) ([]catalog.VenueType, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]catalog.VenueType, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, v)
	}
	return out, nil
}

func (r *repo) instructorByEmail(email string) func(context.Context) (catalog.Instructor, bool, error) {
	return func(ctx context.Context) (catalog.Instructor, bool, error) {
		if err := r.wait(ctx); err != nil {
			return catalog.Instructor{}, false, err
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, in := range r.instructors {
			if strings.EqualFold(in.Email, strings.TrimSpace(email)) {
				return in, true, nil
			}
		}
		return catalog.Instructor{}, false, nil
	}
}

func (r *repo) emails() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.instructors))
	for _, in := range r.instructors {
		out = append(out, in.Email)
	}
	return out
}

// renameVenue updates a row the way a service would: invalidate the old
// state, write, then cache the new state.
func (r *repo) renameVenue(ctx context.Context, c *catalog.VenueTypeCache, id int64, name string) error {
	r.mu.Lock()
	old, ok := r.venues[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("venue %d not found", id)
	}
	if err := c.Invalidate(ctx, old); err != nil {
		r.mu.Unlock()
		return err
	}
	updated := catalog.VenueType{ID: id, Name: name}
	r.venues[id] = updated
	r.mu.Unlock()
	return c.Set(ctx, updated)
}
