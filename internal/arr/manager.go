// Copyright (c) 2025-2026, the sweeparr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sweeparr/sweeparr/internal/models"
)

// Service binds a Client to the instance it talks to and exposes the
// operations the reconciliation engine and tagging service need.
type Service struct {
	instance *models.ArrInstance
	client   *Client
}

func (s *Service) InstanceID() int              { return s.instance.ID }
func (s *Service) InstanceName() string         { return s.instance.Name }
func (s *Service) Type() models.ArrInstanceType { return s.instance.Type }

// Client exposes the underlying API client.
func (s *Service) Client() *Client { return s.client }

// GetTags returns the instance's tag definitions.
func (s *Service) GetTags(ctx context.Context) ([]Tag, error) {
	return s.client.GetTags(ctx)
}

// GetItemTags fetches the detail record for an item and returns its tag
// ids. Bulk listings do not carry tags, so this is a separate request.
func (s *Service) GetItemTags(ctx context.Context, item *TrackedItem) ([]int, error) {
	switch item.Kind {
	case MediaKindSeries:
		series, err := s.client.GetSeriesByID(ctx, item.ArrID)
		if err != nil {
			return nil, err
		}
		return series.Tags, nil
	case MediaKindMovie:
		movie, err := s.client.GetMovieByID(ctx, item.ArrID)
		if err != nil {
			return nil, err
		}
		return movie.Tags, nil
	default:
		return nil, fmt.Errorf("unknown media kind: %s", item.Kind)
	}
}

// Delete removes a tracked item from its instance.
func (s *Service) Delete(ctx context.Context, item *TrackedItem, deleteFiles bool) error {
	switch item.Kind {
	case MediaKindSeries:
		return s.client.DeleteSeries(ctx, item.ArrID, deleteFiles)
	case MediaKindMovie:
		return s.client.DeleteMovie(ctx, item.ArrID, deleteFiles)
	default:
		return fmt.Errorf("unknown media kind: %s", item.Kind)
	}
}

// Manager is the inventory collaborator: it owns per-instance clients
// and fans inventory fetches out across all enabled instances.
type Manager struct {
	store *models.ArrInstanceStore

	mu       sync.Mutex
	services map[int]*Service

	// clientFactory is replaceable for tests.
	clientFactory func(instance *models.ArrInstance, apiKey string) *Client
}

// NewManager creates a new Manager over the instance store.
func NewManager(store *models.ArrInstanceStore) *Manager {
	return &Manager{
		store:    store,
		services: make(map[int]*Service),
		clientFactory: func(instance *models.ArrInstance, apiKey string) *Client {
			return NewClient(Config{
				BaseURL: instance.BaseURL,
				APIKey:  apiKey,
				Timeout: instance.TimeoutSeconds,
			})
		},
	}
}

// ServiceFor returns (building and caching if needed) the Service for
// an instance id.
func (m *Manager) ServiceFor(ctx context.Context, instanceID int) (*Service, error) {
	m.mu.Lock()
	if svc, ok := m.services[instanceID]; ok {
		m.mu.Unlock()
		return svc, nil
	}
	m.mu.Unlock()

	instance, err := m.store.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	apiKey, err := m.store.GetAPIKey(instance)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		instance: instance,
		client:   m.clientFactory(instance, apiKey),
	}

	m.mu.Lock()
	m.services[instanceID] = svc
	m.mu.Unlock()

	return svc, nil
}

// Invalidate drops the cached client for an instance after its
// configuration changed.
func (m *Manager) Invalidate(instanceID int) {
	m.mu.Lock()
	delete(m.services, instanceID)
	m.mu.Unlock()
}

// FetchAllSeries returns every series tracked by every enabled Sonarr
// instance. Instances are queried concurrently; any instance failure
// fails the whole fetch, because a partial inventory would make
// deletion ratios meaningless.
func (m *Manager) FetchAllSeries(ctx context.Context) ([]*TrackedItem, error) {
	return m.fetchAll(ctx, models.ArrInstanceTypeSonarr, func(ctx context.Context, svc *Service) ([]*TrackedItem, error) {
		series, err := svc.client.GetAllSeries(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]*TrackedItem, 0, len(series))
		for i := range series {
			items = append(items, TrackedItemFromSeries(svc.InstanceID(), svc.InstanceName(), &series[i]))
		}
		return items, nil
	})
}

// FetchAllMovies returns every movie tracked by every enabled Radarr
// instance.
func (m *Manager) FetchAllMovies(ctx context.Context) ([]*TrackedItem, error) {
	return m.fetchAll(ctx, models.ArrInstanceTypeRadarr, func(ctx context.Context, svc *Service) ([]*TrackedItem, error) {
		movies, err := svc.client.GetAllMovies(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]*TrackedItem, 0, len(movies))
		for i := range movies {
			items = append(items, TrackedItemFromMovie(svc.InstanceID(), svc.InstanceName(), &movies[i]))
		}
		return items, nil
	})
}

func (m *Manager) fetchAll(ctx context.Context, instanceType models.ArrInstanceType, fetch func(context.Context, *Service) ([]*TrackedItem, error)) ([]*TrackedItem, error) {
	instances, err := m.store.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([][]*TrackedItem, len(instances))

	for i, instance := range instances {
		if instance.Type != instanceType {
			continue
		}

		g.Go(func() error {
			svc, err := m.ServiceFor(gctx, instance.ID)
			if err != nil {
				return fmt.Errorf("instance %s: %w", instance.Name, err)
			}

			items, err := fetch(gctx, svc)
			if err != nil {
				return fmt.Errorf("instance %s: %w", instance.Name, err)
			}

			log.Debug().Str("instance", instance.Name).Int("items", len(items)).Msg("arr: fetched inventory")
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*TrackedItem
	for _, items := range results {
		all = append(all, items...)
	}
	return all, nil
}
