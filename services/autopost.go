package services

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/toftmakemore/makemoreV2/models"
	"github.com/toftmakemore/makemoreV2/render"
)

const (
	// Carousel sizing. A remainder below the minimum becomes single posts.
	maxCarsPerCarousel = 10
	minCarsForCarousel = 3
)

// RenderQueue is the rate-limited asset queue posts render through.
type RenderQueue interface {
	Enqueue(ctx context.Context, req render.Request) (string, error)
}

// PostStore persists generator output.
type PostStore interface {
	SaveScheduledPosts(ctx context.Context, posts []models.PostUnit) error
	InsertTimelineEntries(ctx context.Context, entries []models.TimelineEntry) error
}

// AutoPostService turns a category set into scheduled promotional posts.
type AutoPostService struct {
	queue   RenderQueue
	store   PostStore
	forward *Forwarder
}

func NewAutoPostService(queue RenderQueue, store PostStore, forward *Forwarder) *AutoPostService {
	return &AutoPostService{
		queue:   queue,
		store:   store,
		forward: forward,
	}
}

// Run generates, schedules, persists, and forwards posts for one autopost
// config. Forwarding is best effort; a forward failure never rolls back
// local persistence.
func (s *AutoPostService) Run(ctx context.Context, tenant *models.Tenant, cfg *models.AutoPostConfig, vehicles []models.Vehicle, today time.Time, rng *rand.Rand) ([]models.PostUnit, error) {
	posts, err := s.GeneratePosts(ctx, tenant, cfg, vehicles, today, rng)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}

	if err := s.store.SaveScheduledPosts(ctx, posts); err != nil {
		return nil, fmt.Errorf("save posts: %w", err)
	}

	if err := s.store.InsertTimelineEntries(ctx, timelineEntries(posts)); err != nil {
		log.Printf("AutoPost %s: timeline write failed: %v", cfg.ID, err)
	}

	if s.forward != nil {
		for i := range posts {
			if err := s.forward.Send(ctx, tenant, &posts[i]); err != nil {
				log.Printf("AutoPost %s: forward failed for post %s: %v", cfg.ID, posts[i].ID, err)
			}
		}
	}

	return posts, nil
}

// GeneratePosts shuffles the vehicles, partitions them into carousel and
// single units, renders one asset per vehicle through the shared queue, and
// assigns scheduling slots. Vehicles whose render fails are dropped from
// their group; a group left with no children is dropped entirely.
func (s *AutoPostService) GeneratePosts(ctx context.Context, tenant *models.Tenant, cfg *models.AutoPostConfig, vehicles []models.Vehicle, today time.Time, rng *rand.Rand) ([]models.PostUnit, error) {
	if len(vehicles) == 0 {
		return nil, nil
	}
	if len(cfg.DesignUUIDs) == 0 {
		return nil, fmt.Errorf("autopost %s has no designs configured", cfg.ID)
	}

	shuffled := make([]models.Vehicle, len(vehicles))
	copy(shuffled, vehicles)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	designs := make([]string, len(cfg.DesignUUIDs))
	copy(designs, cfg.DesignUUIDs)
	rng.Shuffle(len(designs), func(i, j int) {
		designs[i], designs[j] = designs[j], designs[i]
	})
	design := designs[0]

	groups := partition(shuffled)

	assets := s.renderAll(ctx, tenant, shuffled, design)

	now := time.Now()
	var posts []models.PostUnit
	for _, group := range groups {
		children := s.buildChildren(group.vehicles, assets, cfg, rng)
		if len(children) == 0 {
			log.Printf("AutoPost %s: dropping %s with no rendered children", cfg.ID, group.postType)
			continue
		}

		posts = append(posts, models.PostUnit{
			ID:             uuid.New(),
			TenantID:       tenant.ID,
			AutoPostID:     cfg.ID,
			Type:           group.postType,
			Subject:        randomSubject(cfg.CollectionName, rng),
			Channels:       cfg.Channels,
			CollectionName: cfg.CollectionName,
			PostingType:    PostingType(cfg.Channels),
			Children:       children,
			Status:         models.PostStatusPending,
			CreatedAt:      now,
		})
	}

	slots := Schedule(today, len(posts), rng)
	for i := range posts {
		posts[i].ScheduledDate = slots[i]
		posts[i].Text = buildPostText(&posts[i])
	}

	return posts, nil
}

type postGroup struct {
	postType string
	vehicles []models.Vehicle
}

// partition splits vehicles into full carousels of maxCarsPerCarousel, one
// trailing carousel when the remainder is large enough, and single posts
// otherwise. Carousels come before singles in the schedule.
func partition(vehicles []models.Vehicle) []postGroup {
	var groups []postGroup

	full := len(vehicles) / maxCarsPerCarousel
	for i := 0; i < full; i++ {
		start := i * maxCarsPerCarousel
		groups = append(groups, postGroup{
			postType: models.PostTypeCarousel,
			vehicles: vehicles[start : start+maxCarsPerCarousel],
		})
	}

	rest := vehicles[full*maxCarsPerCarousel:]
	if len(rest) == 0 {
		return groups
	}
	if len(rest) >= minCarsForCarousel {
		groups = append(groups, postGroup{postType: models.PostTypeCarousel, vehicles: rest})
		return groups
	}
	for i := range rest {
		groups = append(groups, postGroup{postType: models.PostTypeSingle, vehicles: rest[i : i+1]})
	}
	return groups
}

type assetResult struct {
	url string
	err error
}

// renderAll issues every vehicle's render concurrently; the shared queue
// serializes the actual external calls.
func (s *AutoPostService) renderAll(ctx context.Context, tenant *models.Tenant, vehicles []models.Vehicle, design string) map[string]assetResult {
	results := make(map[string]assetResult, len(vehicles))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := range vehicles {
		v := vehicles[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := s.queue.Enqueue(ctx, render.Request{
				TenantID:      tenant.ID.String(),
				VehicleID:     v.ID,
				TemplateID:    design,
				Modifications: render.FormatVehicleData(&v),
			})
			mu.Lock()
			results[v.ID] = assetResult{url: url, err: err}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

func (s *AutoPostService) buildChildren(vehicles []models.Vehicle, assets map[string]assetResult, cfg *models.AutoPostConfig, rng *rand.Rand) []models.PostChild {
	var children []models.PostChild
	for i := range vehicles {
		v := &vehicles[i]
		asset := assets[v.ID]
		if asset.err != nil {
			log.Printf("AutoPost %s: skipping vehicle %s, render failed: %v", cfg.ID, v.ID, asset.err)
			continue
		}

		children = append(children, models.PostChild{
			CaseID:   v.ID,
			Headline: v.DisplayName(),
			Subject:  randomChildSubject(cfg.CollectionName, rng),
			Price:    v.PriceInt,
			Images:   []string{asset.url},
			CaseURL:  v.URL,
		})
	}
	return children
}

func buildPostText(post *models.PostUnit) string {
	var b strings.Builder
	b.WriteString(post.Subject)
	for i := range post.Children {
		b.WriteString("\n")
		b.WriteString(post.Children[i].Headline)
		if post.Children[i].CaseURL != "" {
			b.WriteString(" – ")
			b.WriteString(post.Children[i].CaseURL)
		}
	}
	return b.String()
}

func timelineEntries(posts []models.PostUnit) []models.TimelineEntry {
	var entries []models.TimelineEntry
	for i := range posts {
		p := &posts[i]
		for j := range p.Children {
			entries = append(entries, models.TimelineEntry{
				ID:             uuid.New(),
				TenantID:       p.TenantID,
				VehicleID:      p.Children[j].CaseID,
				Headline:       p.Children[j].Headline,
				PostType:       p.Type,
				CollectionName: p.CollectionName,
				ScheduledDate:  p.ScheduledDate,
				CreatedAt:      p.CreatedAt,
			})
		}
	}
	return entries
}
