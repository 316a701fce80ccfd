package pipeline

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/toftmakemore/makemoreV2/config"
	"github.com/toftmakemore/makemoreV2/inventory"
	"github.com/toftmakemore/makemoreV2/models"
	"github.com/toftmakemore/makemoreV2/services"
	"github.com/toftmakemore/makemoreV2/storage"
)

// ConfigError marks a tenant whose configuration cannot produce a run, as
// opposed to a transient source or storage failure.
type ConfigError struct {
	TenantID string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tenant %s misconfigured: %s", e.TenantID, e.Reason)
}

// DomainStore is the slice of the Postgres store the pipeline needs.
type DomainStore interface {
	GetActiveTenants(ctx context.Context) ([]models.Tenant, error)
	GetExcludedVehicleIDs(ctx context.Context, tenantID uuid.UUID) (map[string]bool, error)
	SaveSnapshot(ctx context.Context, tenantID uuid.UUID, day time.Time, vehicles []models.Vehicle) error
	GetSnapshot(ctx context.Context, tenantID uuid.UUID, day time.Time) ([]models.Vehicle, error)
	GetLatestSnapshotDay(ctx context.Context, tenantID uuid.UUID, before time.Time) (time.Time, error)
	GetActiveAutoPosts(ctx context.Context, tenantID uuid.UUID) ([]models.AutoPostConfig, error)
	UpdateAutoPostCount(ctx context.Context, id uuid.UUID, count int) error
}

// Orchestrator drives the daily pipeline: fetch, classify, persist category
// sets, generate posts. Each tenant runs independently; one tenant's failure
// never stops the others.
type Orchestrator struct {
	cfg        *config.Config
	ops        *storage.SQLiteStore
	store      DomainStore
	categories *services.CategoryService
	autopost   *services.AutoPostService
	fetchers   map[string]inventory.Fetcher
	paused     bool

	// newRng is swappable so tests can pin the seed.
	newRng func() *rand.Rand
}

func NewOrchestrator(cfg *config.Config, ops *storage.SQLiteStore, store DomainStore, categories *services.CategoryService, autopost *services.AutoPostService) *Orchestrator {
	fetchers := make(map[string]inventory.Fetcher)
	for id, sourceCfg := range cfg.Sources {
		fetchers[id] = inventory.NewFetcher(sourceCfg)
	}

	return &Orchestrator{
		cfg:        cfg,
		ops:        ops,
		store:      store,
		categories: categories,
		autopost:   autopost,
		fetchers:   fetchers,
		newRng: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// SetFetcher overrides the fetcher for one source id.
func (o *Orchestrator) SetFetcher(sourceID string, f inventory.Fetcher) {
	o.fetchers[sourceID] = f
}

// RunAll runs the pipeline for every active tenant. Per-tenant failures are
// logged and counted but never abort the sweep.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused {
		log.Println("Pipeline is paused, skipping run")
		return nil
	}

	tenants, err := o.store.GetActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("load tenants: %w", err)
	}

	log.Printf("Pipeline sweep: %d active tenants", len(tenants))

	failed := 0
	for i := range tenants {
		if err := o.RunTenant(ctx, &tenants[i]); err != nil {
			log.Printf("Tenant %s (%s) failed: %v", tenants[i].Name, tenants[i].ID, err)
			failed++
		}
	}

	if failed > 0 {
		log.Printf("Pipeline sweep finished: %d/%d tenants failed", failed, len(tenants))
	}
	return nil
}

// RunTenantByName finds an active tenant by name or dealer id and runs it.
func (o *Orchestrator) RunTenantByName(ctx context.Context, name string) error {
	tenants, err := o.store.GetActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("load tenants: %w", err)
	}
	for i := range tenants {
		if tenants[i].Name == name || tenants[i].DealerID == name {
			return o.RunTenant(ctx, &tenants[i])
		}
	}
	return fmt.Errorf("no active tenant %q", name)
}

// RunTenant runs the full pipeline for one tenant.
func (o *Orchestrator) RunTenant(ctx context.Context, tenant *models.Tenant) error {
	run := &models.PipelineRun{
		TenantID:  tenant.ID.String(),
		DealerID:  tenant.DealerID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.ops.CreateRun(run)
	if err != nil {
		return err
	}
	run.ID = runID

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		if run.Status == models.RunStatusRunning {
			run.Status = models.RunStatusCompleted
		}
		o.ops.UpdateRun(run)
		o.ops.UpdateTenantStats(run.TenantID)
	}()

	err = o.runSteps(ctx, tenant, run)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Run failed at %s: %v", run.FailedStep, err), run.TenantID)
		return err
	}

	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d vehicles, %d new, %d price changes, %d sold, %d rotations, %d posts",
			run.VehiclesFound, run.NewCount, run.PriceCount, run.SoldCount, run.RotationCount, run.PostsCreated),
		run.TenantID)
	return nil
}

func (o *Orchestrator) runSteps(ctx context.Context, tenant *models.Tenant, run *models.PipelineRun) error {
	fetcher, ok := o.fetchers[tenant.SourceID]
	if !ok {
		run.FailedStep = "fetch"
		return &ConfigError{TenantID: tenant.ID.String(), Reason: fmt.Sprintf("unknown source %q", tenant.SourceID)}
	}

	// Fetch. A failed fetch leaves the previous snapshot untouched so
	// tomorrow's diff is against the last good day, not an empty one.
	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Fetching inventory from %s", tenant.SourceID), run.TenantID)
	current, err := fetcher.Fetch(ctx, tenant.DealerID)
	if err != nil {
		run.FailedStep = "fetch"
		return err
	}
	run.VehiclesFound = len(current)

	excluded, err := o.store.GetExcludedVehicleIDs(ctx, tenant.ID)
	if err != nil {
		run.FailedStep = "exclude"
		return err
	}
	current = filterExcluded(current, excluded)

	// Diff against the most recent prior snapshot.
	today := truncateDay(time.Now())
	previous, err := o.loadPreviousSnapshot(ctx, tenant.ID, today)
	if err != nil {
		run.FailedStep = "diff"
		return err
	}
	diff := services.Diff(current, previous)
	run.NewCount = len(diff.NewVehicles)
	run.PriceCount = len(diff.PriceChanged)
	run.SoldCount = len(diff.SoldVehicles)

	if err := o.store.SaveSnapshot(ctx, tenant.ID, today, current); err != nil {
		run.FailedStep = "snapshot"
		return err
	}

	autoposts, err := o.store.GetActiveAutoPosts(ctx, tenant.ID)
	if err != nil {
		run.FailedStep = "autoposts"
		return err
	}

	sets := o.buildCategorySets(current, diff, autoposts, today, run)

	for collection, vehicles := range sets {
		if _, err := o.categories.Replace(ctx, tenant.ID, collection, vehicles); err != nil {
			run.FailedStep = "categories"
			return err
		}
		o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Category %s: %d vehicles", collection, len(vehicles)), run.TenantID)
	}

	// Posts. One bad autopost config is logged and skipped, the rest of the
	// tenant's configs still run.
	for i := range autoposts {
		cfg := &autoposts[i]
		cfg.Normalize()

		vehicles, ok := sets[cfg.CollectionName]
		if !ok {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("AutoPost %s references unknown collection %q", cfg.ID, cfg.CollectionName), run.TenantID)
			continue
		}

		if err := o.store.UpdateAutoPostCount(ctx, cfg.ID, len(vehicles)); err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("AutoPost %s: count update failed: %v", cfg.ID, err), run.TenantID)
		}

		if len(vehicles) == 0 {
			continue
		}

		posts, err := o.autopost.Run(ctx, tenant, cfg, vehicles, today, o.newRng())
		if err != nil {
			run.ErrorsCount++
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("AutoPost %s failed: %v", cfg.ID, err), run.TenantID)
			continue
		}
		run.PostsCreated += len(posts)
	}

	return nil
}

// loadPreviousSnapshot returns the latest snapshot strictly before today, or
// nil on a tenant's first ever run.
func (o *Orchestrator) loadPreviousSnapshot(ctx context.Context, tenantID uuid.UUID, today time.Time) ([]models.Vehicle, error) {
	day, err := o.store.GetLatestSnapshotDay(ctx, tenantID, today)
	if err != nil {
		return nil, err
	}
	if day.IsZero() {
		return nil, nil
	}
	return o.store.GetSnapshot(ctx, tenantID, day)
}

// buildCategorySets computes the raw mirror plus whichever derived sets an
// active autopost actually references. Unreferenced sets are skipped, and
// therefore left stale on purpose.
func (o *Orchestrator) buildCategorySets(current []models.Vehicle, diff models.DiffResult, autoposts []models.AutoPostConfig, today time.Time, run *models.PipelineRun) map[string][]models.Vehicle {
	referenced := make(map[string]bool)
	for i := range autoposts {
		referenced[autoposts[i].CollectionName] = true
	}

	sets := map[string][]models.Vehicle{
		models.CollectionDealerCars: current,
	}
	if referenced[models.CollectionNewVehicles] {
		sets[models.CollectionNewVehicles] = diff.NewVehicles
	}
	if referenced[models.CollectionNewPriceVehicles] {
		sets[models.CollectionNewPriceVehicles] = diff.PriceChanged
	}
	if referenced[models.CollectionSoldVehicles] {
		sets[models.CollectionSoldVehicles] = diff.SoldVehicles
	}
	if referenced[models.CollectionDaysForSale] {
		sets[models.CollectionDaysForSale] = o.rotationSet(current, autoposts, today, run)
	}
	return sets
}

func (o *Orchestrator) rotationSet(current []models.Vehicle, autoposts []models.AutoPostConfig, today time.Time, run *models.PipelineRun) []models.Vehicle {
	policy := services.RotationPolicy{UseAutoInterval: true}
	for i := range autoposts {
		if autoposts[i].CollectionName == models.CollectionDaysForSale {
			policy = services.RotationPolicy{
				UseAutoInterval: autoposts[i].UseAutoInterval,
				ManualInterval:  autoposts[i].ManualInterval,
			}
			break
		}
	}

	interval := services.CalculateInterval(len(current), policy)
	records := services.CalculateRotation(current, today, interval)
	run.RotationCount = len(records)

	vehicles := make([]models.Vehicle, 0, len(records))
	for i := range records {
		vehicles = append(vehicles, records[i].Vehicle)
	}
	return vehicles
}

func filterExcluded(vehicles []models.Vehicle, excluded map[string]bool) []models.Vehicle {
	if len(excluded) == 0 {
		return vehicles
	}
	kept := vehicles[:0]
	for i := range vehicles {
		if !excluded[vehicles[i].ID] {
			kept = append(kept, vehicles[i])
		}
	}
	return kept
}

func (o *Orchestrator) HandleCommand(cmd *models.Command) error {
	params, err := o.ops.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch cmd.Command {
	case models.CmdRunNow:
		return o.RunAll(ctx)
	case models.CmdRunTenant:
		if params.Tenant != "" {
			return o.RunTenantByName(ctx, params.Tenant)
		}
		return o.RunAll(ctx)
	case models.CmdPause:
		o.paused = true
		log.Println("Pipeline paused")
	case models.CmdResume:
		o.paused = false
		log.Println("Pipeline resumed")
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, tenantID string) {
	log.Printf("[%s] %s: %s", level, tenantID, message)
	o.ops.Log(&runID, level, message, tenantID)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
