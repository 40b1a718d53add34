package reconciler

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/realtime"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
	"golang.org/x/sync/errgroup"
)

// ImpactGateway is the fetch side of the impact dashboard.
// *service.ImpactService satisfies it.
type ImpactGateway interface {
	FetchCurrentMetrics(ctx context.Context) (*models.ImpactMetrics, error)
	FetchRecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error)
}

// ImpactSnapshot is a consistent copy of the impact dashboard state.
type ImpactSnapshot struct {
	Metrics      *models.ImpactMetrics   `json:"metrics"`
	Activities   []models.RecentActivity `json:"activities"`
	Loading      bool                    `json:"loading"`
	State        string                  `json:"state"`
	Error        string                  `json:"error,omitempty"`
	Reconnecting bool                    `json:"reconnecting"`

	Err error `json:"-"`
}

// ImpactReconciler follows the metrics and activity collections. The
// metrics snapshot is replaced wholesale by every create or update; the
// activity feed is kept newest first and never longer than
// models.RecentActivityLimit.
type ImpactReconciler struct {
	*session

	gateway       ImpactGateway
	source        realtime.Source
	metricsTopic  string
	activityTopic string
	decoder       *realtime.Decoder

	// guarded by session.mu
	metrics    *models.ImpactMetrics
	activities []models.RecentActivity
}

func NewImpactReconciler(gateway ImpactGateway, source realtime.Source, databaseID, metricsCollectionID, activitiesCollectionID string, backoff realtime.Backoff) *ImpactReconciler {
	r := &ImpactReconciler{
		gateway: gateway,
		source:  source,
		decoder: realtime.NewDecoder(),
	}
	metricsTopic, err := realtime.Topic(databaseID, metricsCollectionID)
	if err != nil {
		log.Printf("[impact] Live metrics disabled: %v", err)
	}
	activityTopic, err := realtime.Topic(databaseID, activitiesCollectionID)
	if err != nil {
		log.Printf("[impact] Live activity feed disabled: %v", err)
	}
	if source == nil {
		r.source = realtime.Inert{}
	}
	r.metricsTopic = metricsTopic
	r.activityTopic = activityTopic
	r.session = newSession("impact", r, backoff)
	return r
}

// Start seeds the dashboard and follows both collections until Stop or
// until ctx ends. Starting a live reconciler again is a no-op.
func (r *ImpactReconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.cancel != nil && (r.state == StateLive || r.state == StateSeeding) {
		r.mu.Unlock()
		return nil
	}
	epoch := r.openLocked(ctx)
	r.mu.Unlock()
	return r.run(ctx, epoch)
}

func (r *ImpactReconciler) Stop() {
	r.stop()
}

func (r *ImpactReconciler) Refresh(ctx context.Context) error {
	return r.restart(ctx)
}

func (r *ImpactReconciler) Snapshot() ImpactSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := ImpactSnapshot{
		Activities:   append([]models.RecentActivity{}, r.activities...),
		Loading:      r.state == StateSeeding,
		State:        r.state.String(),
		Reconnecting: r.reconnecting,
		Err:          r.err,
	}
	if r.metrics != nil {
		m := *r.metrics
		snap.Metrics = &m
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	return snap
}

func (r *ImpactReconciler) subscribe(ctx context.Context, onEvent func(string, realtime.Event), onDrop func(error)) (func(), error) {
	var topics []string
	for _, t := range []string{r.metricsTopic, r.activityTopic} {
		if t != "" {
			topics = append(topics, t)
		}
	}
	return subscribeAll(ctx, r.source, topics, onEvent, onDrop)
}

// fetch loads metrics and activities together. No published metrics is not
// a failure; the dashboard shows an empty snapshot until one arrives.
func (r *ImpactReconciler) fetch(ctx context.Context) (func(), error) {
	var (
		metrics    *models.ImpactMetrics
		activities []models.RecentActivity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := r.gateway.FetchCurrentMetrics(gctx)
		if errors.Is(err, service.ErrNotFound) {
			return nil
		}
		metrics = m
		return err
	})
	g.Go(func() error {
		var err error
		activities, err = r.gateway.FetchRecentActivities(gctx, models.RecentActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return func() {
		r.metrics = metrics
		r.activities = nil
		for _, a := range activities {
			r.upsertActivity(a)
		}
	}, nil
}

func (r *ImpactReconciler) reset() {
	r.metrics = nil
	r.activities = nil
}

func (r *ImpactReconciler) apply(topic string, ev realtime.Event) {
	action := ev.Action()
	switch topic {
	case r.metricsTopic:
		switch action {
		case realtime.ActionCreate, realtime.ActionUpdate:
			var m models.ImpactMetrics
			if err := r.decoder.Decode(ev, &m); err != nil {
				log.Printf("[impact] Rejected metrics event: %v", err)
				return
			}
			r.metrics = &m
		case realtime.ActionDelete:
			if r.metrics != nil && r.metrics.ID == ev.DocumentID() {
				r.metrics = nil
			}
		}
	case r.activityTopic:
		switch action {
		case realtime.ActionCreate, realtime.ActionUpdate:
			var a models.RecentActivity
			if err := r.decoder.Decode(ev, &a); err != nil {
				log.Printf("[impact] Rejected activity event: %v", err)
				return
			}
			r.upsertActivity(a)
		case realtime.ActionDelete:
			id := ev.DocumentID()
			for i := range r.activities {
				if r.activities[i].ID == id {
					r.activities = append(r.activities[:i], r.activities[i+1:]...)
					break
				}
			}
		}
	}
}

// replay needs no special casing: metrics are replaced wholesale and
// activities are upserted by id.
func (r *ImpactReconciler) replay(topic string, ev realtime.Event) {
	r.apply(topic, ev)
}

// upsertActivity inserts or replaces a by id, then restores newest-first
// order and the length bound.
func (r *ImpactReconciler) upsertActivity(a models.RecentActivity) {
	replaced := false
	for i := range r.activities {
		if r.activities[i].ID == a.ID {
			r.activities[i] = a
			replaced = true
			break
		}
	}
	if !replaced {
		r.activities = append(r.activities, a)
	}
	sort.SliceStable(r.activities, func(i, j int) bool {
		return r.activities[i].Timestamp.After(r.activities[j].Timestamp)
	})
	if len(r.activities) > models.RecentActivityLimit {
		r.activities = r.activities[:models.RecentActivityLimit]
	}
}

var _ ImpactGateway = (*service.ImpactService)(nil)
