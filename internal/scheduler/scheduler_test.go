package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hobbyfetch/cardharvest/internal/models"
)

type fakeQuota struct {
	remaining int
	err       error
	calls     int
}

func (q *fakeQuota) BrowseRemaining(context.Context) (int, error) {
	q.calls++
	return q.remaining, q.err
}

type fakeMarkers struct {
	sources []models.Source
	err     error
}

func (m *fakeMarkers) SetLastUpdate(_ context.Context, source models.Source, _ time.Time) error {
	m.sources = append(m.sources, source)
	return m.err
}

type fakeHarvester struct {
	source    models.Source
	persisted int
	err       error
	runs      int
}

func (h *fakeHarvester) Source() models.Source { return h.source }

func (h *fakeHarvester) Run(context.Context) (int, error) {
	h.runs++
	return h.persisted, h.err
}

type fakeNotifier struct {
	results [][]HarvestResult
}

func (n *fakeNotifier) SendCycleSummary(_ time.Time, results []HarvestResult) error {
	n.results = append(n.results, results)
	return nil
}

func newTestScheduler(quota *fakeQuota, markers *fakeMarkers, notifier Notifier, harvesters ...Harvester) *Scheduler {
	s := New(quota, markers, harvesters, notifier, time.Hour)
	s.sleep = func(context.Context, time.Duration) {}
	return s
}

func TestRunCycleSkipsWhenQuotaExhausted(t *testing.T) {
	quota := &fakeQuota{remaining: 0}
	markers := &fakeMarkers{}
	h := &fakeHarvester{source: models.SourceVinted}

	newTestScheduler(quota, markers, nil, h).runCycle(context.Background())

	if h.runs != 0 {
		t.Error("expected no harvest when quota is exhausted")
	}
	if len(markers.sources) != 0 {
		t.Errorf("expected no markers written, got %v", markers.sources)
	}
}

func TestRunCycleProceedsWhenQuotaCheckFails(t *testing.T) {
	quota := &fakeQuota{err: fmt.Errorf("analytics unavailable")}
	markers := &fakeMarkers{}
	h := &fakeHarvester{source: models.SourceVinted, persisted: 3}

	newTestScheduler(quota, markers, nil, h).runCycle(context.Background())

	if h.runs != 1 {
		t.Error("an unknown quota state must not block the cycle")
	}
}

func TestRunCycleIsolatesHarvestFailures(t *testing.T) {
	quota := &fakeQuota{remaining: 500}
	markers := &fakeMarkers{}
	vinted := &fakeHarvester{source: models.SourceVinted, err: fmt.Errorf("auth rejected")}
	catawiki := &fakeHarvester{source: models.SourceCatawiki, persisted: 5}
	notifier := &fakeNotifier{}

	newTestScheduler(quota, markers, notifier, vinted, catawiki).runCycle(context.Background())

	if catawiki.runs != 1 {
		t.Error("a failing source must not block its sibling")
	}
	if len(notifier.results) != 1 {
		t.Fatalf("expected one summary, got %d", len(notifier.results))
	}
	results := notifier.results[0]
	if len(results) != 2 {
		t.Fatalf("expected 2 results in summary, got %d", len(results))
	}
	if results[0].Err == nil || results[1].Err != nil {
		t.Errorf("unexpected result errors: %v / %v", results[0].Err, results[1].Err)
	}
	if results[1].Persisted != 5 {
		t.Errorf("expected 5 persisted for catawiki, got %d", results[1].Persisted)
	}
}

func TestRunCycleWritesMarkersBeforeHarvests(t *testing.T) {
	quota := &fakeQuota{remaining: 500}
	markers := &fakeMarkers{}
	h := &fakeHarvester{source: models.SourceCatawiki, persisted: 1}

	newTestScheduler(quota, markers, nil, h).runCycle(context.Background())

	if len(markers.sources) != 1 || markers.sources[0] != models.SourceCatawiki {
		t.Errorf("expected catawiki marker written, got %v", markers.sources)
	}
}

func TestRunCycleRunsDespiteMarkerFailure(t *testing.T) {
	quota := &fakeQuota{remaining: 500}
	markers := &fakeMarkers{err: fmt.Errorf("meta collection unavailable")}
	h := &fakeHarvester{source: models.SourceVinted, persisted: 2}

	newTestScheduler(quota, markers, nil, h).runCycle(context.Background())

	if h.runs != 1 {
		t.Error("a marker write failure must not cancel the harvest")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	quota := &fakeQuota{remaining: 500}
	markers := &fakeMarkers{}
	h := &fakeHarvester{source: models.SourceVinted}

	s := newTestScheduler(quota, markers, nil, h)
	ctx, cancel := context.WithCancel(context.Background())
	s.sleep = func(context.Context, time.Duration) { cancel() }

	if err := s.Run(ctx); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if h.runs != 1 {
		t.Errorf("expected exactly one cycle before cancellation, got %d", h.runs)
	}
}
