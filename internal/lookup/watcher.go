package lookup

import (
	"context"
	"log"
	"time"

	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/util/workqueue"

	"github.com/HamStudy/gridwatch/internal/k8s"
)

// Change reports that the configmap behind a group was added, modified or
// deleted.
type Change struct {
	Group string
	Type  watch.EventType
}

// Watcher follows labelled configmaps and drops stale tables from the
// service cache as they change.
type Watcher struct {
	client    *k8s.Client
	namespace string
	prefix    string
	service   *Service
	backoff   workqueue.RateLimiter
	changes   chan Change
}

// NewWatcher creates a watcher. Run starts it.
func NewWatcher(client *k8s.Client, namespace, prefix string, service *Service) *Watcher {
	return &Watcher{
		client:    client,
		namespace: namespace,
		prefix:    prefix,
		service:   service,
		backoff:   workqueue.NewItemExponentialFailureRateLimiter(500*time.Millisecond, 30*time.Second),
		changes:   make(chan Change, 16),
	}
}

// Changes delivers one Change per relevant event. It is closed when Run
// returns.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Run watches until ctx is done, reopening the watch with exponential
// backoff whenever it ends or fails.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.changes)

	for {
		err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		delay := w.backoff.When(w.namespace)
		if err != nil {
			log.Printf("lookup: watch on %s failed, retrying in %v: %v", w.namespace, delay, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (w *Watcher) watchOnce(ctx context.Context) error {
	wi, err := w.client.WatchConfigMaps(ctx, w.namespace, GroupLabel+"=true")
	if err != nil {
		return err
	}
	defer wi.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-wi.ResultChan():
			if !ok {
				return nil
			}
			if ev.Type == watch.Error {
				return apierrors.FromObject(ev.Object)
			}

			cm, ok := ev.Object.(*v1.ConfigMap)
			if !ok || cm.Labels[GroupLabel] != "true" {
				continue
			}
			w.backoff.Forget(w.namespace)

			group := GroupOf(cm, w.prefix)
			if group == "" {
				continue
			}
			w.service.Invalidate(group)

			select {
			case w.changes <- Change{Group: group, Type: ev.Type}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
