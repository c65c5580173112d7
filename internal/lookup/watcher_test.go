package lookup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/client-go/util/workqueue"

	"github.com/HamStudy/gridwatch/internal/k8s"
)

// newTestWatcher returns a watcher whose every watch call hands a fresh fake
// watcher to the test.
func newTestWatcher(t *testing.T, svc *Service) (*Watcher, <-chan *watch.FakeWatcher) {
	t.Helper()

	opened := make(chan *watch.FakeWatcher, 4)
	clientset := fake.NewSimpleClientset()
	clientset.PrependWatchReactor("configmaps", func(k8stesting.Action) (bool, watch.Interface, error) {
		fw := watch.NewFake()
		opened <- fw
		return true, fw, nil
	})

	client := k8s.NewClientForInterface(clientset, k8s.Session{})
	w := NewWatcher(client, "gridwatch", "lookup-", svc)
	w.backoff = workqueue.NewItemExponentialFailureRateLimiter(time.Millisecond, 10*time.Millisecond)
	return w, opened
}

func nextWatcher(t *testing.T, opened <-chan *watch.FakeWatcher) *watch.FakeWatcher {
	t.Helper()
	select {
	case fw := <-opened:
		return fw
	case <-time.After(2 * time.Second):
		t.Fatal("watch was not opened")
		return nil
	}
}

func nextChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c := <-w.Changes():
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
		return Change{}
	}
}

func TestWatcherInvalidatesChangedGroup(t *testing.T) {
	src := &stubSource{items: map[string][]Item{"status": {{"A", "Active"}}}}
	svc := NewService(src, ServiceOptions{CacheTTL: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Get(ctx, "status")
	require.Equal(t, 1, src.calls)

	w, opened := newTestWatcher(t, svc)
	go w.Run(ctx)
	fw := nextWatcher(t, opened)

	unlabelled := lookupConfigMap("lookup-other", nil)
	unlabelled.Labels = nil
	fw.Add(unlabelled)
	fw.Modify(lookupConfigMap("lookup-status", map[string]string{"A": "Archived"}))

	c := nextChange(t, w)
	assert.Equal(t, Change{Group: "status", Type: watch.Modified}, c)

	svc.Get(ctx, "status")
	assert.Equal(t, 2, src.calls, "modified group is fetched again")
}

func TestWatcherUsesGroupAnnotation(t *testing.T) {
	svc := NewService(&stubSource{}, ServiceOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, opened := newTestWatcher(t, svc)
	go w.Run(ctx)
	fw := nextWatcher(t, opened)

	cm := lookupConfigMap("lookup-x1", nil)
	cm.Annotations = map[string]string{GroupAnnotation: "priority"}
	fw.Delete(cm)

	assert.Equal(t, Change{Group: "priority", Type: watch.Deleted}, nextChange(t, w))
}

func TestWatcherReconnects(t *testing.T) {
	svc := NewService(&stubSource{}, ServiceOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, opened := newTestWatcher(t, svc)
	go w.Run(ctx)

	first := nextWatcher(t, opened)
	first.Stop()

	second := nextWatcher(t, opened)
	second.Add(lookupConfigMap("lookup-status", nil))
	assert.Equal(t, "status", nextChange(t, w).Group)
}

func TestWatcherReconnectsAfterErrorEvent(t *testing.T) {
	svc := NewService(&stubSource{}, ServiceOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, opened := newTestWatcher(t, svc)
	go w.Run(ctx)

	first := nextWatcher(t, opened)
	first.Error(&metav1.Status{
		Status:  metav1.StatusFailure,
		Reason:  metav1.StatusReasonExpired,
		Message: "resource version too old",
		Code:    410,
	})

	second := nextWatcher(t, opened)
	second.Add(lookupConfigMap("lookup-yes-no", nil))
	assert.Equal(t, "yes-no", nextChange(t, w).Group)
}

func TestWatcherClosesChangesOnCancel(t *testing.T) {
	svc := NewService(&stubSource{}, ServiceOptions{})
	ctx, cancel := context.WithCancel(context.Background())

	w, opened := newTestWatcher(t, svc)
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	nextWatcher(t, opened)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	_, ok := <-w.Changes()
	assert.False(t, ok)
}
