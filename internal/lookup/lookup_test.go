package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/HamStudy/gridwatch/internal/k8s"
)

func lookupConfigMap(name string, data map[string]string) *v1.ConfigMap {
	return &v1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "gridwatch",
			Labels:    map[string]string{GroupLabel: "true"},
		},
		Data: data,
	}
}

func newTestSource(objects ...*v1.ConfigMap) *ConfigMapSource {
	clientset := fake.NewSimpleClientset()
	for _, obj := range objects {
		_ = clientset.Tracker().Add(obj)
	}
	client := k8s.NewClientForInterface(clientset, k8s.Session{User: "test"})
	return NewConfigMapSource(client, "gridwatch", "lookup-")
}

func TestConfigMapSourceFetch(t *testing.T) {
	source := newTestSource(
		lookupConfigMap("lookup-status", map[string]string{
			ItemsKey: "- code: P\n  label: Pending\n- code: A\n  label: Active\n",
		}),
		lookupConfigMap("lookup-yes-no", map[string]string{"Y": "Yes", "N": "No"}),
	)
	ctx := context.Background()

	items, err := source.Fetch(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, []Item{{"P", "Pending"}, {"A", "Active"}}, items, "items.yaml keeps its order")

	items, err = source.Fetch(ctx, "yes-no")
	require.NoError(t, err)
	assert.Equal(t, []Item{{"N", "No"}, {"Y", "Yes"}}, items, "plain data is ordered by code")

	_, err = source.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestConfigMapSourceGroups(t *testing.T) {
	renamed := lookupConfigMap("lookup-x1", nil)
	renamed.Annotations = map[string]string{GroupAnnotation: "priority"}
	unlabelled := lookupConfigMap("lookup-hidden", nil)
	unlabelled.Labels = nil

	source := newTestSource(
		lookupConfigMap("lookup-status", nil),
		renamed,
		unlabelled,
	)

	groups, err := source.Groups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"priority", "status"}, groups)
}

func TestParseConfigMapErrors(t *testing.T) {
	_, err := ParseConfigMap(lookupConfigMap("bad", map[string]string{ItemsKey: "{not a list"}))
	assert.Error(t, err)

	_, err = ParseConfigMap(lookupConfigMap("nocode", map[string]string{ItemsKey: "- label: x\n"}))
	assert.ErrorContains(t, err, "has no code")
}

type stubSource struct {
	items  map[string][]Item
	err    error
	calls  int
	groups []string
}

func (s *stubSource) Fetch(_ context.Context, group string) ([]Item, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	items, ok := s.items[group]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return items, nil
}

func (s *stubSource) Groups(context.Context) ([]string, error) {
	return s.groups, s.err
}

func TestServiceCachesAndRefreshes(t *testing.T) {
	src := &stubSource{items: map[string][]Item{"status": {{"A", "Active"}}}}
	svc := NewService(src, ServiceOptions{CacheTTL: time.Minute})
	ctx := context.Background()

	first := svc.Get(ctx, "status")
	require.NoError(t, first.Err)
	assert.False(t, first.Cached)

	second := svc.Get(ctx, "status")
	assert.True(t, second.Cached)
	assert.Equal(t, 1, src.calls)

	svc.Refresh(ctx, "status")
	assert.Equal(t, 2, src.calls)

	m := svc.Metrics().Snapshot()
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
}

func TestServiceFallback(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused"), groups: nil}
	svc := NewService(src, ServiceOptions{
		Fallbacks: map[string][]Item{"yes-no": {{"Y", "Yes"}, {"N", "No"}}},
	})
	ctx := context.Background()

	res := svc.Get(ctx, "yes-no")
	assert.True(t, res.Degraded)
	assert.Error(t, res.Err)
	assert.Len(t, res.Items, 2)

	res = svc.Get(ctx, "status")
	assert.False(t, res.Degraded)
	assert.Error(t, res.Err)
	assert.Empty(t, res.Items)

	groups, err := svc.Groups(ctx)
	assert.Error(t, err)
	assert.Equal(t, []string{"yes-no"}, groups)
}

func TestServiceGroupsMerge(t *testing.T) {
	src := &stubSource{groups: []string{"status", "priority"}}
	svc := NewService(src, ServiceOptions{
		Fallbacks: map[string][]Item{"status": {{"A", "Active"}}, "yes-no": {{"Y", "Yes"}}},
	})

	groups, err := svc.Groups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"priority", "status", "yes-no"}, groups)
}

func TestCacheTTLAndEviction(t *testing.T) {
	now := time.Unix(0, 0)
	c := NewCache(2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", []Item{{"1", "one"}})
	now = now.Add(time.Second)
	c.Set("b", []Item{{"2", "two"}})
	now = now.Add(time.Second)
	_, ok := c.Get("a")
	require.True(t, ok)

	now = now.Add(time.Second)
	c.Set("c", nil)
	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, int64(1), c.Metrics().Snapshot().Evictions)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "entries expire after the ttl")
}

func TestFilter(t *testing.T) {
	items := []Item{{"A", "Active"}, {"I", "Inactive"}, {"P", "Pending"}}
	assert.Equal(t, items, Filter(items, ""))
	assert.Equal(t, []Item{{"A", "Active"}, {"I", "Inactive"}}, Filter(items, "act"))
	assert.Equal(t, []Item{{"P", "Pending"}}, Filter(items, "p"))
}
