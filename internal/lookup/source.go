// Package lookup fetches ordered {code, label} lists ("lookup tables") that
// feed pickers and tables across the application.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/HamStudy/gridwatch/internal/k8s"
)

const (
	// GroupLabel marks configmaps that hold a lookup table.
	GroupLabel = "gridwatch.io/lookup"

	// GroupAnnotation overrides the group code derived from the name.
	GroupAnnotation = "gridwatch.io/group"

	// ItemsKey holds an ordered YAML list of items. Without it every data key
	// becomes an item, ordered by code.
	ItemsKey = "items.yaml"
)

// ErrGroupNotFound is returned when no table exists for a group code.
var ErrGroupNotFound = errors.New("lookup group not found")

// Item is one row of a lookup table.
type Item struct {
	Code  string `yaml:"code"`
	Label string `yaml:"label"`
}

// Matches reports whether the item contains query in its code or label,
// ignoring case.
func (i Item) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(i.Code), q) ||
		strings.Contains(strings.ToLower(i.Label), q)
}

// Source fetches lookup tables.
type Source interface {
	Fetch(ctx context.Context, group string) ([]Item, error)
	Groups(ctx context.Context) ([]string, error)
}

// ConfigMapSource reads lookup tables from configmaps named <prefix><group>.
type ConfigMapSource struct {
	client    *k8s.Client
	namespace string
	prefix    string
}

// NewConfigMapSource creates a source over an existing client.
func NewConfigMapSource(client *k8s.Client, namespace, prefix string) *ConfigMapSource {
	return &ConfigMapSource{
		client:    client,
		namespace: namespace,
		prefix:    prefix,
	}
}

// Fetch returns the items of group in table order.
func (s *ConfigMapSource) Fetch(ctx context.Context, group string) ([]Item, error) {
	cm, err := s.client.GetConfigMap(ctx, s.namespace, s.prefix+group)
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lookup %s: %w", group, err)
	}
	return ParseConfigMap(cm)
}

// Groups lists the group codes of all labelled configmaps, sorted.
func (s *ConfigMapSource) Groups(ctx context.Context) ([]string, error) {
	cms, err := s.client.ListConfigMaps(ctx, s.namespace, GroupLabel+"=true")
	if err != nil {
		return nil, fmt.Errorf("failed to list lookup groups: %w", err)
	}

	groups := make([]string, 0, len(cms))
	for i := range cms {
		if g := GroupOf(&cms[i], s.prefix); g != "" {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)
	return groups, nil
}

// GroupOf returns the group code a configmap holds, or "" when its name does
// not carry prefix and no annotation names the group.
func GroupOf(cm *v1.ConfigMap, prefix string) string {
	if g := cm.Annotations[GroupAnnotation]; g != "" {
		return g
	}
	if strings.HasPrefix(cm.Name, prefix) {
		return strings.TrimPrefix(cm.Name, prefix)
	}
	return ""
}

// ParseConfigMap turns configmap data into items.
func ParseConfigMap(cm *v1.ConfigMap) ([]Item, error) {
	if raw, ok := cm.Data[ItemsKey]; ok {
		var items []Item
		if err := yaml.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("failed to parse %s in %s: %w", ItemsKey, cm.Name, err)
		}
		for i, item := range items {
			if item.Code == "" {
				return nil, fmt.Errorf("%s in %s: item %d has no code", ItemsKey, cm.Name, i)
			}
		}
		return items, nil
	}

	items := make([]Item, 0, len(cm.Data))
	for code, label := range cm.Data {
		items = append(items, Item{Code: code, Label: label})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Code < items[j].Code
	})
	return items, nil
}
