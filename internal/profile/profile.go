// Package profile resolves who is using the browser and what they left open.
package profile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HamStudy/gridwatch/internal/k8s"
	"github.com/HamStudy/gridwatch/internal/store"
)

// StoreKey is the store key holding the saved profile.
const StoreKey = "profile"

// Namespace seeds profile IDs so the same user always maps to the same ID.
var Namespace = uuid.MustParse("6f1f8b52-5d0e-4c1a-9a43-2b7f2f1c9e10")

// Profile is the resolved user plus their saved preferences.
type Profile struct {
	ID           uuid.UUID `yaml:"id"`
	Username     string    `yaml:"username"`
	DisplayName  string    `yaml:"displayName,omitempty"`
	Context      string    `yaml:"context"`
	Namespace    string    `yaml:"namespace"`
	Overscan     int       `yaml:"overscan,omitempty"`
	LastGroup    string    `yaml:"lastGroup,omitempty"`
	ScrollOffset float64   `yaml:"scrollOffset,omitempty"`
}

// IDFor returns the stable profile ID of username.
func IDFor(username string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(strings.ToLower(username)))
}

// Resolve merges stored preferences over the defaults of session. Identity
// fields always come from the session.
func Resolve(session k8s.Session, stored *Profile) Profile {
	username := session.User
	if username == "" {
		username = "anonymous"
	}

	p := Profile{
		ID:          IDFor(username),
		Username:    username,
		DisplayName: displayName(username),
		Context:     session.Context,
		Namespace:   session.Namespace,
	}
	if session.InCluster {
		p.Context = "in-cluster"
	}

	if stored == nil || stored.ID != p.ID {
		return p
	}
	if stored.DisplayName != "" {
		p.DisplayName = stored.DisplayName
	}
	if stored.Overscan > 0 {
		p.Overscan = stored.Overscan
	}
	p.LastGroup = stored.LastGroup
	p.ScrollOffset = stored.ScrollOffset
	return p
}

// Load reads the saved profile, if any.
func Load(s *store.Store) *Profile {
	return store.GetAs[*Profile](s, StoreKey, nil)
}

// Save writes p to the store.
func Save(s *store.Store, p Profile) error {
	if err := s.Set(StoreKey, p); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Label is the short form shown in the header.
func (p Profile) Label() string {
	if p.Context == "" {
		return p.DisplayName
	}
	return fmt.Sprintf("%s@%s", p.DisplayName, p.Context)
}

// displayName strips the common "system:serviceaccount:" and email suffixes.
func displayName(username string) string {
	name := username
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "@"); i > 0 {
		name = name[:i]
	}
	return name
}
