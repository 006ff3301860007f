package calibration

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"blinkos/store"
)

var (
	profilePrefix = store.Key{"profile"}
	activeKey     = store.Key{"prefs", "active_profile"}
)

// Repository persists profiles in the key-value store.
type Repository struct {
	kv *store.Store
}

func NewRepository(kv *store.Store) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) Save(ctx context.Context, p *Profile) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, append(profilePrefix, p.ID), data)
}

func (r *Repository) Get(ctx context.Context, id string) (*Profile, error) {
	data, err := r.kv.Get(ctx, append(profilePrefix, id))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", id, err)
	}
	return Decode(data)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if active, err := r.ActiveID(ctx); err == nil && active == id {
		if err := r.kv.Delete(ctx, activeKey); err != nil {
			return err
		}
	}
	return r.kv.Delete(ctx, append(profilePrefix, id))
}

// List returns stored profiles, newest first. Records that fail to decode
// are skipped with their error collected.
func (r *Repository) List(ctx context.Context) ([]*Profile, error) {
	var out []*Profile
	var errs []error
	for e, err := range r.kv.List(ctx, profilePrefix) {
		if err != nil {
			return nil, err
		}
		p, err := Decode(e.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Key, err))
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, errors.Join(errs...)
}

func (r *Repository) SetActive(ctx context.Context, id string) error {
	return r.kv.Set(ctx, activeKey, []byte(id))
}

func (r *Repository) ActiveID(ctx context.Context) (string, error) {
	data, err := r.kv.Get(ctx, activeKey)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Active returns the profile marked active, or store.ErrNotFound.
func (r *Repository) Active(ctx context.Context) (*Profile, error) {
	id, err := r.ActiveID(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}
