// Package redis stores carts in Redis as JSON snapshots.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/commercecore/internal/domain/cart"
	"github.com/utafrali/commercecore/internal/domain/identity"
	"github.com/utafrali/commercecore/internal/repository"
	spec "github.com/utafrali/commercecore/internal/specification"
	apperrors "github.com/utafrali/commercecore/pkg/errors"
	"github.com/utafrali/commercecore/pkg/pagination"
)

const (
	keyPrefix = "cart:"
	scanCount = 200
	entity    = "cart"
)

var _ repository.CartRepository = (*CartRepository)(nil)

// CartRepository implements repository.CartRepository using Redis. Each cart
// lives under its own key; the key TTL is the cart's expiry plus a retention
// window so expired carts stay visible to maintenance until purged.
type CartRepository struct {
	client    *redis.Client
	policy    cart.ExpiryPolicy
	retention time.Duration
	opts      []cart.Option
	now       func() time.Time
}

// NewCartRepository creates a new Redis-backed cart repository. opts are
// applied to every restored cart.
func NewCartRepository(client *redis.Client, policy cart.ExpiryPolicy, retention time.Duration, opts ...cart.Option) *CartRepository {
	return &CartRepository{
		client:    client,
		policy:    policy,
		retention: retention,
		opts:      opts,
		now:       time.Now,
	}
}

func key(id identity.CartID) string { return keyPrefix + id.String() }

func (r *CartRepository) ttl(c *cart.Cart) time.Duration {
	ttl := c.ExpiresAt().Sub(r.now()) + r.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *CartRepository) decode(data []byte) (*cart.Cart, error) {
	var snap cart.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	c, err := cart.Restore(snap, r.policy, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("restore cart %s: %w", snap.ID, err)
	}
	return c, nil
}

// FindByID retrieves a cart by ID from Redis.
func (r *CartRepository) FindByID(ctx context.Context, id identity.CartID) (*cart.Cart, error) {
	data, err := r.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound(entity, id.String())
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return r.decode(data)
}

// FindByIDs retrieves the carts that exist, in the order of ids.
func (r *CartRepository) FindByIDs(ctx context.Context, ids []identity.CartID) ([]*cart.Cart, error) {
	if len(ids) == 0 {
		return []*cart.Cart{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return r.load(ctx, keys)
}

func (r *CartRepository) load(ctx context.Context, keys []string) ([]*cart.Cart, error) {
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget carts: %w", err)
	}
	out := make([]*cart.Cart, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		c, err := r.decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Save persists a cart, checking its version inside a WATCH transaction.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	return r.SaveMany(ctx, []*cart.Cart{c})
}

// SaveMany persists all carts in one MULTI/EXEC, or none of them.
func (r *CartRepository) SaveMany(ctx context.Context, carts []*cart.Cart) error {
	if len(carts) == 0 {
		return nil
	}
	keys := make([]string, len(carts))
	payloads := make([][]byte, len(carts))
	for i, c := range carts {
		keys[i] = key(c.ID())
		snap := c.Snapshot()
		snap.Version = c.Version() + 1
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}
		payloads[i] = data
	}

	txf := func(tx *redis.Tx) error {
		for i, c := range carts {
			actual, err := storedVersion(ctx, tx, keys[i])
			if err != nil {
				return err
			}
			if actual != c.Version() {
				return apperrors.Concurrency(entity, c.ID().String(), c.Version(), actual)
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, c := range carts {
				pipe.Set(ctx, keys[i], payloads[i], r.ttl(c))
			}
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txf, keys...); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			c := carts[0]
			actual, _ := storedVersion(ctx, r.client, keys[0])
			return apperrors.Concurrency(entity, c.ID().String(), c.Version(), actual)
		}
		var ce *apperrors.ConcurrencyError
		if errors.As(err, &ce) {
			return err
		}
		return fmt.Errorf("redis save cart: %w", err)
	}

	for _, c := range carts {
		c.SetVersion(c.Version() + 1)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func storedVersion(ctx context.Context, cmd getter, k string) (int, error) {
	data, err := cmd.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get cart version: %w", err)
	}
	var v struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("unmarshal cart version: %w", err)
	}
	return v.Version, nil
}

// Delete removes a cart from Redis.
func (r *CartRepository) Delete(ctx context.Context, id identity.CartID) error {
	n, err := r.client.Del(ctx, key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(entity, id.String())
	}
	return nil
}

// DeleteMany removes the carts that exist and reports how many were removed.
func (r *CartRepository) DeleteMany(ctx context.Context, ids []identity.CartID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del carts: %w", err)
	}
	return int(n), nil
}

// Exists reports whether the cart key is present.
func (r *CartRepository) Exists(ctx context.Context, id identity.CartID) (bool, error) {
	n, err := r.client.Exists(ctx, key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists cart: %w", err)
	}
	return n > 0, nil
}

// Count returns the number of stored carts.
func (r *CartRepository) Count(ctx context.Context) (int, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *CartRepository) keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan carts: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return keys, nil
}

// all loads every cart ordered by creation time, then id.
func (r *CartRepository) all(ctx context.Context) ([]*cart.Cart, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return nil, err
	}
	var carts []*cart.Cart
	for start := 0; start < len(keys); start += scanCount {
		end := min(start+scanCount, len(keys))
		batch, err := r.load(ctx, keys[start:end])
		if err != nil {
			return nil, err
		}
		carts = append(carts, batch...)
	}
	sort.Slice(carts, func(i, j int) bool {
		a, b := carts[i], carts[j]
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().Before(b.CreatedAt())
		}
		return strings.Compare(a.ID().String(), b.ID().String()) < 0
	})
	return carts, nil
}

// Find returns every cart satisfying s. Redis has no secondary indexes here,
// so the whole keyspace is scanned and filtered in memory.
func (r *CartRepository) Find(ctx context.Context, s spec.Spec[*cart.Cart]) ([]*cart.Cart, error) {
	carts, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return s.Filter(carts), nil
}

// FindOne returns the oldest cart satisfying s.
func (r *CartRepository) FindOne(ctx context.Context, s spec.Spec[*cart.Cart]) (*cart.Cart, bool, error) {
	matches, err := r.Find(ctx, s)
	if err != nil || len(matches) == 0 {
		return nil, false, err
	}
	return matches[0], true, nil
}

// FindPaginated returns one page of carts satisfying s.
func (r *CartRepository) FindPaginated(ctx context.Context, s spec.Spec[*cart.Cart], params pagination.Params) (pagination.Result[*cart.Cart], error) {
	if _, err := pagination.NewParams(params.Page, params.Limit); err != nil {
		return pagination.Result[*cart.Cart]{}, err
	}
	matches, err := r.Find(ctx, s)
	if err != nil {
		return pagination.Result[*cart.Cart]{}, err
	}
	return pagination.Paginate(matches, params), nil
}

// FindByQuery evaluates q over all carts.
func (r *CartRepository) FindByQuery(ctx context.Context, q spec.Query[*cart.Cart]) ([]*cart.Cart, error) {
	carts, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(carts, cart.Sorters())
}

// CountMatching returns how many carts satisfy s.
func (r *CartRepository) CountMatching(ctx context.Context, s spec.Spec[*cart.Cart]) (int, error) {
	matches, err := r.Find(ctx, s)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}
