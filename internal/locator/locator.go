// Package locator composes a selector, a platform engine, and a search root
// into a re-callable query (M1): the layer that evaluates the composite
// selector forms (chain, nth, has, spatial relations) a platform engine
// deliberately leaves to the caller, on top of whatever atomic matches the
// engine resolves directly.
package locator

import (
	"context"
	"math"
	"time"

	"github.com/haasonsaas/deskmcp/internal/backoff"
	"github.com/haasonsaas/deskmcp/internal/cache"
	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/element"
	"github.com/haasonsaas/deskmcp/internal/platform"
	"github.com/haasonsaas/deskmcp/internal/selector"
)

// DefaultTimeout bounds how long First/Wait retry a zero-match selector
// before giving up.
const DefaultTimeout = 5 * time.Second

// nearThresholdPx bounds how close two element centroids must be, in screen
// pixels, for a "near" spatial relation to hold.
const nearThresholdPx = 150.0

// Locator is an immutable, re-callable query: the same Locator value can be
// resolved repeatedly (e.g. once per workflow step retry) and is safe for
// concurrent use, since its only mutable state lives in the shared
// *cache.ElementCache, never in the Locator itself.
type Locator struct {
	engine      platform.Engine
	sel         selector.Selector
	root        element.Element
	timeout     time.Duration
	depthBudget int
	cache       *cache.ElementCache
	policy      backoff.BackoffPolicy
}

// Option configures a Locator at construction time.
type Option func(*Locator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(l *Locator) { l.timeout = d }
}

// WithDepthBudget bounds the number of stages a Chain selector may carry;
// zero (the default) leaves chains unbounded.
func WithDepthBudget(n int) Option {
	return func(l *Locator) { l.depthBudget = n }
}

// WithCache attaches a shared element cache, consulted by First/Wait before
// falling back to a fresh resolution.
func WithCache(c *cache.ElementCache) Option {
	return func(l *Locator) { l.cache = c }
}

// WithRetryPolicy overrides the backoff policy used between retry attempts.
func WithRetryPolicy(p backoff.BackoffPolicy) Option {
	return func(l *Locator) { l.policy = p }
}

// New builds a Locator for sel, searched for under root. A zero root
// searches from the engine's desktop root.
func New(engine platform.Engine, sel selector.Selector, root element.Element, opts ...Option) *Locator {
	l := &Locator{
		engine:  engine,
		sel:     selector.Canonicalize(sel),
		root:    root,
		timeout: DefaultTimeout,
		policy:  backoff.WorkflowStepPolicy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// First resolves sel to its first match in tree order, retrying with
// backoff until a match appears or the timeout elapses.
func (l *Locator) First(ctx context.Context) (element.Element, error) {
	key := l.cacheKey()
	if key != "" && l.cache != nil {
		if entry, ok := l.cache.Get(key); ok {
			if el, ok := entry.NativeRef.(element.Element); ok && el.Alive() {
				return el, nil
			}
			l.cache.Invalidate(key)
		}
	}

	matches, err := l.retry(ctx, true)
	if err != nil {
		return element.Element{}, err
	}

	el := matches[0]
	if key != "" && l.cache != nil {
		l.cache.Put(key, el)
	}
	return el, nil
}

// All resolves every match of sel in tree order. Results are never cached: a
// multi-match query is cheap to recompute, and caching a whole slice invites
// staleness no revalidation step could catch.
func (l *Locator) All(ctx context.Context) ([]element.Element, error) {
	return l.retry(ctx, false)
}

// Wait is First under a name that reads as intent at the call site: "block
// until this appears."
func (l *Locator) Wait(ctx context.Context) (element.Element, error) {
	return l.First(ctx)
}

func (l *Locator) cacheKey() string {
	rootID := "desktop"
	if !l.root.IsZero() {
		attrs, err := l.root.Attributes()
		if err != nil || attrs.StableID == "" {
			// No stable identity to key on; disable caching for this call
			// rather than risk serving a match resolved under a different
			// root.
			return ""
		}
		rootID = attrs.StableID
	}
	return rootID + "|" + l.sel.String()
}

// retry resolves sel under root, retrying with backoff while the result set
// is empty and time remains under the locator's timeout. A fatal error
// (deskerr.Kind.Fatal) aborts immediately without retrying.
func (l *Locator) retry(ctx context.Context, first bool) ([]element.Element, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, deskerr.Timeout("selector %q matched no elements within %s", l.sel.String(), l.timeout)
		}

		matches, err := l.resolve(ctx, l.sel, l.root, first)
		if err == nil && len(matches) > 0 {
			return matches, nil
		}
		if err != nil {
			lastErr = err
			if deskerr.KindOf(err).Fatal() {
				return nil, err
			}
		}

		if sleepErr := backoff.SleepWithBackoff(ctx, l.policy, attempt); sleepErr != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, deskerr.Timeout("selector %q matched no elements within %s", l.sel.String(), l.timeout)
		}
	}
}

// resolve evaluates sel under root in a single pass: atomic leaf forms are
// delegated straight to the engine, composite forms are composed here.
func (l *Locator) resolve(ctx context.Context, sel selector.Selector, root element.Element, first bool) ([]element.Element, error) {
	switch sel.Kind {
	case selector.KindChain:
		return l.resolveChain(ctx, sel, root, first)
	case selector.KindNth:
		return l.resolveNth(ctx, sel, root)
	case selector.KindHas:
		return l.resolveHas(ctx, sel, root)
	case selector.KindRightOf, selector.KindLeftOf, selector.KindAbove, selector.KindBelow, selector.KindNear:
		return l.resolveSpatial(ctx, sel, root)
	default:
		return l.engine.Resolve(ctx, sel, platform.ResolveOptions{Under: root, First: first})
	}
}

// resolveChain resolves each stage under the matches of the previous stage,
// per the selector grammar's "seg >> seg" descendant chaining.
func (l *Locator) resolveChain(ctx context.Context, sel selector.Selector, root element.Element, first bool) ([]element.Element, error) {
	if len(sel.Chain) == 0 {
		return nil, deskerr.InvalidArgument("empty selector chain")
	}
	if l.depthBudget > 0 && len(sel.Chain) > l.depthBudget {
		return nil, deskerr.InvalidArgument("selector chain of %d stages exceeds depth budget %d", len(sel.Chain), l.depthBudget)
	}

	current := []element.Element{root}
	for i, stage := range sel.Chain {
		last := i == len(sel.Chain)-1

		var next []element.Element
		for _, base := range current {
			matches, err := l.resolve(ctx, stage, base, first && last)
			if err != nil {
				return nil, err
			}
			next = append(next, matches...)
			if first && last && len(next) > 0 {
				return next[:1], nil
			}
		}
		current = next
		if len(current) == 0 {
			return nil, nil
		}
	}
	return current, nil
}

// resolveNth indexes into base's matches, accepting negative indices counted
// from the end.
func (l *Locator) resolveNth(ctx context.Context, sel selector.Selector, root element.Element) ([]element.Element, error) {
	matches, err := l.resolve(ctx, *sel.Base, root, false)
	if err != nil {
		return nil, err
	}

	idx := sel.Index
	if idx < 0 {
		idx += len(matches)
	}
	if idx < 0 || idx >= len(matches) {
		return nil, deskerr.ElementNotFound("nth selector index %d out of range (%d matches)", sel.Index, len(matches))
	}
	return matches[idx : idx+1], nil
}

// resolveHas keeps only base matches with at least one Target match in their
// own subtree.
func (l *Locator) resolveHas(ctx context.Context, sel selector.Selector, root element.Element) ([]element.Element, error) {
	bases, err := l.resolve(ctx, *sel.Base, root, false)
	if err != nil {
		return nil, err
	}

	var out []element.Element
	for _, base := range bases {
		targets, err := l.resolve(ctx, *sel.Target, base, true)
		if err != nil {
			continue
		}
		if len(targets) > 0 {
			out = append(out, base)
		}
	}
	return out, nil
}

// resolveSpatial keeps base matches that stand in the requested directional
// or proximity relation to at least one target match, compared by bounds
// centroid.
func (l *Locator) resolveSpatial(ctx context.Context, sel selector.Selector, root element.Element) ([]element.Element, error) {
	bases, err := l.resolve(ctx, *sel.Base, root, false)
	if err != nil {
		return nil, err
	}
	targets, err := l.resolve(ctx, *sel.Target, root, false)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}

	var out []element.Element
	for _, base := range bases {
		baseAttrs, err := base.Attributes()
		if err != nil || !baseAttrs.HasBounds {
			continue
		}
		for _, target := range targets {
			targetAttrs, err := target.Attributes()
			if err != nil || !targetAttrs.HasBounds {
				continue
			}
			if spatialMatch(sel.Kind, baseAttrs.Bounds, targetAttrs.Bounds) {
				out = append(out, base)
				break
			}
		}
	}
	return out, nil
}

func centroid(b element.Bounds) (float64, float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

func overlaps(aMin, aMax, bMin, bMax float64) bool {
	return aMin < bMax && bMin < aMax
}

func spatialMatch(kind selector.Kind, base, target element.Bounds) bool {
	bcx, bcy := centroid(base)
	tcx, tcy := centroid(target)
	vOverlap := overlaps(float64(base.Y), float64(base.Y+base.H), float64(target.Y), float64(target.Y+target.H))
	hOverlap := overlaps(float64(base.X), float64(base.X+base.W), float64(target.X), float64(target.X+target.W))

	switch kind {
	case selector.KindRightOf:
		return bcx > tcx && vOverlap
	case selector.KindLeftOf:
		return bcx < tcx && vOverlap
	case selector.KindAbove:
		return bcy < tcy && hOverlap
	case selector.KindBelow:
		return bcy > tcy && hOverlap
	case selector.KindNear:
		return math.Hypot(bcx-tcx, bcy-tcy) <= nearThresholdPx
	default:
		return false
	}
}
