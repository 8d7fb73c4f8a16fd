package featuresync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/geo"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/logging"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/model"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/parser"
	"github.com/NathanCastle/arcgis-in-obsidian/internal/reconcile"
)

// DefaultConcurrency bounds in-flight documents per connection.
const DefaultConcurrency = 8

// Options tune a sync pass.
type Options struct {
	// Concurrency bounds in-flight documents per connection.
	Concurrency int
	// DryRun resolves and plans without editing the service or the notes.
	DryRun bool
	// RunID identifies the pass; generated when empty.
	RunID string
}

// Engine runs sync passes over a vault.
type Engine struct {
	store    DocumentStore
	resolver *geo.Resolver
	sc       *SyncContext
	opts     Options
	now      func() time.Time
}

// NewEngine creates an engine for one pass.
func NewEngine(store DocumentStore, geocoder geo.Geocoder, sc *SyncContext, opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.RunID == "" {
		opts.RunID = logging.NewRunID()
	}
	return &Engine{
		store:    store,
		resolver: geo.NewResolver(geocoder),
		sc:       sc,
		opts:     opts,
		now:      time.Now,
	}
}

// Run syncs every connection in order and returns the pass summary.
// Connections run one after another, so a note matched by several
// connections ends up linked to the last one. Failures are recorded in the
// report and never stop the pass; cancelling ctx stops it between documents.
func (e *Engine) Run(ctx context.Context) *Report {
	ctx = logging.ContextWithRunID(ctx, e.opts.RunID)
	log := logging.Ctx(ctx)

	report := &Report{
		RunID:     e.opts.RunID,
		StartedAt: e.now(),
		DryRun:    e.opts.DryRun,
	}
	log.Info().Int("connections", len(e.sc.Connections)).Bool("dry_run", e.opts.DryRun).Msg("sync pass started")

	for i, conn := range e.sc.Connections {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		if err := e.syncConnection(ctx, conn, report); err != nil {
			log.Warn().Err(err).Str("connection", conn.Label()).Msg("connection skipped")
			report.ConfigErrors = append(report.ConfigErrors, ConfigError{
				Index:      i,
				Connection: conn.Label(),
				Message:    err.Error(),
				Err:        err,
			})
		}
	}
	if ctx.Err() != nil {
		report.Cancelled = true
	}

	report.FinishedAt = e.now()
	log.Info().Str("summary", report.Summary()).Dur("took", report.Duration()).Msg("sync pass finished")
	return report
}

// located is a document that resolved to a location.
type located struct {
	doc        model.Document
	metadata   map[string]any
	resolution geo.Resolution
}

// syncConnection returns an error only when the whole connection is inert.
func (e *Engine) syncConnection(ctx context.Context, conn Connection, report *Report) error {
	service, err := e.sc.Handle(conn)
	if err != nil {
		return err
	}
	include, err := conn.includeMatcher()
	if err != nil {
		return err
	}
	docs, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	var candidates []model.Document
	for _, doc := range docs {
		if !doc.IsMarkdown() {
			continue
		}
		if include != nil && !include.MatchString(doc.BaseName()) {
			continue
		}
		candidates = append(candidates, doc)
	}

	found, results, excluded := e.resolveAll(ctx, conn, candidates)
	report.Excluded += excluded
	report.Results = append(report.Results, results...)

	reconciler := reconcile.New(service, reconcile.Config{
		TitleField: conn.TitleField,
		FieldMap:   conn.mapping(),
		VaultName:  e.store.CollectionName(),
		WKID:       conn.WKID,
	})
	report.Results = append(report.Results, e.reconcileAll(ctx, conn, reconciler, found)...)
	return nil
}

// resolveAll resolves every candidate concurrently and joins before returning.
// Skipped and failed documents come back as results; notes without a geo
// value are only counted.
func (e *Engine) resolveAll(ctx context.Context, conn Connection, docs []model.Document) ([]located, []DocumentResult, int) {
	type slot struct {
		loc      *located
		result   *DocumentResult
		excluded bool
	}
	slots := make([]slot, len(docs))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			loc, res, excluded := e.resolveOne(ctx, conn, doc)
			slots[i] = slot{loc: loc, result: res, excluded: excluded}
			return nil
		})
	}
	_ = g.Wait()

	var (
		found    []located
		results  []DocumentResult
		excluded int
	)
	for _, s := range slots {
		switch {
		case s.loc != nil:
			found = append(found, *s.loc)
		case s.result != nil:
			results = append(results, *s.result)
		case s.excluded:
			excluded++
		}
	}
	return found, results, excluded
}

func (e *Engine) resolveOne(ctx context.Context, conn Connection, doc model.Document) (loc *located, result *DocumentResult, excluded bool) {
	log := logging.Ctx(ctx).With().Str("path", doc.Path).Logger()

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("location lookup panicked")
			loc, result, excluded = nil, failed(conn, doc, fmt.Errorf("panic: %v", p)), false
		}
	}()

	metadata, err := e.store.Metadata(ctx, doc)
	if err != nil {
		log.Warn().Err(err).Msg("read metadata failed")
		return nil, failed(conn, doc, err), false
	}

	res, err := e.resolver.Resolve(ctx, metadata)
	switch {
	case errors.Is(err, geo.ErrMalformedCache):
		log.Warn().Err(err).Msg("skipping note with malformed coordinate cache")
		return nil, &DocumentResult{
			Connection: conn.Label(),
			Path:       doc.Path,
			Status:     StatusSkipped,
			Reason:     err.Error(),
		}, false
	case err != nil:
		log.Warn().Err(err).Msg("resolve location failed")
		return nil, failed(conn, doc, err), false
	}

	if res.Found() {
		log.Debug().Str("source", res.Source.String()).Str("location", res.Location.String()).Msg("location resolved")
		return &located{doc: doc, metadata: metadata, resolution: res}, nil, false
	}

	if res.Source == geo.SourceNone && res.Address == "" {
		return nil, nil, true
	}
	log.Debug().Str("reason", res.Reason).Msg("note skipped")
	return nil, &DocumentResult{
		Connection: conn.Label(),
		Path:       doc.Path,
		Status:     StatusSkipped,
		Source:     res.Source.String(),
		Reason:     res.Reason,
	}, false
}

// reconcileAll reconciles and rewrites every located document, each in its
// own fault boundary, and joins before returning.
func (e *Engine) reconcileAll(ctx context.Context, conn Connection, r *reconcile.Reconciler, docs []located) []DocumentResult {
	results := make([]DocumentResult, len(docs))
	done := make([]bool, len(docs))

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)
	for i, item := range docs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = e.reconcileOne(ctx, conn, r, item)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]DocumentResult, 0, len(docs))
	for i, res := range results {
		if done[i] {
			out = append(out, res)
		}
	}
	return out
}

func (e *Engine) reconcileOne(ctx context.Context, conn Connection, r *reconcile.Reconciler, item located) (result DocumentResult) {
	log := logging.Ctx(ctx).With().Str("path", item.doc.Path).Str("connection", conn.Label()).Logger()
	loc := item.resolution.Location

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("document sync panicked")
			result = *failed(conn, item.doc, fmt.Errorf("panic: %v", p))
		}
	}()

	req := reconcile.Request{
		Document: item.doc,
		Metadata: item.metadata,
		Location: loc,
	}

	plan, err := r.Plan(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("plan failed")
		return *failed(conn, item.doc, err)
	}

	result = DocumentResult{
		Connection: conn.Label(),
		Path:       item.doc.Path,
		ObjectID:   plan.ObjectID,
		Location:   &loc,
		Source:     item.resolution.Source.String(),
	}
	if plan.Action == reconcile.ActionUpdate {
		result.Status = StatusUpdated
	} else {
		result.Status = StatusCreated
	}
	if e.opts.DryRun {
		return result
	}

	outcome, err := r.Apply(ctx, plan)
	if err != nil {
		log.Warn().Err(err).Msg("apply edits failed")
		return *failed(conn, item.doc, err)
	}
	result.ObjectID = outcome.ObjectID

	written, err := e.writeBack(ctx, item.doc, outcome.ObjectID, loc)
	if err != nil {
		log.Error().Err(err).Int64("object_id", outcome.ObjectID).Msg("feature saved but note not updated")
		result.Status = StatusFailed
		result.Err = err
		result.Error = err.Error()
		return result
	}
	if !written {
		result.Reason = "no frontmatter block; link not written"
	}

	log.Info().Str("status", string(result.Status)).Int64("object_id", outcome.ObjectID).Msg("note synced")
	return result
}

// writeBack stores the object id and coordinate cache in the note's
// frontmatter. It reports false when the note has no frontmatter block.
func (e *Engine) writeBack(ctx context.Context, doc model.Document, objectID int64, loc geo.Location) (bool, error) {
	content, err := e.store.Read(ctx, doc)
	if err != nil {
		return false, err
	}

	updated, ok, err := parser.RewriteFrontmatter(content, []parser.Field{
		{Key: model.ObjectIDField, Value: objectID},
		{Key: geo.KeyCache, Value: loc.CacheString()},
	})
	if err != nil {
		return false, fmt.Errorf("rewrite %s: %w", doc.Path, err)
	}
	if !ok {
		return false, nil
	}
	if updated == content {
		return true, nil
	}
	if err := e.store.Write(ctx, doc, updated); err != nil {
		return false, err
	}
	return true, nil
}

func failed(conn Connection, doc model.Document, err error) *DocumentResult {
	return &DocumentResult{
		Connection: conn.Label(),
		Path:       doc.Path,
		Status:     StatusFailed,
		Err:        err,
		Error:      err.Error(),
	}
}
