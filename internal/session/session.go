// Package session owns the in-memory state of one labeling session: the
// papers document loaded from the JSON files bucket, the segmentation text
// cache, and every mutation that flows back to storage.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/errors"
	"github.com/diatomlab/diatom-annotator/internal/logging"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
	"github.com/diatomlab/diatom-annotator/internal/reconciler"
)

var logger = logging.ForService("session")

const (
	segmentationCacheTTL     = 15 * time.Minute
	segmentationCacheCleanup = 5 * time.Minute
)

// Manager serializes all access to the session's papers document. Every
// mutation persists the whole document before releasing the lock, so the
// bucket copy never trails the in-memory copy by more than one request.
type Manager struct {
	store    objectstore.Store
	settings *conf.Settings
	rec      *reconciler.Reconciler
	segCache *cache.Cache

	mu     sync.RWMutex
	papers []model.Paper
}

// New creates a Manager over the given store and settings. Call Load
// before serving requests.
func New(store objectstore.Store, settings *conf.Settings) *Manager {
	return &Manager{
		store:    store,
		settings: settings,
		rec: reconciler.NewWithConfig(reconciler.Config{
			FallbackImageWidth:  settings.Reconciler.FallbackImageWidth,
			FallbackImageHeight: settings.Reconciler.FallbackImageHeight,
		}),
		segCache: cache.New(segmentationCacheTTL, segmentationCacheCleanup),
	}
}

// Load fetches the papers document from the JSON files bucket.
func (m *Manager) Load(ctx context.Context) error {
	papers, err := objectstore.LoadPapers(ctx, m.store,
		m.settings.Storage.Buckets.JSONFiles, m.settings.PapersDocumentObject())
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.papers = papers
	m.mu.Unlock()
	logger.Info("session loaded", "session", m.settings.Session.ID, "papers", len(papers))
	return nil
}

// Count returns the number of papers in the session.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.papers)
}

// Papers returns a copy of the papers document, as served by the download
// endpoint.
func (m *Manager) Papers() []model.Paper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Paper, len(m.papers))
	copy(out, m.papers)
	return out
}

// Records returns copies of every image record, in paper order. This is
// the payload of the label download endpoint.
func (m *Manager) Records() []model.DiatomsData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.DiatomsData, len(m.papers))
	for i := range m.papers {
		out[i] = m.papers[i].DiatomsData
	}
	return out
}

// PaperText returns the extracted PDF text of the paper at index, the
// context handed to the species assistant.
func (m *Manager) PaperText(index int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paper, err := m.paperAt(index)
	if err != nil {
		return "", err
	}
	return paper.PDFTextContent, nil
}

// DiatomsData returns a copy of the image record at the given paper index.
func (m *Manager) DiatomsData(index int) (*model.DiatomsData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paper, err := m.paperAt(index)
	if err != nil {
		return nil, err
	}
	record := paper.DiatomsData
	return &record, nil
}

// paperAt returns the paper at index. Callers hold the lock.
func (m *Manager) paperAt(index int) (*model.Paper, error) {
	if index < 0 || index >= len(m.papers) {
		return nil, errors.Newf("paper index %d out of range [0,%d)", index, len(m.papers)).
			Component("session").
			Category(errors.CategoryNotFound).
			Context("index", index).
			Build()
	}
	return &m.papers[index], nil
}

// SaveDetections replaces the detection list of the record at index and
// persists the document.
func (m *Manager) SaveDetections(ctx context.Context, index int, info []model.Detection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	paper, err := m.paperAt(index)
	if err != nil {
		return err
	}
	paper.DiatomsData.Info = info
	logger.Info("saved detections", "index", index, "detections", len(info))
	return m.persist(ctx)
}

// AppendDetections adds detections produced by the species assistant to
// the record at index and persists the document. Detection indices are
// species indices from the paper, so they are kept as given.
func (m *Manager) AppendDetections(ctx context.Context, index int, added []model.Detection) error {
	if len(added) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	paper, err := m.paperAt(index)
	if err != nil {
		return err
	}
	paper.DiatomsData.Info = append(paper.DiatomsData.Info, added...)
	logger.Info("appended assistant detections", "index", index, "added", len(added))
	return m.persist(ctx)
}

// ApplySegmentation stores the uploaded segmentation text for an image,
// reconciles it against the image's record, and persists the document.
// It returns a copy of the updated record.
func (m *Manager) ApplySegmentation(ctx context.Context, imageURL, text string) (*model.DiatomsData, error) {
	if err := objectstore.SaveSegmentationText(ctx, m.store,
		m.settings.Storage.Buckets.Segmentation, m.settings.Session.ID, imageURL, text); err != nil {
		return nil, err
	}
	m.segCache.Set(imageURL, text, cache.DefaultExpiration)

	m.mu.Lock()
	defer m.mu.Unlock()

	paper := m.paperByImageURL(imageURL)
	if paper == nil {
		return nil, errors.Newf("no paper for image %q", imageURL).
			Component("session").
			Category(errors.CategoryNotFound).
			Context("image_url", imageURL).
			Build()
	}

	m.rec.Reconcile(&paper.DiatomsData, text)
	if err := m.persist(ctx); err != nil {
		return nil, err
	}
	record := paper.DiatomsData
	return &record, nil
}

// ReconcileAll re-runs reconciliation for every record that has a
// segmentation file, returning the count of records touched.
func (m *Manager) ReconcileAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := 0
	for i := range m.papers {
		record := &m.papers[i].DiatomsData
		if record.ImageURL == "" || len(record.Segmentations) == 0 {
			continue
		}
		text, err := m.segmentationText(ctx, record.ImageURL)
		if err != nil {
			return touched, err
		}
		if text == "" {
			continue
		}
		m.rec.Reconcile(record, text)
		touched++
	}
	if touched == 0 {
		return 0, nil
	}
	if err := m.persist(ctx); err != nil {
		return touched, err
	}
	logger.Info("reconciled session", "records", touched)
	return touched, nil
}

// SegmentationText returns the segmentation file contents for an image,
// from cache when warm.
func (m *Manager) SegmentationText(ctx context.Context, imageURL string) (string, error) {
	return m.segmentationText(ctx, imageURL)
}

func (m *Manager) segmentationText(ctx context.Context, imageURL string) (string, error) {
	if cached, found := m.segCache.Get(imageURL); found {
		text, ok := cached.(string)
		if !ok {
			return "", fmt.Errorf("unexpected cache entry type %T for %q", cached, imageURL)
		}
		return text, nil
	}
	text, err := objectstore.LoadSegmentationText(ctx, m.store,
		m.settings.Storage.Buckets.Segmentation, m.settings.Session.ID, imageURL)
	if err != nil {
		return "", err
	}
	m.segCache.Set(imageURL, text, cache.DefaultExpiration)
	return text, nil
}

// IngestPapers merges newly processed papers into the document and
// persists it.
func (m *Manager) IngestPapers(ctx context.Context, incoming []model.Paper) error {
	if len(incoming) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.papers = objectstore.MergePapers(m.papers, incoming)
	logger.Info("ingested papers", "incoming", len(incoming), "total", len(m.papers))
	return m.persist(ctx)
}

// paperByImageURL finds the paper whose record references the image.
// Callers hold the lock.
func (m *Manager) paperByImageURL(imageURL string) *model.Paper {
	for i := range m.papers {
		if m.papers[i].DiatomsData.ImageURL == imageURL {
			return &m.papers[i]
		}
	}
	return nil
}

// persist uploads the current document. Callers hold the lock.
func (m *Manager) persist(ctx context.Context) error {
	return objectstore.SavePapers(ctx, m.store,
		m.settings.Storage.Buckets.JSONFiles, m.settings.PapersDocumentObject(), m.papers)
}
