package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
)

func testSettings() *conf.Settings {
	return &conf.Settings{
		Storage: conf.StorageSettings{
			Buckets: conf.BucketSettings{
				JSONFiles:    "papers-diatoms-jsons",
				Segmentation: "papers-diatoms-segmentation",
			},
		},
		Session: conf.SessionSettings{ID: "s1"},
	}
}

func testPaper(imageURL string) model.Paper {
	return model.Paper{
		PDFFileURL: "https://storage.googleapis.com/papers-diatoms/" + imageURL + ".pdf",
		DiatomsData: model.DiatomsData{
			ImageURL:    imageURL,
			ImageWidth:  "1000",
			ImageHeight: "1000",
			Info: []model.Detection{
				{Index: 0, Species: "Amphora_obtusa", BBox: "100,100,300,300", YOLOBBox: "0.2 0.2 0.2 0.2"},
			},
			Segmentations: []model.SegmentationEntry{{Index: 0, Label: 1}},
		},
	}
}

func loadedManager(t *testing.T, papers ...model.Paper) (*Manager, *objectstore.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	store := objectstore.NewMemory()
	settings := testSettings()
	require.NoError(t, objectstore.SavePapers(ctx, store,
		settings.Storage.Buckets.JSONFiles, settings.PapersDocumentObject(), papers))

	m := New(store, settings)
	require.NoError(t, m.Load(ctx))
	return m, store
}

func TestLoadEmptySession(t *testing.T) {
	m := New(objectstore.NewMemory(), testSettings())
	require.NoError(t, m.Load(context.Background()))
	assert.Zero(t, m.Count())
}

func TestDiatomsDataBounds(t *testing.T) {
	m, _ := loadedManager(t, testPaper("plate1.jpeg"))

	record, err := m.DiatomsData(0)
	require.NoError(t, err)
	assert.Equal(t, "plate1.jpeg", record.ImageURL)

	_, err = m.DiatomsData(1)
	assert.Error(t, err)
	_, err = m.DiatomsData(-1)
	assert.Error(t, err)
}

func TestSaveDetectionsPersists(t *testing.T) {
	ctx := context.Background()
	m, store := loadedManager(t, testPaper("plate1.jpeg"))

	updated := []model.Detection{
		{Index: 0, Species: "Diploneis_bombus", BBox: "1,2,3,4"},
		{Index: 1, Species: "Navicula_hennedyi", BBox: "5,6,7,8"},
	}
	require.NoError(t, m.SaveDetections(ctx, 0, updated))

	// The in-memory record reflects the change.
	record, err := m.DiatomsData(0)
	require.NoError(t, err)
	require.Len(t, record.Info, 2)

	// So does the persisted document.
	settings := testSettings()
	persisted, err := objectstore.LoadPapers(ctx, store,
		settings.Storage.Buckets.JSONFiles, settings.PapersDocumentObject())
	require.NoError(t, err)
	assert.Equal(t, "Diploneis_bombus", persisted[0].DiatomsData.Info[0].Species)
}

func TestAppendDetectionsKeepsSpeciesIndices(t *testing.T) {
	ctx := context.Background()
	m, _ := loadedManager(t, testPaper("plate1.jpeg"))

	added := []model.Detection{
		{Index: 14, Species: "Lyrella_spectabilis"},
		{Index: 16, Species: "Petroneis_marina"},
	}
	require.NoError(t, m.AppendDetections(ctx, 0, added))

	record, err := m.DiatomsData(0)
	require.NoError(t, err)
	require.Len(t, record.Info, 3)
	assert.Equal(t, 14, record.Info[1].Index)
	assert.Equal(t, 16, record.Info[2].Index)

	// Empty append is a no-op.
	require.NoError(t, m.AppendDetections(ctx, 0, nil))
}

func TestApplySegmentationReconcilesAndPersists(t *testing.T) {
	ctx := context.Background()
	m, store := loadedManager(t, testPaper("plate1.jpeg"))

	text := "1 0.15 0.15 0.25 0.15 0.25 0.25 0.15 0.25\n"
	record, err := m.ApplySegmentation(ctx, "plate1.jpeg", text)
	require.NoError(t, err)
	require.Len(t, record.Segmentations, 1)
	assert.Equal(t, "Amphora_obtusa", record.Segmentations[0].Species)
	assert.InDelta(t, 1.0, record.Segmentations[0].OverlapRatio, 1e-9)

	// The text landed in the segmentation bucket under the session prefix.
	settings := testSettings()
	stored, err := objectstore.LoadSegmentationText(ctx, store,
		settings.Storage.Buckets.Segmentation, "s1", "plate1.jpeg")
	require.NoError(t, err)
	assert.Equal(t, text, stored)

	// And the reconciled record was persisted.
	persisted, err := objectstore.LoadPapers(ctx, store,
		settings.Storage.Buckets.JSONFiles, settings.PapersDocumentObject())
	require.NoError(t, err)
	assert.Equal(t, "Amphora_obtusa", persisted[0].DiatomsData.Segmentations[0].Species)
}

func TestApplySegmentationUsesConfiguredFallback(t *testing.T) {
	ctx := context.Background()
	store := objectstore.NewMemory()
	settings := testSettings()
	settings.Reconciler = conf.ReconcilerSettings{
		FallbackImageWidth:  2048,
		FallbackImageHeight: 1536,
	}

	paper := testPaper("plate1.jpeg")
	paper.DiatomsData.ImageWidth = ""
	paper.DiatomsData.ImageHeight = ""
	paper.DiatomsData.Info[0].BBox = "0,0,2048,1536"
	require.NoError(t, objectstore.SavePapers(ctx, store,
		settings.Storage.Buckets.JSONFiles, settings.PapersDocumentObject(),
		[]model.Paper{paper}))

	m := New(store, settings)
	require.NoError(t, m.Load(ctx))

	record, err := m.ApplySegmentation(ctx, "plate1.jpeg",
		"1 0.25 0.25 0.75 0.25 0.75 0.75 0.25 0.75")
	require.NoError(t, err)
	assert.Equal(t, "512,384,1536,1152", record.Segmentations[0].DenormPointsBBox)
	assert.Equal(t, "Amphora_obtusa", record.Segmentations[0].Species)
}

func TestApplySegmentationUnknownImage(t *testing.T) {
	m, _ := loadedManager(t, testPaper("plate1.jpeg"))
	_, err := m.ApplySegmentation(context.Background(), "missing.jpeg", "1 0.1 0.1 0.2 0.2 0.3 0.3")
	assert.Error(t, err)
}

func TestSegmentationTextCaching(t *testing.T) {
	ctx := context.Background()
	m, store := loadedManager(t, testPaper("plate1.jpeg"))
	settings := testSettings()

	require.NoError(t, objectstore.SaveSegmentationText(ctx, store,
		settings.Storage.Buckets.Segmentation, "s1", "plate1.jpeg", "1 0.1 0.1 0.2 0.2 0.3 0.3"))

	text, err := m.SegmentationText(ctx, "plate1.jpeg")
	require.NoError(t, err)
	assert.NotEmpty(t, text)

	// Deleting the object does not evict the warm cache entry.
	require.NoError(t, store.Delete(ctx,
		settings.Storage.Buckets.Segmentation, objectstore.SegmentationObject("s1", "plate1.jpeg")))
	cached, err := m.SegmentationText(ctx, "plate1.jpeg")
	require.NoError(t, err)
	assert.Equal(t, text, cached)
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	first := testPaper("plate1.jpeg")
	second := testPaper("plate2.jpeg")
	noSegs := testPaper("plate3.jpeg")
	noSegs.DiatomsData.Segmentations = nil

	m, store := loadedManager(t, first, second, noSegs)
	settings := testSettings()

	// Only plate1 has an uploaded segmentation file.
	require.NoError(t, objectstore.SaveSegmentationText(ctx, store,
		settings.Storage.Buckets.Segmentation, "s1", "plate1.jpeg",
		"1 0.15 0.15 0.25 0.15 0.25 0.25 0.15 0.25"))

	touched, err := m.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	record, err := m.DiatomsData(0)
	require.NoError(t, err)
	assert.Equal(t, "Amphora_obtusa", record.Segmentations[0].Species)

	record, err = m.DiatomsData(1)
	require.NoError(t, err)
	assert.Empty(t, record.Segmentations[0].Species)
}

func TestIngestPapersMerges(t *testing.T) {
	ctx := context.Background()
	m, store := loadedManager(t, testPaper("plate1.jpeg"))

	replacement := testPaper("plate1.jpeg")
	replacement.PDFTextContent = "replaced"
	fresh := testPaper("plate2.jpeg")

	require.NoError(t, m.IngestPapers(ctx, []model.Paper{replacement, fresh}))
	assert.Equal(t, 2, m.Count())

	settings := testSettings()
	persisted, err := objectstore.LoadPapers(ctx, store,
		settings.Storage.Buckets.JSONFiles, settings.PapersDocumentObject())
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	assert.Equal(t, "replaced", persisted[0].PDFTextContent)
}
