package api

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diatomlab/diatom-annotator/internal/conf"
	"github.com/diatomlab/diatom-annotator/internal/datastore"
	"github.com/diatomlab/diatom-annotator/internal/httpclient"
	"github.com/diatomlab/diatom-annotator/internal/model"
	"github.com/diatomlab/diatom-annotator/internal/objectstore"
	"github.com/diatomlab/diatom-annotator/internal/pdfops"
	"github.com/diatomlab/diatom-annotator/internal/session"
	"github.com/diatomlab/diatom-annotator/internal/species"
)

type stubAssistant struct {
	missing *species.MissingSpeciesResult
	err     error
}

func (s *stubAssistant) ExtractPaperInfo(context.Context, string) (*species.PaperInfo, error) {
	return &species.PaperInfo{}, nil
}

func (s *stubAssistant) ExtractCitation(context.Context, string) *model.Citation {
	return species.DefaultCitation()
}

func (s *stubAssistant) FindMissingSpecies(context.Context, string, []string) (*species.MissingSpeciesResult, error) {
	return s.missing, s.err
}

func testSettings() *conf.Settings {
	return &conf.Settings{
		Server: conf.ServerSettings{Port: 8080},
		Storage: conf.StorageSettings{
			Buckets: conf.BucketSettings{
				JSONFiles:       "papers-diatoms-jsons",
				Segmentation:    "papers-diatoms-segmentation",
				ExtractedImages: "papers-extracted-images-bucket-mmm",
			},
		},
		Session: conf.SessionSettings{ID: "s1"},
	}
}

func testPaper(imageURL string) model.Paper {
	return model.Paper{
		PDFFileURL:     "https://storage.googleapis.com/papers-diatoms/" + imageURL + ".pdf",
		PDFTextContent: "full text of " + imageURL,
		DiatomsData: model.DiatomsData{
			ImageURL:    imageURL,
			ImageWidth:  "1000",
			ImageHeight: "1000",
			Info: []model.Detection{
				{
					Label:    []string{"1 Amphora_obtusa"},
					Index:    1,
					Species:  "Amphora_obtusa",
					BBox:     "100,100,300,300",
					YOLOBBox: "0.2 0.2 0.2 0.2",
				},
			},
			Segmentations: []model.SegmentationEntry{{Index: 0, Label: 1}},
		},
	}
}

func newTestController(t *testing.T, assistant SpeciesAssistant, papers ...model.Paper) *Controller {
	t.Helper()
	ctx := context.Background()
	store := objectstore.NewMemory()
	settings := testSettings()
	require.NoError(t, objectstore.SavePapers(ctx, store,
		settings.Storage.Buckets.JSONFiles, settings.PapersDocumentObject(), papers))

	mgr := session.New(store, settings)
	require.NoError(t, mgr.Load(ctx))

	processor := pdfops.New(httpclient.New(httpclient.Config{}), store, settings)
	return New(settings, mgr, processor, assistant, nil)
}

func doRequest(c *Controller, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))
	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.InDelta(t, 1, body["papers"], 0.1)
}

func TestGetDiatoms(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"), testPaper("plate2.jpeg"))

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms?index=1", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DiatomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.CurrentIndex)
	assert.Equal(t, 2, resp.TotalImages)
	assert.Equal(t, "plate2.jpeg", resp.Data.ImageURL)
}

func TestGetDiatomsClampsIndex(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"), testPaper("plate2.jpeg"))

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms?index=99", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DiatomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.CurrentIndex)

	rec = doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms?index=-5", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.CurrentIndex)
}

func TestGetDiatomsEmptySession(t *testing.T) {
	c := newTestController(t, nil)

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp DiatomsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.TotalImages)
	assert.NotEmpty(t, resp.Error)
}

func TestGetDiatomsBadIndex(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))
	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms?index=abc", http.NoBody))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestSaveDiatoms(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))

	payload := `{"image_index": 0, "info": [{"label": ["2 Diploneis_bombus"], "index": 2, "species": "Diploneis_bombus", "bbox": "1,2,3,4"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diatoms/save", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(c, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Zero(t, resp.SavedIndex)
	assert.Contains(t, resp.GCPURL, "papers-diatoms-jsons")

	record, err := c.Session.DiatomsData(0)
	require.NoError(t, err)
	require.Len(t, record.Info, 1)
	assert.Equal(t, "Diploneis_bombus", record.Info[0].Species)
}

func TestSaveDiatomsBadIndex(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diatoms/save",
		strings.NewReader(`{"image_index": 7, "info": []}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(c, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDownloadLabels(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms/download", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "diatom_labels_s1.json")

	var records []model.DiatomsData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "plate1.jpeg", records[0].ImageURL)
}

func TestUploadSegmentation(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))

	var buf strings.Builder
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("image_url", "plate1.jpeg"))
	part, err := writer.CreateFormFile("file", "plate1.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("1 0.15 0.15 0.25 0.15 0.25 0.25 0.15 0.25\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/segmentation/upload", strings.NewReader(buf.String()))
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := doRequest(c, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SegmentationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Matched)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "Amphora_obtusa", resp.Data.Segmentations[0].Species)
}

func TestUploadSegmentationByIndex(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"), testPaper("plate2.jpeg"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/segmentation/upload",
		strings.NewReader("image_index=1&segmentation=1+0.15+0.15+0.25+0.15+0.25+0.25+0.15+0.25"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := doRequest(c, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SegmentationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "plate2.jpeg", resp.ImageURL)
	assert.Equal(t, 1, resp.Matched)
}

func TestUploadSegmentationValidation(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))

	// Missing image reference.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/segmentation/upload",
		strings.NewReader("segmentation=1+0.1+0.1+0.2+0.2+0.3+0.3"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := doRequest(c, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty file.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/segmentation/upload",
		strings.NewReader("image_url=plate1.jpeg&segmentation="))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = doRequest(c, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown image.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/segmentation/upload",
		strings.NewReader("image_url=missing.jpeg&segmentation=1+0.1+0.1+0.2+0.2+0.3+0.3"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = doRequest(c, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Out-of-range image_index.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/segmentation/upload",
		strings.NewReader("image_index=9&segmentation=1+0.1+0.1+0.2+0.2+0.3+0.3"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec = doRequest(c, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiatomListAssistant(t *testing.T) {
	assistant := &stubAssistant{
		missing: &species.MissingSpeciesResult{
			SpeciesData: []model.Detection{
				{Label: []string{"14 Lyrella_spectabilis"}, Index: 14, Species: "Lyrella_spectabilis"},
			},
			LabelsRetrieved: []string{"14 Lyrella_spectabilis"},
			Message:         "found species",
		},
	}
	c := newTestController(t, assistant, testPaper("plate1.jpeg"))

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms/assistant?index=0", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AssistantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"1 Amphora_obtusa"}, resp.Labels)
	assert.Equal(t, "full text of plate1.jpeg", resp.PDFTextContent)
	assert.True(t, resp.DataSaved)
	require.Len(t, resp.SpeciesData, 1)

	// The new species was appended after the existing detections, keeping
	// its species index.
	record, err := c.Session.DiatomsData(0)
	require.NoError(t, err)
	require.Len(t, record.Info, 2)
	assert.Equal(t, "Lyrella_spectabilis", record.Info[1].Species)
	assert.Equal(t, 14, record.Info[1].Index)
}

func TestDiatomListAssistantDisabled(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))
	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms/assistant", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDiatomListAssistantBadIndex(t *testing.T) {
	c := newTestController(t, &stubAssistant{}, testPaper("plate1.jpeg"))
	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/diatoms/assistant?index=9", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUploadsDisabled(t *testing.T) {
	c := newTestController(t, nil, testPaper("plate1.jpeg"))
	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/abc", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadTrackerEndpoints(t *testing.T) {
	ds := datastore.New(":memory:")
	require.NoError(t, ds.Open())
	defer ds.Close()

	upload := &datastore.PaperUpload{
		PDFURL:   "https://storage.googleapis.com/papers-diatoms/atlas.pdf",
		Filename: "atlas.pdf",
		FileHash: "deadbeef",
	}
	require.NoError(t, ds.SaveUpload(upload))

	c := newTestController(t, nil, testPaper("plate1.jpeg"))
	c.DS = ds

	rec := doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/uploads", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Equal(t, 1, listing.Total)

	rec = doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/"+upload.UploadID, http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	var got datastore.PaperUpload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "atlas.pdf", got.Filename)
	assert.Equal(t, "deadbeef", got.FileHash)

	rec = doRequest(c, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/unknown", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestPaperValidation(t *testing.T) {
	c := newTestController(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/papers/ingest", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(c, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
