package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/documents"
	"github.com/dmitrijs2005/medreport/internal/server/metrics"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const visualReport = `Summary:
Mild anemia.

Visual Summary:
Hemoglobin: 12.3 g/dL (Low, Normal: 13.5-17.5)
Platelets: 200 x10^9/L (Normal, Normal: 150-400)
`

const followUpReport = `Summary:
Improving.

Visual Summary:
Hemoglobin: 13.9 g/dL (Normal: 13.5-17.5)
Glucose: 95 mg/dL (Normal: 70-100)
`

type fakeArchive struct {
	puts map[string][]byte
	err  error
}

func (f *fakeArchive) Put(_ context.Context, userID string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	key := "users/" + userID + "/2024/01/doc"
	f.puts[key] = data
	return key, nil
}

func (f *fakeArchive) Get(_ context.Context, userID, key string) (*documents.Document, error) {
	data, ok := f.puts[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &documents.Document{Key: key, ContentType: "image/png", Data: data}, nil
}

func newReportService(t *testing.T, set metrics.ComparisonSet, archive DocumentArchive) (*ReportService, repomanager.RepositoryManager, *recordingAudit) {
	t.Helper()
	m := newStore(t)
	rec := &recordingAudit{}
	s := NewReportService(m, newCipher(t), nil, set, archive, rec, logging.NewNop())
	s.now = tickingClock()
	addUser(t, m, "u-1", "a@example.com")
	addUser(t, m, "u-2", "b@example.com")
	return s, m, rec
}

func input(summary, raw string) CreateReportInput {
	return CreateReportInput{
		Summary:  summary,
		Insights: []string{"Consult a doctor"},
		Glossary: []string{"WBC"},
		Raw:      raw,
	}
}

func TestReportService_CreateReturnsPlaintextStoresCiphertext(t *testing.T) {
	s, m, rec := newReportService(t, metrics.OpenSet(), nil)
	ctx := context.Background()

	rep, err := s.Create(ctx, "u-1", input("Mild anemia", visualReport))
	require.NoError(t, err)
	assert.Equal(t, "Mild anemia", rep.Summary)
	assert.Equal(t, []string{"Consult a doctor"}, rep.Insights)
	assert.Equal(t, []string{"WBC"}, rep.Glossary)
	assert.Equal(t, visualReport, rep.Raw)
	assert.Equal(t, "u-1", rep.UserID)
	assert.NotEmpty(t, rep.ID)

	err = m.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		row, err := r.Reports().GetByID(ctx, "u-1", rep.ID)
		require.NoError(t, err)
		for _, v := range []string{row.Summary, row.Insights, row.Glossary, row.Raw} {
			assert.NotContains(t, v, "anemia")
			assert.NotContains(t, v, "Consult")
			assert.NotContains(t, v, "WBC")
		}
		return nil
	})
	require.NoError(t, err)

	e := rec.last()
	assert.Equal(t, audit.ActionReportCreate, e.Action)
	assert.Equal(t, rep.ID, e.TargetID)
	assert.Equal(t, "u-1", e.ActorID)
}

func TestReportService_CreateValidation(t *testing.T) {
	s, _, _ := newReportService(t, metrics.OpenSet(), nil)

	_, err := s.Create(context.Background(), "u-1", CreateReportInput{})
	var ve *common.ValidationError
	require.True(t, errors.As(err, &ve))
	for _, f := range []string{"summary", "insights", "glossary", "raw"} {
		assert.Contains(t, ve.Fields, f)
	}

	_, err = s.Create(context.Background(), "u-1", CreateReportInput{Summary: "s", Raw: "r", Insights: []string{}, Glossary: []string{}})
	assert.NoError(t, err, "empty lists are valid")
}

func TestReportService_CreateForUnknownUser(t *testing.T) {
	s, _, _ := newReportService(t, metrics.OpenSet(), nil)
	_, err := s.Create(context.Background(), "ghost", input("s", "r"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestReportService_ListNewestFirstAndScoped(t *testing.T) {
	s, _, _ := newReportService(t, metrics.OpenSet(), nil)
	ctx := context.Background()

	first, err := s.Create(ctx, "u-1", input("first", "r1"))
	require.NoError(t, err)
	second, err := s.Create(ctx, "u-1", input("second", "r2"))
	require.NoError(t, err)
	_, err = s.Create(ctx, "u-2", input("foreign", "r3"))
	require.NoError(t, err)

	list, err := s.List(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, "second", list[0].Summary)
	assert.Equal(t, []string{"Consult a doctor"}, list[0].Insights)

	empty, err := s.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReportService_GetAndDelete(t *testing.T) {
	s, _, rec := newReportService(t, metrics.OpenSet(), nil)
	ctx := context.Background()

	rep, err := s.Create(ctx, "u-1", input("s", "r"))
	require.NoError(t, err)

	got, err := s.Get(ctx, "u-1", rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.Summary, got.Summary)
	assert.Equal(t, rep.CreatedAt, got.CreatedAt)

	_, errForeign := s.Get(ctx, "u-2", rep.ID)
	_, errMissing := s.Get(ctx, "u-1", "missing")
	assert.ErrorIs(t, errForeign, common.ErrorNotFound)
	assert.ErrorIs(t, errMissing, common.ErrorNotFound)
	assert.Equal(t, errMissing.Error(), errForeign.Error())
	assert.Equal(t, audit.OutcomeFailure, rec.last().Outcome)

	assert.ErrorIs(t, s.Delete(ctx, "u-2", rep.ID), common.ErrorNotFound)
	require.NoError(t, s.Delete(ctx, "u-1", rep.ID))
	assert.Equal(t, audit.ActionReportDelete, rec.last().Action)

	_, err = s.Get(ctx, "u-1", rep.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "u-1", rep.ID), common.ErrorNotFound)
}

func TestReportService_LegacyPlaintextDegrades(t *testing.T) {
	s, m, _ := newReportService(t, metrics.OpenSet(), nil)
	ctx := context.Background()

	err := m.Update(ctx, func(ctx context.Context, r repomanager.Repos) error {
		_, err := r.Reports().Create(ctx, &models.StoredReport{
			ID: "legacy", UserID: "u-1",
			Summary: "plain summary", Insights: `["a","b"]`, Glossary: "not json", Raw: "plain raw",
		})
		return err
	})
	require.NoError(t, err)

	rep, err := s.Get(ctx, "u-1", "legacy")
	require.NoError(t, err)
	assert.Equal(t, "plain summary", rep.Summary)
	assert.Equal(t, []string{"a", "b"}, rep.Insights)
	assert.Equal(t, []string{"not json"}, rep.Glossary)
	assert.Equal(t, "plain raw", rep.Raw)
}

func TestReportService_Metrics(t *testing.T) {
	s, _, rec := newReportService(t, metrics.OpenSet(), nil)
	ctx := context.Background()

	rep, err := s.Create(ctx, "u-1", input("Mild anemia", visualReport))
	require.NoError(t, err)

	ms, err := s.Metrics(ctx, "u-1", rep.ID)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "Hemoglobin", ms[0].Name)
	assert.Equal(t, 12.3, ms[0].Value)
	assert.Equal(t, metrics.StatusLow, ms[0].Status)
	assert.Equal(t, "Platelets", ms[1].Name)
	assert.Equal(t, audit.ActionReportMetrics, rec.last().Action)

	_, err = s.Metrics(ctx, "u-2", rep.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestReportService_CompareLatest(t *testing.T) {
	s, _, rec := newReportService(t, metrics.OpenSet(), nil)
	ctx := context.Background()

	_, err := s.CompareLatest(ctx, "u-1")
	assert.ErrorIs(t, err, common.ErrorNotEnoughReports)

	prev, err := s.Create(ctx, "u-1", input("a", visualReport))
	require.NoError(t, err)
	_, err = s.CompareLatest(ctx, "u-1")
	assert.ErrorIs(t, err, common.ErrorNotEnoughReports)

	cur, err := s.Create(ctx, "u-1", input("b", followUpReport))
	require.NoError(t, err)

	cmp, err := s.CompareLatest(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, prev.ID, cmp.Previous.ID)
	assert.Equal(t, cur.ID, cmp.Current.ID)
	require.Len(t, cmp.Deltas, 3)

	assert.Equal(t, "Hemoglobin", cmp.Deltas[0].Name)
	assert.Equal(t, metrics.DirectionIncrease, cmp.Deltas[0].Direction)
	require.NotNil(t, cmp.Deltas[0].Delta)
	assert.InDelta(t, 1.6, *cmp.Deltas[0].Delta, 1e-9)

	assert.Equal(t, "Glucose", cmp.Deltas[1].Name)
	assert.Equal(t, metrics.DirectionUnavailable, cmp.Deltas[1].Direction)
	assert.Equal(t, "Platelets", cmp.Deltas[2].Name)
	assert.Equal(t, metrics.DirectionUnavailable, cmp.Deltas[2].Direction)

	assert.Equal(t, audit.ActionReportCompare, rec.last().Action)
}

func TestReportService_CompareLatestFixedSet(t *testing.T) {
	s, _, _ := newReportService(t, metrics.FixedSet("Glucose", "Cholesterol", "Hb"), nil)
	ctx := context.Background()

	_, err := s.Create(ctx, "u-1", input("a", visualReport))
	require.NoError(t, err)
	_, err = s.Create(ctx, "u-1", input("b", followUpReport))
	require.NoError(t, err)

	cmp, err := s.CompareLatest(ctx, "u-1")
	require.NoError(t, err)
	names := make([]string, 0, len(cmp.Deltas))
	for _, d := range cmp.Deltas {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Glucose", "Hemoglobin"}, names)
}

func TestReportService_CreateFromAnalysis(t *testing.T) {
	s, _, _ := newReportService(t, metrics.OpenSet(), nil)

	rep, err := s.CreateFromAnalysis(context.Background(), "u-1", visualReport, "users/u-1/2024/01/doc")
	require.NoError(t, err)
	assert.Equal(t, "Mild anemia.", rep.Summary)
	assert.Equal(t, visualReport, rep.Raw)
	assert.Equal(t, "users/u-1/2024/01/doc", rep.DocumentKey)
	assert.NotNil(t, rep.Insights)
	assert.NotNil(t, rep.Glossary)
}

func TestReportService_ArchiveAndDocument(t *testing.T) {
	archive := &fakeArchive{}
	s, _, _ := newReportService(t, metrics.OpenSet(), archive)
	ctx := context.Background()

	key, err := s.ArchiveDocument(ctx, "u-1", []byte("png bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "users/u-1/2024/01/doc", key)

	in := input("s", "r")
	in.DocumentKey = key
	rep, err := s.Create(ctx, "u-1", in)
	require.NoError(t, err)

	doc, err := s.Document(ctx, "u-1", rep.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), doc.Data)

	_, err = s.Document(ctx, "u-2", rep.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	plain, err := s.Create(ctx, "u-1", input("s", "r"))
	require.NoError(t, err)
	_, err = s.Document(ctx, "u-1", plain.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	archive.err = errBoom
	_, err = s.ArchiveDocument(ctx, "u-1", []byte("x"), "image/png")
	assert.ErrorIs(t, err, errBoom)
}

func TestReportService_ArchiveDisabled(t *testing.T) {
	s, _, _ := newReportService(t, metrics.OpenSet(), nil)

	key, err := s.ArchiveDocument(context.Background(), "u-1", []byte("x"), "image/png")
	require.NoError(t, err)
	assert.Empty(t, key)
}
