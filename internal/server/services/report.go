package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/documents"
	"github.com/dmitrijs2005/medreport/internal/server/metrics"
	"github.com/dmitrijs2005/medreport/internal/server/models"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// FieldCipher seals report fields at rest. Decrypt never fails: values it
// cannot open come back unchanged.
type FieldCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) string
	EncryptJSON(v any) (string, error)
}

// DocumentArchive stores the original uploads behind reports.
type DocumentArchive interface {
	Put(ctx context.Context, userID string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, userID, key string) (*documents.Document, error)
}

// CreateReportInput is the caller-supplied content of a new report.
type CreateReportInput struct {
	Summary     string   `json:"summary" validate:"required"`
	Insights    []string `json:"insights" validate:"required"`
	Glossary    []string `json:"glossary" validate:"required"`
	Raw         string   `json:"raw" validate:"required"`
	DocumentKey string   `json:"documentKey"`
}

// ReportRef identifies one side of a comparison.
type ReportRef struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comparison diffs a user's two most recent reports.
type Comparison struct {
	Previous ReportRef       `json:"previous"`
	Current  ReportRef       `json:"current"`
	Deltas   []metrics.Delta `json:"deltas"`
}

type ReportService struct {
	repomanager repomanager.RepositoryManager
	cipher      FieldCipher
	extractor   *metrics.Extractor
	compareSet  metrics.ComparisonSet
	archive     DocumentArchive
	audit       auditor
	logger      logging.Logger
	now         func() time.Time
}

// NewReportService constructs a ReportService. archive may be nil; a nil
// extractor means the default one.
func NewReportService(m repomanager.RepositoryManager, cipher FieldCipher, extractor *metrics.Extractor, set metrics.ComparisonSet,
	archive DocumentArchive, rec audit.Recorder, logger logging.Logger) *ReportService {
	if extractor == nil {
		extractor = metrics.NewExtractor(nil)
	}
	logger = logger.With("module", "reports")
	return &ReportService{
		repomanager: m,
		cipher:      cipher,
		extractor:   extractor,
		compareSet:  set,
		archive:     archive,
		audit:       newAuditor(rec, logger),
		logger:      logger,
		now:         time.Now,
	}
}

// Create encrypts and stores a report for userID and returns it with
// plaintext fields.
func (s *ReportService) Create(ctx context.Context, userID string, in CreateReportInput) (*models.Report, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}
	stored := &models.StoredReport{
		ID:          id.String(),
		UserID:      userID,
		DocumentKey: in.DocumentKey,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.seal(stored, in); err != nil {
		return nil, err
	}

	err = s.repomanager.Update(ctx, func(ctx context.Context, r repomanager.Repos) error {
		_, err := r.Reports().Create(ctx, stored)
		return err
	})
	s.audit.report(ctx, userID, audit.ActionReportCreate, stored.ID, err)
	if err != nil {
		return nil, fmt.Errorf("error creating report: %w", err)
	}

	return &models.Report{
		ID:          stored.ID,
		UserID:      userID,
		Summary:     in.Summary,
		Insights:    in.Insights,
		Glossary:    in.Glossary,
		Raw:         in.Raw,
		DocumentKey: in.DocumentKey,
		CreatedAt:   stored.CreatedAt,
	}, nil
}

// CreateFromAnalysis splits AI analysis text into summary, insights and
// glossary and stores the result.
func (s *ReportService) CreateFromAnalysis(ctx context.Context, userID, analysis, documentKey string) (*models.Report, error) {
	in := DeriveReport(analysis)
	in.DocumentKey = documentKey
	return s.Create(ctx, userID, in)
}

// List returns every report of userID, newest first.
func (s *ReportService) List(ctx context.Context, userID string) ([]*models.Report, error) {
	rows, err := s.list(ctx, userID, 0)
	s.audit.report(ctx, userID, audit.ActionReportList, "", err)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Report, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.open(ctx, row))
	}
	return out, nil
}

// Get returns one report. Missing reports and reports of other users both
// yield common.ErrorNotFound.
func (s *ReportService) Get(ctx context.Context, userID, reportID string) (*models.Report, error) {
	rep, err := s.get(ctx, userID, reportID)
	s.audit.report(ctx, userID, audit.ActionReportRead, reportID, err)
	return rep, err
}

func (s *ReportService) Delete(ctx context.Context, userID, reportID string) error {
	err := s.repomanager.Update(ctx, func(ctx context.Context, r repomanager.Repos) error {
		return r.Reports().Delete(ctx, userID, reportID)
	})
	s.audit.report(ctx, userID, audit.ActionReportDelete, reportID, err)
	if err != nil {
		return fmt.Errorf("error deleting report: %w", err)
	}
	return nil
}

// Metrics extracts the structured metrics of one report.
func (s *ReportService) Metrics(ctx context.Context, userID, reportID string) ([]metrics.Metric, error) {
	rep, err := s.get(ctx, userID, reportID)
	s.audit.report(ctx, userID, audit.ActionReportMetrics, reportID, err)
	if err != nil {
		return nil, err
	}
	return s.extractor.FromReport(rep.Summary, rep.Raw), nil
}

// CompareLatest diffs the metrics of the user's two most recent reports.
// Fewer than two reports yield common.ErrorNotEnoughReports.
func (s *ReportService) CompareLatest(ctx context.Context, userID string) (*Comparison, error) {
	rows, err := s.list(ctx, userID, 2)
	if err == nil && len(rows) < 2 {
		err = common.ErrorNotEnoughReports
	}
	if err != nil {
		s.audit.report(ctx, userID, audit.ActionReportCompare, "", err)
		return nil, err
	}

	cur, prev := s.open(ctx, rows[0]), s.open(ctx, rows[1])
	s.audit.report(ctx, userID, audit.ActionReportCompare, cur.ID, nil)

	deltas := metrics.Compare(
		s.extractor.FromReport(prev.Summary, prev.Raw),
		s.extractor.FromReport(cur.Summary, cur.Raw),
		s.compareSet,
	)
	return &Comparison{
		Previous: ReportRef{ID: prev.ID, CreatedAt: prev.CreatedAt},
		Current:  ReportRef{ID: cur.ID, CreatedAt: cur.CreatedAt},
		Deltas:   deltas,
	}, nil
}

// ArchiveDocument seals an uploaded source document into the archive and
// returns its key. It returns "" without error when no archive is set up.
func (s *ReportService) ArchiveDocument(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	if s.archive == nil {
		return "", nil
	}
	key, err := s.archive.Put(ctx, userID, data, contentType)
	if err != nil {
		return "", fmt.Errorf("error archiving document: %w", err)
	}
	return key, nil
}

// Document returns the archived source document of a report.
func (s *ReportService) Document(ctx context.Context, userID, reportID string) (*documents.Document, error) {
	var key string
	err := s.repomanager.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		row, err := r.Reports().GetByID(ctx, userID, reportID)
		if err != nil {
			return err
		}
		key = row.DocumentKey
		return nil
	})
	if err == nil && (key == "" || s.archive == nil) {
		err = common.ErrorNotFound
	}
	if err != nil {
		s.audit.report(ctx, userID, audit.ActionReportRead, reportID, err)
		return nil, err
	}

	doc, err := s.archive.Get(ctx, userID, key)
	s.audit.report(ctx, userID, audit.ActionReportRead, reportID, err)
	return doc, err
}

// --- helpers below ---

func (s *ReportService) seal(dst *models.StoredReport, in CreateReportInput) error {
	var err error
	if dst.Summary, err = s.cipher.Encrypt(in.Summary); err != nil {
		return fmt.Errorf("encrypt summary: %w", err)
	}
	if dst.Insights, err = s.cipher.EncryptJSON(in.Insights); err != nil {
		return fmt.Errorf("encrypt insights: %w", err)
	}
	if dst.Glossary, err = s.cipher.EncryptJSON(in.Glossary); err != nil {
		return fmt.Errorf("encrypt glossary: %w", err)
	}
	if dst.Raw, err = s.cipher.Encrypt(in.Raw); err != nil {
		return fmt.Errorf("encrypt raw: %w", err)
	}
	return nil
}

func (s *ReportService) list(ctx context.Context, userID string, limit int) ([]*models.StoredReport, error) {
	var rows []*models.StoredReport
	err := s.repomanager.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		var err error
		rows, err = r.Reports().ListByUser(ctx, userID, limit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}
	return rows, nil
}

func (s *ReportService) get(ctx context.Context, userID, reportID string) (*models.Report, error) {
	var row *models.StoredReport
	err := s.repomanager.View(ctx, func(ctx context.Context, r repomanager.Repos) error {
		var err error
		row, err = r.Reports().GetByID(ctx, userID, reportID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading report: %w", err)
	}
	return s.open(ctx, row), nil
}

func (s *ReportService) open(ctx context.Context, row *models.StoredReport) *models.Report {
	return &models.Report{
		ID:          row.ID,
		UserID:      row.UserID,
		Summary:     s.cipher.Decrypt(ctx, row.Summary),
		Insights:    s.openList(ctx, row.ID, row.Insights),
		Glossary:    s.openList(ctx, row.ID, row.Glossary),
		Raw:         s.cipher.Decrypt(ctx, row.Raw),
		DocumentKey: row.DocumentKey,
		CreatedAt:   row.CreatedAt,
	}
}

// openList decrypts a JSON string array. Anything that does not decode is
// returned as a single element holding the stored text.
func (s *ReportService) openList(ctx context.Context, reportID, stored string) []string {
	plain := s.cipher.Decrypt(ctx, stored)
	var out []string
	if err := json.Unmarshal([]byte(plain), &out); err != nil {
		s.logger.Warn(ctx, "report list field is not a JSON array", "report", reportID, "error", err)
		return []string{plain}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
