package reliability

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultArchivePrefix is the key prefix of archived reports.
const DefaultArchivePrefix = "alphapulse/"

// minReportsToKeep survive rotation regardless of age.
const minReportsToKeep = 10

// ArchivedReport describes one archived simulation report.
type ArchivedReport struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// ReportArchiver copies simulation reports to object storage.
type ReportArchiver struct {
	store  ObjectStore
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

// NewReportArchiver creates an archiver writing under DefaultArchivePrefix.
func NewReportArchiver(store ObjectStore, log zerolog.Logger) *ReportArchiver {
	return &ReportArchiver{
		store:  store,
		prefix: DefaultArchivePrefix,
		now:    time.Now,
		log:    log.With().Str("service", "report_archiver").Logger(),
	}
}

// Archive uploads a JSON report under key (relative to the archive prefix).
func (a *ReportArchiver) Archive(ctx context.Context, key string, body []byte) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid archive key %q", key)
	}

	fullKey := a.prefix + key
	if err := a.store.Upload(ctx, fullKey, bytes.NewReader(body), "application/json"); err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	a.log.Info().
		Str("key", fullKey).
		Int("size_bytes", len(body)).
		Str("sha256", hex.EncodeToString(sum[:])).
		Msg("Archived simulation report")
	return nil
}

// List returns archived reports, newest first.
func (a *ReportArchiver) List(ctx context.Context) ([]ArchivedReport, error) {
	objects, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived reports: %w", err)
	}

	now := a.now()
	reports := make([]ArchivedReport, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		reports = append(reports, ArchivedReport{
			Key:       obj.Key,
			RunID:     strings.TrimSuffix(path.Base(obj.Key), ".json"),
			Timestamp: obj.LastModified,
			SizeBytes: obj.Size,
			AgeHours:  int64(now.Sub(obj.LastModified).Hours()),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

// RotateOld deletes reports older than retentionDays, always keeping the
// newest minReportsToKeep. retentionDays <= 0 keeps everything.
func (a *ReportArchiver) RotateOld(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	reports, err := a.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(reports) <= minReportsToKeep {
		return 0, nil
	}

	cutoff := a.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, r := range reports[minReportsToKeep:] {
		if !r.Timestamp.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, r.Key); err != nil {
			a.log.Error().Err(err).Str("key", r.Key).Msg("Failed to delete archived report")
			continue
		}
		deleted++
	}

	a.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(reports)-deleted).
		Msg("Archived report rotation completed")
	return deleted, nil
}
