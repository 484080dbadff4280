package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"ytmirror/internal/storage"
	"ytmirror/internal/youtube"
)

// downloadVideo fetches id into a fresh scratch directory, probes the media
// file, moves everything into the artifact store and records the id as
// known. A non-zero downloader exit leaves the store untouched and returns
// an *UnavailableError or a *DownloadError.
func (m *Mirror) downloadVideo(ctx context.Context, id string) (*youtube.Video, error) {
	log := m.dlLog.With().Str("video", id).Logger()
	log.Info().Msg("downloading video")

	res, err := m.fetcher.Download(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	if res.Code != 0 {
		return nil, m.downloadFailed(id, res)
	}

	raw, err := os.ReadFile(filepath.Join(res.ScratchDir, id+".info.json"))
	if err != nil {
		return nil, fmt.Errorf("read info for %s: %w", id, err)
	}
	v, err := youtube.ParseVideo(raw)
	if err != nil {
		return nil, fmt.Errorf("read info for %s: %w", id, err)
	}
	if v.Ext == "" {
		return nil, fmt.Errorf("read info for %s: no media extension", id)
	}

	media := filepath.Join(res.ScratchDir, id+"."+v.Ext)
	probe, err := m.prober.Probe(ctx, media)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", id, err)
	}
	probePath := filepath.Join(res.ScratchDir, id+"."+v.Ext+".ffprobe.json")
	if err := storage.WriteFileAtomic(probePath, probe); err != nil {
		return nil, fmt.Errorf("write probe for %s: %w", id, err)
	}

	if err := m.store.Ingest(id, res.ScratchDir); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(res.ScratchDir); err != nil {
		log.Warn().Err(err).Str("dir", res.ScratchDir).Msg("failed to remove scratch dir")
	}

	if err := m.catalog.RecordDownload(id); err != nil {
		return nil, persist(err)
	}
	log.Info().Str("title", v.Title).Msg("video downloaded")
	return v, nil
}

// downloadFailed classifies a failed download from its stderr. Permanent
// failures are tombstoned; everything else is left for the next run.
func (m *Mirror) downloadFailed(id string, res *youtube.DownloadResult) error {
	m.dlLog.Error().Str("video", id).Int("code", res.Code).Msg("video not available or download failed")

	reason, ok := youtube.ClassifyFailure(res.Stderr)
	if !ok {
		return &DownloadError{ID: id, Code: res.Code}
	}
	if err := m.catalog.MarkUnavailable(id, reason); err != nil {
		return persist(err)
	}
	m.dlLog.Debug().Str("video", id).Str("reason", reason).Msg("added unavailable video")
	return &UnavailableError{ID: id, Reason: reason}
}
