package mirror

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ytmirror/internal/storage"
	"ytmirror/internal/views"
	"ytmirror/internal/youtube"
)

// RunReport summarizes one pass over a URL file.
type RunReport struct {
	// Resources is the number of URLs processed.
	Resources int
	// Skipped counts playlists found unchanged since the last run.
	Skipped int
	// Failed counts resources that could not be processed.
	Failed int
	// Downloaded counts videos fetched during the run.
	Downloaded int
	// Unavailable counts videos tombstoned during the run.
	Unavailable int
	// Errors holds the per-resource failures, in order.
	Errors []error
}

// ProcessURLFile syncs every resource listed in path, one URL per line.
// Blank lines and lines starting with '#' are ignored. A resource that
// fails is logged and the run moves on; catalog write failures and
// cancellation stop the run.
func (m *Mirror) ProcessURLFile(ctx context.Context, path string) (*RunReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	rep := &RunReport{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rep.Resources++
		if err := m.processURL(ctx, line, rep); err != nil {
			if isFatal(err) {
				return rep, err
			}
			rep.Failed++
			rep.Errors = append(rep.Errors, err)
			m.log.Error().Err(err).Str("url", line).Msg("error checking resource")
		}
	}
	if err := scanner.Err(); err != nil {
		return rep, fmt.Errorf("read url file: %w", err)
	}

	m.log.Info().
		Int("resources", rep.Resources).
		Int("unchanged", rep.Skipped).
		Int("failed", rep.Failed).
		Int("downloaded", rep.Downloaded).
		Int("unavailable", rep.Unavailable).
		Msg("sync finished")
	return rep, nil
}

// ProcessURL syncs a single resource.
func (m *Mirror) ProcessURL(ctx context.Context, rawURL string) error {
	return m.processURL(ctx, rawURL, &RunReport{})
}

func (m *Mirror) processURL(ctx context.Context, rawURL string, rep *RunReport) error {
	kind := youtube.Classify(rawURL)
	m.log.Info().Str("type", kind.String()).Str("url", rawURL).Msg("checking resource")

	switch kind {
	case youtube.KindPlaylist, youtube.KindShorts:
		return m.processPlaylist(ctx, rawURL, kind, rep)
	case youtube.KindChannel:
		return m.processChannel(ctx, rawURL, rep)
	case youtube.KindVideo:
		return m.processVideo(ctx, rawURL, rep)
	}
	return fmt.Errorf("%w: %s", ErrUnknownResource, rawURL)
}

func (m *Mirror) processPlaylist(ctx context.Context, rawURL string, kind youtube.Kind, rep *RunReport) error {
	snap, err := m.fetcher.QueryResource(ctx, rawURL)
	if err != nil {
		return err
	}
	if got := snap.Kind(); got != youtube.SnapshotPlaylist {
		return fmt.Errorf("%w: %s answered as %s", ErrUnexpectedSnapshot, rawURL, got)
	}

	if err := m.catalog.TouchList(snap.ID, m.nowMillis()); err != nil {
		return persist(err)
	}
	if rec, err := m.catalog.List(snap.ID); err == nil && unchanged(rec, snap) {
		m.log.Info().Str("type", kind.String()).Str("title", snap.Title).Str("url", rawURL).Msg("not changed")
		rep.Skipped++
		return nil
	}

	update := storage.ListRecord{
		ID:          snap.ID,
		LastChecked: m.nowMillis(),
		Modified:    snap.ModifiedDate,
		EntryCount:  snap.PlaylistCount,
	}
	if err := m.catalog.UpdateList(update); err != nil {
		return persist(err)
	}

	plan := Diff(m.catalog, snap.EntryIDs())
	m.logPlan(kind.String(), snap, plan)

	opts := views.Options{Playlist: snap.Ref()}
	record := func(id string) error {
		return persist(m.catalog.AddListDownload(snap.ID, id))
	}
	if err := m.processEntries(ctx, plan, opts, record, rep); err != nil {
		return err
	}

	update.LastChecked = m.nowMillis()
	return persist(m.catalog.UpdateList(update))
}

func (m *Mirror) processChannel(ctx context.Context, rawURL string, rep *RunReport) error {
	snap, err := m.fetcher.QueryResource(ctx, rawURL)
	if err != nil {
		return err
	}
	if got := snap.Kind(); got != youtube.SnapshotChannel {
		return fmt.Errorf("%w: %s answered as %s", ErrUnexpectedSnapshot, rawURL, got)
	}

	if err := m.catalog.TouchChannel(snap.ID, m.nowMillis()); err != nil {
		return persist(err)
	}

	update := storage.ChannelRecord{ID: snap.ID, LastChecked: m.nowMillis()}
	if len(snap.Entries) > 0 {
		update.LastVideoID = snap.Entries[0].ID
	}
	if err := m.catalog.UpdateChannel(update); err != nil {
		return persist(err)
	}

	plan := Diff(m.catalog, snap.EntryIDs())
	m.logPlan("channel", snap, plan)

	opts := views.Options{ExplicitChannel: true}
	record := func(id string) error {
		return persist(m.catalog.AddChannelDownload(snap.ID, id))
	}
	if err := m.processEntries(ctx, plan, opts, record, rep); err != nil {
		return err
	}

	update.LastChecked = m.nowMillis()
	return persist(m.catalog.UpdateChannel(update))
}

func (m *Mirror) processVideo(ctx context.Context, rawURL string, rep *RunReport) error {
	id := youtube.VideoID(rawURL)
	if id == "" {
		return fmt.Errorf("%w: no video id in %s", ErrUnknownResource, rawURL)
	}

	plan := Diff(m.catalog, []string{id})
	if len(plan.ToDownload)+len(plan.AlreadyDownloaded) == 0 {
		m.log.Info().Str("video", id).Msg("video deleted or unavailable, skipping")
		return nil
	}
	return m.processEntries(ctx, plan, views.Options{}, nil, rep)
}

// processEntries links already downloaded ids into their views and
// downloads the rest. record, when set, is called for every id that ends up
// present in the store.
func (m *Mirror) processEntries(ctx context.Context, plan Plan, opts views.Options, record func(id string) error, rep *RunReport) error {
	for _, id := range plan.AlreadyDownloaded {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := m.store.ReadInfo(id)
		if err != nil {
			m.log.Warn().Err(err).Str("video", id).Msg("reading video info failed, skipping")
			continue
		}
		if err := m.present(v, opts, record); err != nil {
			return err
		}
	}

	for _, id := range plan.ToDownload {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := m.downloadVideo(ctx, id)
		if err != nil {
			if isFatal(err) {
				return err
			}
			var unavailable *UnavailableError
			if errors.As(err, &unavailable) {
				rep.Unavailable++
			}
			m.dlLog.Error().Err(err).Str("video", id).Msg("video skipped")
			continue
		}
		rep.Downloaded++
		if err := m.present(v, opts, record); err != nil {
			return err
		}
	}
	return nil
}

// present records a stored video against its resource and ensures its views.
// View failures are logged; the video stays recorded.
func (m *Mirror) present(v *youtube.Video, opts views.Options, record func(id string) error) error {
	if record != nil {
		if err := record(v.ID); err != nil {
			return err
		}
	}
	if err := m.views.EnsureView(v, opts); err != nil {
		m.log.Error().Err(err).Str("video", v.ID).Msg("creating views failed")
	}
	return nil
}

func (m *Mirror) logPlan(kind string, snap *youtube.Snapshot, plan Plan) {
	m.log.Info().
		Str("type", kind).
		Str("title", snap.Title).
		Int("videos", len(snap.Entries)).
		Int("to_download", len(plan.ToDownload)).
		Int("present", len(plan.AlreadyDownloaded)).
		Int("deleted", plan.DeletedWithinResource).
		Int("unavailable", plan.Unavailable).
		Msg("resource listed")
}

// unchanged reports whether a stored playlist record still describes snap
// and every entry has been recorded as downloaded.
func unchanged(rec *storage.ListRecord, snap *youtube.Snapshot) bool {
	return rec.Modified == snap.ModifiedDate &&
		rec.EntryCount == snap.PlaylistCount &&
		rec.Downloaded.Len() == rec.EntryCount
}
