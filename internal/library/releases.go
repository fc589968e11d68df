package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"harvest/internal/services"
	"harvest/internal/textutil"
)

// Release is one expected album in the library.
type Release struct {
	ID         int64
	ArtistID   int64
	Artist     string
	FolderName string
	Title      string
	Year       int
	TrackCount int
	Missing    int
}

// Key identifies the release in logs and cooldown bookkeeping.
func (r Release) Key() string {
	return strconv.FormatInt(r.ArtistID, 10) + "/" + r.FolderName
}

// Track is one expected track and whether its audio is present.
type Track struct {
	Number    int
	Title     string
	Available bool
	Path      string
}

// NewRelease describes a release to register. When TrackTitles is empty,
// TrackCount placeholder tracks are created instead.
type NewRelease struct {
	Artist      string
	Title       string
	Year        int
	TrackCount  int
	TrackTitles []string
}

// ErrReleaseExists is returned when the artist already has a release in the
// same folder.
var ErrReleaseExists = errors.New("release already exists")

// FolderName derives the on-disk folder for a release title.
func FolderName(title string, year int) string {
	name := textutil.SanitizeFileName(title)
	if year > 0 {
		name = fmt.Sprintf("%s (%d)", name, year)
	}
	return name
}

// ReleaseDir returns the directory a release's audio lives in under root.
func ReleaseDir(root string, r Release) string {
	return filepath.Join(root, textutil.SanitizeFileName(r.Artist), r.FolderName)
}

// AddRelease registers a release and its expected tracks.
func (s *Store) AddRelease(ctx context.Context, in NewRelease) (Release, error) {
	artist := strings.TrimSpace(in.Artist)
	title := strings.TrimSpace(in.Title)
	if artist == "" || title == "" {
		return Release{}, services.Wrap(services.ErrValidation, "library", "add release", "artist and title are required", nil)
	}
	titles := in.TrackTitles
	if len(titles) == 0 {
		for i := range max(in.TrackCount, 0) {
			titles = append(titles, fmt.Sprintf("Track %d", i+1))
		}
	}
	if len(titles) == 0 {
		return Release{}, services.Wrap(services.ErrValidation, "library", "add release", "track count must be positive", nil)
	}

	rel := Release{
		Artist:     artist,
		FolderName: FolderName(title, in.Year),
		Title:      title,
		Year:       in.Year,
		TrackCount: len(titles),
		Missing:    len(titles),
	}
	now := timestamp(time.Now())
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO artists (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING", artist, now); err != nil {
			return fmt.Errorf("insert artist: %w", err)
		}
		if err := tx.QueryRowContext(ctx, "SELECT id, name FROM artists WHERE name = ?", artist).Scan(&rel.ArtistID, &rel.Artist); err != nil {
			return fmt.Errorf("load artist: %w", err)
		}

		var existing int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM releases WHERE artist_id = ? AND folder_name = ?", rel.ArtistID, rel.FolderName,
		).Scan(&existing); err != nil {
			return fmt.Errorf("check release: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s/%s", ErrReleaseExists, rel.Artist, rel.FolderName)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO releases (artist_id, folder_name, title, year, track_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rel.ArtistID, rel.FolderName, rel.Title, rel.Year, rel.TrackCount, now, now)
		if err != nil {
			return fmt.Errorf("insert release: %w", err)
		}
		if rel.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("release id: %w", err)
		}
		for i, trackTitle := range titles {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO tracks (release_id, number, title) VALUES (?, ?, ?)",
				rel.ID, i+1, strings.TrimSpace(trackTitle)); err != nil {
				return fmt.Errorf("insert track %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return Release{}, err
	}
	return rel, nil
}

const releaseColumns = `r.id, r.artist_id, a.name, r.folder_name, r.title, r.year, r.track_count,
	(SELECT COUNT(1) FROM tracks t WHERE t.release_id = r.id AND t.available = 0)`

func scanRelease(scanner interface{ Scan(dest ...any) error }) (Release, error) {
	var r Release
	err := scanner.Scan(&r.ID, &r.ArtistID, &r.Artist, &r.FolderName, &r.Title, &r.Year, &r.TrackCount, &r.Missing)
	return r, err
}

// GetIncompleteReleases returns releases with at least one track lacking
// audio, least recently touched first. A limit of zero or less returns all.
func (s *Store) GetIncompleteReleases(ctx context.Context, limit int) ([]Release, error) {
	query := `SELECT ` + releaseColumns + `
		FROM releases r JOIN artists a ON a.id = r.artist_id
		WHERE EXISTS (SELECT 1 FROM tracks t WHERE t.release_id = r.id AND t.available = 0)
		ORDER BY r.updated_at, r.id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query incomplete releases: %w", err)
	}
	defer rows.Close()

	var out []Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListReleases returns every release ordered by artist and folder.
func (s *Store) ListReleases(ctx context.Context) ([]Release, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+releaseColumns+`
		FROM releases r JOIN artists a ON a.id = r.artist_id
		ORDER BY a.name COLLATE NOCASE, r.folder_name`)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	defer rows.Close()
	var out []Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) releaseID(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, artistID int64, folder string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		"SELECT id FROM releases WHERE artist_id = ? AND folder_name = ?", artistID, folder).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound("release", fmt.Sprintf("%d/%s", artistID, folder))
	}
	return id, err
}

// GetTrackAudioAvailability returns every track of the release in number order.
func (s *Store) GetTrackAudioAvailability(ctx context.Context, artistID int64, folder string) ([]Track, error) {
	id, err := s.releaseID(ctx, s.db, artistID, folder)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT number, title, available, COALESCE(path, '') FROM tracks WHERE release_id = ? ORDER BY number", id)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()
	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.Number, &t.Title, &t.Available, &t.Path); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

var fileNumberPattern = regexp.MustCompile(`^\s*(?:\d[-.])?(\d{1,3})\D`)

func fileTrackNumber(name string) int {
	m := fileNumberPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	if n > 99 {
		n %= 100
	}
	return n
}

// MarkTracksAvailable records audio for the release in dir. Files are paths
// relative to dir, matched to tracks by their leading number or by the ID3
// track number of an MP3 whose name has none. When no file carries a usable
// number and the file count covers every track, tracks are marked in order.
// It returns the number of tracks newly marked.
func (s *Store) MarkTracksAvailable(ctx context.Context, artistID int64, folder, dir string, files []string) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}
	numbers := make([]int, len(files))
	for i, file := range files {
		if numbers[i] = fileTrackNumber(file); numbers[i] == 0 {
			numbers[i] = tagTrackNumber(filepath.Join(dir, file))
		}
	}
	var marked int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		marked = 0
		id, err := s.releaseID(ctx, tx, artistID, folder)
		if err != nil {
			return err
		}
		var trackCount int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM tracks WHERE release_id = ?", id).Scan(&trackCount); err != nil {
			return fmt.Errorf("count tracks: %w", err)
		}

		byNumber := map[int]string{}
		for i, file := range files {
			if n := numbers[i]; n > 0 {
				if _, dup := byNumber[n]; !dup {
					byNumber[n] = file
				}
			}
		}
		if len(byNumber) == 0 && len(files) >= trackCount {
			for i, file := range files[:trackCount] {
				byNumber[i+1] = file
			}
		}

		for number, file := range byNumber {
			res, err := tx.ExecContext(ctx,
				"UPDATE tracks SET available = 1, path = ? WHERE release_id = ? AND number = ? AND available = 0",
				filepath.Join(dir, file), id, number)
			if err != nil {
				return fmt.Errorf("mark track %d: %w", number, err)
			}
			n, _ := res.RowsAffected()
			marked += int(n)
		}
		_, err = tx.ExecContext(ctx, "UPDATE releases SET updated_at = ? WHERE id = ?", timestamp(time.Now()), id)
		return err
	})
	return marked, err
}
