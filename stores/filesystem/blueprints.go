package filesystem

import (
	"blueprints-server/core"
	"blueprints-server/stores/internal/keylock"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	fileExt   = ".json"
	tmpPrefix = ".tmp-"
)

type (
	filePoint struct {
		Idx int `json:"idx"`
		X   int `json:"x"`
		Y   int `json:"y"`
	}

	fileRecord struct {
		Author string      `json:"author"`
		Name   string      `json:"name"`
		Points []filePoint `json:"points"`
	}
)

// blueprintStore keeps one JSON file per blueprint under
// <base>/<author>/<name>.json, both path parts base64url encoded so that any
// author or name is a safe file name. Appends are serialised per blueprint
// inside this process only.
type blueprintStore struct {
	basePath string
	locks    *keylock.Locker
}

// NewBlueprintStore creates basePath if needed.
func NewBlueprintStore(basePath string) (core.BlueprintStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &blueprintStore{basePath: basePath, locks: keylock.New()}, nil
}

func encodeSegment(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func (s *blueprintStore) authorPath(author string) string {
	return filepath.Join(s.basePath, encodeSegment(author))
}

func (s *blueprintStore) blueprintPath(key core.Key) string {
	return filepath.Join(s.authorPath(key.Author), encodeSegment(key.Name)+fileExt)
}

// Create links a fully written temp file into place. The link fails when
// the target exists, so one of several concurrent creators wins and nobody
// ever reads a half-written file.
func (s *blueprintStore) Create(ctx context.Context, bp core.Blueprint) error {
	if err := ctx.Err(); err != nil {
		return core.NewStorageError("create", err)
	}

	key := bp.Key()
	filePath := s.blueprintPath(key)
	log := logrus.WithFields(logrus.Fields{
		"author":    key.Author,
		"name":      key.Name,
		"file_path": filePath,
	})

	record := fileRecord{Author: key.Author, Name: key.Name, Points: make([]filePoint, len(bp.Points))}
	for i, p := range bp.Points {
		record.Points[i] = filePoint{Idx: i, X: p.X, Y: p.Y}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.WithError(err).Error("Failed to create author directory")
		return core.NewStorageError("create", err)
	}

	tmp, err := s.writeTemp(filepath.Dir(filePath), record)
	if err != nil {
		log.WithError(err).Error("Failed to write blueprint")
		return core.NewStorageError("create", err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, filePath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			log.Warn("Blueprint already exists")
			return core.DuplicateError(key)
		}
		log.WithError(err).Error("Failed to create blueprint")
		return core.NewStorageError("create", err)
	}

	log.Info("Blueprint created successfully")
	return nil
}

func (s *blueprintStore) Get(ctx context.Context, author, name string) (core.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return core.Blueprint{}, core.NewStorageError("get", err)
	}

	key := core.Key{Author: author, Name: name}
	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})
	log.Debug("Retrieving blueprint")

	record, err := s.read(s.blueprintPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("Blueprint not found")
			return core.Blueprint{}, core.NotFoundError(key)
		}
		log.WithError(err).Error("Failed to retrieve blueprint")
		return core.Blueprint{}, core.NewStorageError("get", err)
	}
	return record.blueprint(), nil
}

func (s *blueprintStore) ListByAuthor(ctx context.Context, author string) ([]core.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("list by author", err)
	}

	log := logrus.WithField("author", author)
	bps, err := s.readAuthor(s.authorPath(author))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Error("Failed to list blueprints")
		return nil, core.NewStorageError("list by author", err)
	}
	if len(bps) == 0 {
		log.Warn("Author has no blueprints")
		return nil, core.AuthorNotFoundError(author)
	}
	sortBlueprints(bps)
	return bps, nil
}

func (s *blueprintStore) List(ctx context.Context) ([]core.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewStorageError("list", err)
	}

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		logrus.WithError(err).Error("Failed to list blueprints")
		return nil, core.NewStorageError("list", err)
	}

	bps := []core.Blueprint{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		authorBps, err := s.readAuthor(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			logrus.WithError(err).Error("Failed to list blueprints")
			return nil, core.NewStorageError("list", err)
		}
		bps = append(bps, authorBps...)
	}
	sortBlueprints(bps)
	return bps, nil
}

func (s *blueprintStore) AppendPoint(ctx context.Context, author, name string, p core.Point) error {
	if err := ctx.Err(); err != nil {
		return core.NewStorageError("append point", err)
	}

	key := core.Key{Author: author, Name: name}
	filePath := s.blueprintPath(key)
	log := logrus.WithFields(logrus.Fields{"author": author, "name": name})

	unlock := s.locks.Lock(filePath)
	defer unlock()

	record, err := s.read(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("Cannot add point to missing blueprint")
			return core.NotFoundError(key)
		}
		log.WithError(err).Error("Failed to read blueprint")
		return core.NewStorageError("append point", err)
	}

	next := 0
	for _, fp := range record.Points {
		if fp.Idx >= next {
			next = fp.Idx + 1
		}
	}
	record.Points = append(record.Points, filePoint{Idx: next, X: p.X, Y: p.Y})

	tmp, err := s.writeTemp(filepath.Dir(filePath), record)
	if err != nil {
		log.WithError(err).Error("Failed to write blueprint")
		return core.NewStorageError("append point", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		os.Remove(tmp)
		log.WithError(err).Error("Failed to replace blueprint")
		return core.NewStorageError("append point", err)
	}

	log.WithField("idx", next).Debug("Point added")
	return nil
}

func (s *blueprintStore) writeTemp(dir string, record fileRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	tmp := filepath.Join(dir, tmpPrefix+ulid.Make().String())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

func (s *blueprintStore) read(filePath string) (fileRecord, error) {
	var record fileRecord
	data, err := os.ReadFile(filePath)
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("corrupt blueprint file %s: %w", filePath, err)
	}
	return record, nil
}

func (s *blueprintStore) readAuthor(dir string) ([]core.Blueprint, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var bps []core.Blueprint
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), tmpPrefix) || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		record, err := s.read(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		bps = append(bps, record.blueprint())
	}
	return bps, nil
}

func (r fileRecord) blueprint() core.Blueprint {
	sorted := make([]filePoint, len(r.Points))
	copy(sorted, r.Points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Idx < sorted[j].Idx })

	points := make([]core.Point, len(sorted))
	for i, fp := range sorted {
		points[i] = core.Point{X: fp.X, Y: fp.Y}
	}
	return core.Blueprint{Author: r.Author, Name: r.Name, Points: points}
}

func sortBlueprints(bps []core.Blueprint) {
	sort.Slice(bps, func(i, j int) bool {
		if bps[i].Author == bps[j].Author {
			return bps[i].Name < bps[j].Name
		}
		return bps[i].Author < bps[j].Author
	})
}
