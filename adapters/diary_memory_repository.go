package repository

import (
	"context"
	"errors"
	"github.com/adamlounds/weather-diary/models"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

var errReadOnlyTx = errors.New("memory: cannot write in a read-only transaction")

type memState struct {
	diaries []models.DiaryEntry              // kept in id order
	weather map[string]models.WeatherRecord // keyed by models.DateKey
}

func (m *memState) clone() *memState {
	return &memState{
		diaries: slices.Clone(m.diaries),
		weather: maps.Clone(m.weather),
	}
}

// MemoryRepository keeps diaries and weather in process memory. Read-write
// transactions hold an exclusive lock for their whole duration, so every
// transaction is serializable; read-only transactions share a read lock.
type MemoryRepository struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: &memState{weather: make(map[string]models.WeatherRecord)},
	}
}

func (m *MemoryRepository) InTx(ctx context.Context, opts models.TxOptions, fn func(ctx context.Context, store models.Store) error) error {
	if opts.ReadOnly {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return fn(ctx, &memTx{state: m.state, readOnly: true})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// fn works on a copy which only replaces the live state on success
	working := m.state.clone()
	if err := fn(ctx, &memTx{state: working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

type memTx struct {
	state    *memState
	readOnly bool
}

func (t *memTx) FetchWeather(ctx context.Context, date time.Time) (*models.WeatherRecord, error) {
	record, ok := t.state.weather[models.DateKey(date)]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &record, nil
}

func (t *memTx) UpsertWeather(ctx context.Context, record models.WeatherRecord) error {
	if t.readOnly {
		return errReadOnlyTx
	}
	record.Date = models.Date(record.Date)
	t.state.weather[models.DateKey(record.Date)] = record
	return nil
}

func (t *memTx) InsertDiary(ctx context.Context, entry models.DiaryEntry) error {
	if t.readOnly {
		return errReadOnlyTx
	}
	entry.Date = models.Date(entry.Date)
	i, found := slices.BinarySearchFunc(t.state.diaries, entry.ID, func(e models.DiaryEntry, id string) int {
		return strings.Compare(e.ID, id)
	})
	if found {
		return errors.New("memory: duplicate diary id " + entry.ID)
	}
	t.state.diaries = slices.Insert(t.state.diaries, i, entry)
	return nil
}

func (t *memTx) DeleteDiariesByDate(ctx context.Context, date time.Time) (int64, error) {
	if t.readOnly {
		return 0, errReadOnlyTx
	}
	before := len(t.state.diaries)
	t.state.diaries = slices.DeleteFunc(t.state.diaries, func(e models.DiaryEntry) bool {
		return e.Date.Equal(date)
	})
	return int64(before - len(t.state.diaries)), nil
}

func (t *memTx) FetchDiariesBetween(ctx context.Context, startDate, endDate time.Time) ([]models.DiaryEntry, error) {
	entries := []models.DiaryEntry{}
	for _, e := range t.state.diaries {
		if e.Date.Before(startDate) || e.Date.After(endDate) {
			continue
		}
		entries = append(entries, e)
	}
	// ids are already ordered, a stable sort keeps them ordered within a date
	slices.SortStableFunc(entries, func(a, b models.DiaryEntry) int {
		return a.Date.Compare(b.Date)
	})
	return entries, nil
}

func (t *memTx) FetchDiariesByDate(ctx context.Context, date time.Time) ([]models.DiaryEntry, error) {
	entries := []models.DiaryEntry{}
	for _, e := range t.state.diaries {
		if e.Date.Equal(date) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (t *memTx) FetchFirstDiaryByDate(ctx context.Context, date time.Time) (*models.DiaryEntry, error) {
	for _, e := range t.state.diaries {
		if e.Date.Equal(date) {
			return &e, nil
		}
	}
	return nil, models.ErrNotFound
}

func (t *memTx) UpdateDiaryText(ctx context.Context, id string, text string) error {
	if t.readOnly {
		return errReadOnlyTx
	}
	for i := range t.state.diaries {
		if t.state.diaries[i].ID == id {
			t.state.diaries[i].Text = text
			return nil
		}
	}
	return models.ErrNotFound
}
