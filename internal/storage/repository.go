package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/rules"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Notes

func (r *Repository) Create(ctx context.Context, note *rules.Note) error {
	rec, err := toRecord(note)
	if err != nil {
		return rules.PersistenceError("create note", err)
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return rules.PersistenceError("create note", err)
	}
	return nil
}

// Save overwrites the mutable state of an existing note.
func (r *Repository) Save(ctx context.Context, note *rules.Note) error {
	rec, err := toRecord(note)
	if err != nil {
		return rules.PersistenceError("save note", err)
	}
	res := r.db.WithContext(ctx).Model(rec).Select("*").Omit("id", "created_at").Updates(rec)
	if res.Error != nil {
		return rules.PersistenceError("save note", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save note %s: %w", note.ID, rules.ErrNotFound)
	}
	return nil
}

func (r *Repository) LoadActive(ctx context.Context) ([]rules.Note, error) {
	return r.List(ctx, true)
}

// List returns notes newest first.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]rules.Note, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}

	var recs []NoteRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, rules.PersistenceError("list notes", err)
	}

	notes := make([]rules.Note, 0, len(recs))
	for i := range recs {
		n, err := toNote(&recs[i])
		if err != nil {
			return nil, rules.PersistenceError("decode note "+recs[i].ID, err)
		}
		notes = append(notes, *n)
	}
	return notes, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*rules.Note, error) {
	var rec NoteRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("note %s: %w", id, rules.ErrNotFound)
	}
	if err != nil {
		return nil, rules.PersistenceError("get note", err)
	}
	n, err := toNote(&rec)
	if err != nil {
		return nil, rules.PersistenceError("decode note "+id, err)
	}
	return n, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&NoteRecord{})
	if res.Error != nil {
		return rules.PersistenceError("delete note", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("note %s: %w", id, rules.ErrNotFound)
	}
	return nil
}

// Check Logs

func (r *Repository) RecordCycle(ctx context.Context, report *monitor.CycleReport) error {
	alertsJSON, err := json.Marshal(report.Alerts)
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}
	failuresJSON, err := json.Marshal(report.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	log := &CheckLog{
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		NotesChecked:  report.Checked,
		AlertsCount:   len(report.Alerts),
		SkippedCount:  len(report.Skipped),
		FailuresCount: len(report.Failures),
		AlertsJSON:    datatypes.JSON(alertsJSON),
		FailuresJSON:  datatypes.JSON(failuresJSON),
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return rules.PersistenceError("record check cycle", err)
	}
	return nil
}

func (r *Repository) RecentCycles(ctx context.Context, limit int) ([]CheckLog, error) {
	var logs []CheckLog
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, rules.PersistenceError("list check cycles", err)
	}
	return logs, nil
}

func toRecord(n *rules.Note) (*NoteRecord, error) {
	conditions := n.Conditions
	if conditions == nil {
		conditions = map[string]any{}
	}
	raw, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}

	rec := &NoteRecord{
		ID:            n.ID,
		CreatedAt:     n.CreatedAt,
		RawText:       n.RawText,
		Symbol:        n.Symbol,
		BuyPrice:      n.BuyPrice,
		Conditions:    datatypes.JSON(raw),
		UserOpinion:   n.UserOpinion,
		LastChecked:   n.LastChecked,
		Active:        n.Active,
		AwaitingReset: n.AwaitingReset,
	}
	if n.ActionType != nil {
		s := string(*n.ActionType)
		rec.ActionType = &s
	}
	return rec, nil
}

func toNote(rec *NoteRecord) (*rules.Note, error) {
	conditions := map[string]any{}
	if len(rec.Conditions) > 0 {
		dec := json.NewDecoder(bytes.NewReader(rec.Conditions))
		dec.UseNumber()
		if err := dec.Decode(&conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
	}

	n := &rules.Note{
		ID:            rec.ID,
		RawText:       rec.RawText,
		Symbol:        rec.Symbol,
		BuyPrice:      rec.BuyPrice,
		Conditions:    conditions,
		UserOpinion:   rec.UserOpinion,
		CreatedAt:     rec.CreatedAt,
		LastChecked:   rec.LastChecked,
		Active:        rec.Active,
		AwaitingReset: rec.AwaitingReset,
	}
	if rec.ActionType != nil {
		at := rules.ActionType(*rec.ActionType)
		n.ActionType = &at
	}
	return n, nil
}
